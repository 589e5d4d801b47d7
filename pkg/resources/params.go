package resources

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// FieldDefinition is a declared resource parameter, kept as the markup it was
// declared with so it can be handed to the form layer unchanged.
type FieldDefinition struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Name is the value of the name attribute.
func (f FieldDefinition) Name() string {
	return f.Attr("name")
}

func (f FieldDefinition) Attr(name string) string {
	for _, a := range f.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

type parametersDocument struct {
	XMLName xml.Name          `xml:"parameters"`
	Params  []FieldDefinition `xml:"param"`
}

// ParseParameters reads a resource parameters document:
//
//	<parameters>
//	  <param name="cores" label="Cores" type="integer" min="1" max="64"/>
//	</parameters>
func ParseParameters(r io.Reader) (map[string]FieldDefinition, error) {
	var doc parametersDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode resource parameters: %w", err)
	}
	out := make(map[string]FieldDefinition, len(doc.Params))
	for _, param := range doc.Params {
		name := strings.TrimSpace(param.Name())
		if name == "" {
			return nil, fmt.Errorf("resource parameter without a name")
		}
		if _, exists := out[name]; exists {
			return nil, fmt.Errorf("resource parameter %q declared more than once", name)
		}
		out[name] = param
	}
	return out, nil
}

// LoadParameters reads the resource parameters file at path.
func LoadParameters(path string) (map[string]FieldDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	params, err := ParseParameters(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return params, nil
}
