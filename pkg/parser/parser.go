// Package parser reads job configuration documents. The markup and the
// structured front ends both produce a models.Document, and nothing
// downstream ever looks at the source format again.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"

	// InlineSource names documents that came from the application settings
	// rather than a file.
	InlineSource = "<inline job_config>"
)

// FormatForPath picks the front end for a file by its extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatXML, nil
	case ".yml", ".yaml", ".json":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported job configuration file extension %q", filepath.Ext(path))
	}
}

type options struct {
	lookupEnv  func(string) (string, bool)
	configDict map[string]any
}

type Option func(*options)

// WithConfigDict sets the application settings consulted by params declared
// with from_config.
func WithConfigDict(dict map[string]any) Option {
	return func(o *options) {
		o.configDict = dict
	}
}

// WithLookupEnv replaces os.LookupEnv for params declared with from_environ.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookupEnv = lookup
	}
}

func newOptions(opts []Option) options {
	o := options{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ParseFile parses the document at path with the front end matching its
// extension. Errors carry the absolute path of the document.
func ParseFile(path string, opts ...Option) (*models.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	format, err := FormatForPath(abs)
	if err != nil {
		return nil, NewConfigParseError(abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, NewConfigParseError(abs, err)
	}
	return Parse(data, format, abs, opts...)
}

// Parse parses an in-memory document in the given format. source is only used
// in errors.
func Parse(data []byte, format Format, source string, opts ...Option) (*models.Document, error) {
	switch format {
	case FormatXML:
		return ParseXML(bytes.NewReader(data), source, opts...)
	case FormatYAML:
		return ParseYAML(bytes.NewReader(data), source)
	default:
		return nil, NewConfigParseError(source, fmt.Errorf("unsupported job configuration format %q", format))
	}
}

// ParseMap parses a document inlined in the application settings.
func ParseMap(m map[string]any) (*models.Document, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, NewConfigParseError(InlineSource, err)
	}
	return ParseYAML(bytes.NewReader(data), InlineSource)
}

// finalize applies the rewrites shared by both front ends and normalizes the
// document.
func finalize(doc *models.Document) *models.Document {
	for _, env := range doc.Execution.Environments {
		if env == nil || env.Runner != models.RulesDispatcherRunner {
			continue
		}
		if env.Params == nil {
			env.Params = make(map[string]any)
		}
		env.Runner = models.DynamicRunnerID
		env.Params["type"] = "python"
		env.Params["function"] = models.RulesDispatcherFunction
		env.Params["rules_module"] = models.RulesDispatcherModule
	}
	doc.Normalize()
	return doc
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseBoolLike interprets the boolean spellings accepted in attributes. The
// second result is false when value is not boolean-like at all.
func parseBoolLike(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0", "none":
		return false, true
	default:
		return false, false
	}
}
