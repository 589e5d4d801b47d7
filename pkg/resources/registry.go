// Package resources resolves the resource parameters a user may pick for a
// tool's jobs.
package resources

import (
	"encoding/xml"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

const (
	ToolTypeDefault    = "default"
	ToolTypeManageData = "manage_data"

	ConditionalName = "__job_resource"
	SelectName      = "__job_resource__select"
)

// ErrResourceGroupFieldMissing is returned when a resource group names a
// field the resource parameters do not declare.
type ErrResourceGroupFieldMissing struct {
	Group string
	Field string
}

func NewErrResourceGroupFieldMissing(group, field string) ErrResourceGroupFieldMissing {
	return ErrResourceGroupFieldMissing{Group: group, Field: field}
}

func (e ErrResourceGroupFieldMissing) Error() string {
	return fmt.Sprintf("resource group %q references undeclared resource parameter %q", e.Group, e.Field)
}

// GroupResolver returns the resource group configured for a tool id.
type GroupResolver interface {
	ResourceGroup(toolID string) (string, bool)
}

type Registry struct {
	groups       map[string][]string
	defaultGroup string
	params       map[string]FieldDefinition
	tools        GroupResolver
}

// NewRegistry builds the resource group table. params are the declared
// resource parameters; tools may be nil when no tool names a group.
func NewRegistry(res *models.Resources, params map[string]FieldDefinition, tools GroupResolver) *Registry {
	r := &Registry{
		groups: make(map[string][]string),
		params: params,
		tools:  tools,
	}
	if res != nil {
		r.defaultGroup = res.Default
		for id, fields := range res.Groups {
			r.groups[id] = slices.Clone(fields)
		}
	}
	return r
}

// Groups returns the group ids in sorted order.
func (r *Registry) Groups() []string {
	ids := maps.Keys(r.groups)
	slices.Sort(ids)
	return ids
}

func (r *Registry) DefaultGroup() string {
	return r.defaultGroup
}

func (r *Registry) group(toolID string) string {
	if r.tools != nil {
		if group, ok := r.tools.ResourceGroup(toolID); ok {
			return group
		}
	}
	return r.defaultGroup
}

// FieldsFor returns the resource parameters offered for a tool, in group
// order. It returns nil when the tool type takes no resource parameters or
// no group applies to the tool.
func (r *Registry) FieldsFor(toolID, toolType string) ([]FieldDefinition, error) {
	if toolType != ToolTypeDefault && toolType != ToolTypeManageData {
		return nil, nil
	}
	group := r.group(toolID)
	names, ok := r.groups[group]
	if group == "" || !ok {
		return nil, nil
	}
	fields := make([]FieldDefinition, 0, len(names))
	for _, name := range names {
		field, ok := r.params[name]
		if !ok {
			return nil, NewErrResourceGroupFieldMissing(group, name)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// Conditional is the selector letting users keep the default resources or
// pick their own.
type Conditional struct {
	XMLName xml.Name `xml:"conditional"`
	Name    string   `xml:"name,attr"`
	Select  Select   `xml:"param"`
	Whens   []When   `xml:"when"`
}

type Select struct {
	Name    string   `xml:"name,attr"`
	Type    string   `xml:"type,attr"`
	Label   string   `xml:"label,attr"`
	Options []Option `xml:"option"`
}

type Option struct {
	Value string `xml:"value,attr"`
	Label string `xml:",chardata"`
}

type When struct {
	Value  string            `xml:"value,attr"`
	Fields []FieldDefinition `xml:"param"`
}

func newConditional(fields []FieldDefinition) *Conditional {
	return &Conditional{
		Name: ConditionalName,
		Select: Select{
			Name:  SelectName,
			Type:  "select",
			Label: "Job Resource Parameters",
			Options: []Option{
				{Value: "no", Label: "Use default job resource parameters"},
				{Value: "yes", Label: "Specify job resource parameters"},
			},
		},
		Whens: []When{
			{Value: "no"},
			{Value: "yes", Fields: fields},
		},
	}
}

// ConditionalFor wraps the resource parameters of a tool in the selector
// conditional. It returns nil when the tool is offered no parameters.
func (r *Registry) ConditionalFor(toolID, toolType string) (*Conditional, error) {
	fields, err := r.FieldsFor(toolID, toolType)
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	return newConditional(fields), nil
}

// XML renders the conditional as indented markup.
func (c *Conditional) XML() (string, error) {
	out, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
