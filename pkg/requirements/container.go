// Package requirements parses container requirements attached to
// destination params.
package requirements

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

const (
	DefaultContainerType  = "docker"
	DefaultContainerShell = "/bin/sh"
)

// ContainerTypes lists the container types a destination may request.
func ContainerTypes() []string {
	return []string{"docker", "singularity", "apptainer", "podman"}
}

// ContainerDescription is a container a job may run in.
type ContainerDescription struct {
	Identifier          string
	Type                string
	ResolveDependencies bool
	Shell               string
}

// NewContainerDescription builds a description from a declared identifier and
// its attributes, applying defaults for the ones left out.
func NewContainerDescription(identifier string, attrs map[string]string) (*ContainerDescription, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("container requirement without an identifier")
	}
	c := &ContainerDescription{
		Identifier: identifier,
		Type:       DefaultContainerType,
		Shell:      DefaultContainerShell,
	}
	if t, ok := attrs["type"]; ok && t != "" {
		c.Type = t
	}
	if !slices.Contains(ContainerTypes(), c.Type) {
		return nil, fmt.Errorf("unknown container type %q for %s", c.Type, identifier)
	}
	if shell, ok := attrs["shell"]; ok && shell != "" {
		c.Shell = shell
	}
	if resolve, ok := attrs["resolve_dependencies"]; ok && resolve != "" {
		b, err := strconv.ParseBool(resolve)
		if err != nil {
			return nil, fmt.Errorf("invalid resolve_dependencies %q for %s: %w", resolve, identifier, err)
		}
		c.ResolveDependencies = b
	}
	return c, nil
}

// FromMap parses a container declared in the structured format.
func FromMap(m map[string]any) (*ContainerDescription, error) {
	attrs := make(map[string]string, len(m))
	for k, v := range m {
		attrs[k] = fmt.Sprint(v)
	}
	return NewContainerDescription(attrs["identifier"], attrs)
}

// ToMap renders the description in the shape stored in destination params.
func (c *ContainerDescription) ToMap() map[string]any {
	return map[string]any{
		"identifier":           c.Identifier,
		"type":                 c.Type,
		"resolve_dependencies": c.ResolveDependencies,
		"shell":                c.Shell,
	}
}

// IsContainerParam reports whether a destination param holds container
// descriptions.
func IsContainerParam(key string) bool {
	return key == "container" || key == "container_override"
}

// NormalizeContainers rewrites a list of structured container declarations
// into their canonical map form.
func NormalizeContainers(value any) ([]any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("container param must be a list, got %T", value)
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("container declaration must be a mapping, got %T", item)
		}
		c, err := FromMap(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c.ToMap())
	}
	return out, nil
}
