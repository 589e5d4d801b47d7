package models

import (
	"fmt"

	"github.com/mohae/deepcopy"
	"golang.org/x/exp/slices"
)

// EnvVar is an environment variable exported to jobs sent to a destination.
// Exactly one of Value, File or Execute is meaningful. Name is required with
// Value and ignored otherwise.
type EnvVar struct {
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Value   string `yaml:"value,omitempty" json:"value,omitempty"`
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	Execute string `yaml:"execute,omitempty" json:"execute,omitempty"`
	// Raw disables shell quoting of Value.
	Raw bool `yaml:"raw,omitempty" json:"raw,omitempty"`
}

// ResubmitRule sends a failed job somewhere else when Condition holds.
type ResubmitRule struct {
	Condition   string `yaml:"condition,omitempty" json:"condition,omitempty"`
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Handler     string `yaml:"handler,omitempty" json:"handler,omitempty"`
	Delay       string `yaml:"delay,omitempty" json:"delay,omitempty"`
}

type MetricsSource string

const (
	MetricsSourceDefault  MetricsSource = "default"
	MetricsSourceDisabled MetricsSource = "disabled"
	MetricsSourceInline   MetricsSource = "inline"
	MetricsSourcePath     MetricsSource = "path"
)

func MetricsSources() []string {
	return []string{
		string(MetricsSourceDefault),
		string(MetricsSourceDisabled),
		string(MetricsSourceInline),
		string(MetricsSourcePath),
	}
}

// MetricsConf selects the job metrics collected for a destination.
type MetricsConf struct {
	Src     MetricsSource    `yaml:"src" json:"src"`
	Path    string           `yaml:"path,omitempty" json:"path,omitempty"`
	Plugins []*MetricsPlugin `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

type MetricsPlugin struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:",inline" json:"-"`
}

func (m *MetricsConf) Validate() error {
	if m == nil {
		return nil
	}
	switch m.Src {
	case MetricsSourceDefault, MetricsSourceDisabled:
	case MetricsSourceInline:
		for _, plugin := range m.Plugins {
			if plugin == nil || plugin.Type == "" {
				return fmt.Errorf("inline metrics plugin without a type")
			}
		}
	case MetricsSourcePath:
		if m.Path == "" {
			return fmt.Errorf("metrics source %q requires a path", m.Src)
		}
	default:
		return fmt.Errorf("unknown metrics source %q", m.Src)
	}
	return nil
}

// Copy returns a deep copy of the metrics config
func (m MetricsConf) Copy() MetricsConf {
	out := MetricsConf{Src: m.Src, Path: m.Path}
	for _, plugin := range m.Plugins {
		out.Plugins = append(out.Plugins, &MetricsPlugin{
			Type:   plugin.Type,
			Params: deepCopyParams(plugin.Params),
		})
	}
	return out
}

// Destination is a resolved execution target.
type Destination struct {
	ID     string
	Runner string
	// Params may hold structured values such as container descriptions.
	Params   map[string]any
	Env      []EnvVar
	Resubmit []ResubmitRule
	Tags     []string
	// URL is the connection string a legacy destination was declared with.
	URL       string
	Legacy    bool
	Converted bool
	Metrics   MetricsConf
}

// NewDestination builds the destination record for a declared environment.
// An environment declared with a url is a legacy destination whose runner is
// the url scheme unless given explicitly.
func NewDestination(env *Environment, defaultResubmits []ResubmitRule) *Destination {
	d := &Destination{
		ID:     env.ID,
		Runner: env.Runner,
		Params: deepCopyParams(env.Params),
		Tags:   slices.Clone(env.Tags),
		URL:    env.URL,
		Legacy: env.URL != "",
	}
	if d.Params == nil {
		d.Params = make(map[string]any)
	}
	if d.Legacy && d.Runner == "" {
		d.Runner = URLScheme(env.URL)
	}
	for _, v := range env.Env {
		d.Env = append(d.Env, *v)
	}
	for _, r := range env.Resubmit {
		d.Resubmit = append(d.Resubmit, *r)
	}
	if len(d.Resubmit) == 0 {
		d.Resubmit = slices.Clone(defaultResubmits)
	}
	if env.Metrics != nil {
		d.Metrics = env.Metrics.Copy()
	} else {
		d.Metrics = MetricsConf{Src: MetricsSourceDefault}
	}
	return d
}

// Copy returns a deep copy of the destination. Callers may mutate the copy,
// including nested param values, without affecting the original.
func (d *Destination) Copy() *Destination {
	if d == nil {
		return nil
	}
	return &Destination{
		ID:        d.ID,
		Runner:    d.Runner,
		Params:    deepCopyParams(d.Params),
		Env:       slices.Clone(d.Env),
		Resubmit:  slices.Clone(d.Resubmit),
		Tags:      slices.Clone(d.Tags),
		URL:       d.URL,
		Legacy:    d.Legacy,
		Converted: d.Converted,
		Metrics:   d.Metrics.Copy(),
	}
}

// URLScheme returns the part of a legacy destination url before the first colon.
func URLScheme(url string) string {
	for i, c := range url {
		if c == ':' {
			return url[:i]
		}
	}
	return url
}

func deepCopyParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	return deepcopy.Copy(params).(map[string]any)
}
