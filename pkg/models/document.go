package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultWorkers is the worker pool size of a runner plugin that declares none.
	DefaultWorkers = 4

	// DynamicRunnerID is not a real runner. Its parameters are kept aside for
	// rule based destination resolution.
	DynamicRunnerID = "dynamic"

	// RulesDispatcherRunner routes an environment through the dynamic runner
	// backed by an external rules package.
	RulesDispatcherRunner   = "rules_dispatcher"
	RulesDispatcherFunction = "map_tool_to_destination"
	RulesDispatcherModule   = "rules_engine.rules"
)

// Document is the normalized job configuration. Both the markup and the
// structured front ends produce it, and every registry is built from it.
type Document struct {
	Runners   map[string]*RunnerPlugin `yaml:"runners,omitempty" json:"runners,omitempty" validate:"dive"`
	Dynamic   map[string]any           `yaml:"dynamic,omitempty" json:"dynamic,omitempty"`
	Handling  *Handling                `yaml:"handling,omitempty" json:"handling,omitempty"`
	Execution Execution                `yaml:"execution" json:"execution"`
	Resources *Resources               `yaml:"resources,omitempty" json:"resources,omitempty"`
	Tools     []*ToolEntry             `yaml:"tools,omitempty" json:"tools,omitempty"`
	Limits    []*LimitEntry            `yaml:"limits,omitempty" json:"limits,omitempty" validate:"dive"`
}

// RunnerPlugin describes a runner to instantiate. Every key that is not
// load or workers is handed to the runner constructor.
type RunnerPlugin struct {
	ID      string         `yaml:"-" json:"-"`
	Load    string         `yaml:"load" json:"load" validate:"required"`
	Workers int            `yaml:"workers,omitempty" json:"workers,omitempty" validate:"gte=1"`
	Kwds    map[string]any `yaml:",inline" json:"-"`
}

// Handling declares the handler processes. Order keeps the ids of Processes
// in declaration order.
type Handling struct {
	Order           []string                   `yaml:"-" json:"-"`
	Assign          []string                   `yaml:"assign,omitempty" json:"assign,omitempty"`
	MaxGrab         int                        `yaml:"max_grab,omitempty" json:"max_grab,omitempty" validate:"gte=0"`
	ReadyWindowSize int                        `yaml:"ready_window_size,omitempty" json:"ready_window_size,omitempty" validate:"gte=0"`
	Default         string                     `yaml:"default,omitempty" json:"default,omitempty"`
	Processes       map[string]*HandlerProcess `yaml:"processes,omitempty" json:"processes,omitempty"`
}

func (h *Handling) UnmarshalYAML(value *yaml.Node) error {
	type plain Handling
	if err := value.Decode((*plain)(h)); err != nil {
		return err
	}
	h.Order = nil
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value != "processes" {
			continue
		}
		processes := value.Content[i+1].Content
		for j := 0; j+1 < len(processes); j += 2 {
			h.Order = append(h.Order, processes[j].Value)
		}
	}
	return nil
}

func (h Handling) MarshalYAML() (any, error) {
	type plain Handling
	node := &yaml.Node{}
	if err := node.Encode(plain(h)); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "processes" {
			continue
		}
		pairs := node.Content[i+1].Content
		ordered := make([]*yaml.Node, 0, len(pairs))
		for _, id := range h.ProcessIDs() {
			for j := 0; j+1 < len(pairs); j += 2 {
				if pairs[j].Value == id {
					ordered = append(ordered, pairs[j], pairs[j+1])
					break
				}
			}
		}
		node.Content[i+1].Content = ordered
	}
	return node, nil
}

// ProcessIDs returns the handler ids in declaration order. Ids missing from
// Order follow in lexical order.
func (h *Handling) ProcessIDs() []string {
	ids := make([]string, 0, len(h.Processes))
	for _, id := range h.Order {
		if _, ok := h.Processes[id]; ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	var rest []string
	for id := range h.Processes {
		if !slices.Contains(ids, id) {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	return append(ids, rest...)
}

type HandlerProcess struct {
	Tags    []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Plugins []string `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

type Execution struct {
	Default      string       `yaml:"default,omitempty" json:"default,omitempty"`
	Environments Environments `yaml:"environments,omitempty" json:"environments,omitempty" validate:"dive"`
}

// Environments keeps declaration order. The structured format accepts a list
// of records carrying an id, or a mapping keyed by id.
type Environments []*Environment

func (e *Environments) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []*Environment
		if err := value.Decode(&list); err != nil {
			return err
		}
		*e = list
	case yaml.MappingNode:
		out := make(Environments, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			env := &Environment{}
			if err := value.Content[i+1].Decode(env); err != nil {
				return err
			}
			env.ID = value.Content[i].Value
			out = append(out, env)
		}
		*e = out
	case yaml.ScalarNode:
		if value.Tag != "!!null" {
			return fmt.Errorf("line %d: environments must be a list or a mapping", value.Line)
		}
		*e = nil
	default:
		return fmt.Errorf("line %d: environments must be a list or a mapping", value.Line)
	}
	return nil
}

// Environment is a destination as declared in a configuration document.
// Keys without a dedicated field are destination params.
type Environment struct {
	ID       string          `yaml:"id,omitempty" json:"id,omitempty"`
	Runner   string          `yaml:"runner,omitempty" json:"runner,omitempty"`
	URL      string          `yaml:"url,omitempty" json:"url,omitempty"`
	Tags     []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	Env      []*EnvVar       `yaml:"env,omitempty" json:"env,omitempty" validate:"dive"`
	Resubmit []*ResubmitRule `yaml:"resubmit,omitempty" json:"resubmit,omitempty"`
	Metrics  *MetricsConf    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Params   map[string]any  `yaml:",inline" json:"-"`
}

type Resources struct {
	Default string              `yaml:"default,omitempty" json:"default,omitempty"`
	Groups  map[string][]string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// ToolEntry maps a tool id or a tool class to a handler and a destination.
type ToolEntry struct {
	ID          string         `yaml:"id,omitempty" json:"id,omitempty"`
	Class       string         `yaml:"class,omitempty" json:"class,omitempty"`
	Handler     string         `yaml:"handler,omitempty" json:"handler,omitempty"`
	Environment string         `yaml:"environment,omitempty" json:"environment,omitempty"`
	Resources   string         `yaml:"resources,omitempty" json:"resources,omitempty"`
	Params      map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// LimitEntry is a single limit declaration. Values stay textual until the
// limits table interprets them by type.
type LimitEntry struct {
	Type   string `yaml:"type" json:"type" validate:"required,limit_type"`
	Value  string `yaml:"value,omitempty" json:"value,omitempty"`
	ID     string `yaml:"id,omitempty" json:"id,omitempty"`
	Tag    string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Window string `yaml:"window,omitempty" json:"window,omitempty"`
}

// Normalize makes documents coming from different front ends comparable:
// empty collections become nil, runner ids and worker counts are filled in
// and metrics default to the default source.
func (d *Document) Normalize() {
	if d == nil {
		return
	}
	if len(d.Runners) == 0 {
		d.Runners = nil
	}
	for id, runner := range d.Runners {
		if runner == nil {
			runner = &RunnerPlugin{}
			d.Runners[id] = runner
		}
		runner.ID = id
		if runner.Workers == 0 {
			runner.Workers = DefaultWorkers
		}
		if len(runner.Kwds) == 0 {
			runner.Kwds = nil
		}
	}
	if len(d.Dynamic) == 0 {
		d.Dynamic = nil
	}
	if d.Handling != nil {
		if len(d.Handling.Assign) == 0 {
			d.Handling.Assign = nil
		}
		if len(d.Handling.Processes) == 0 {
			d.Handling.Processes = nil
		}
		for id, process := range d.Handling.Processes {
			if process == nil {
				process = &HandlerProcess{}
				d.Handling.Processes[id] = process
			}
			if len(process.Tags) == 0 {
				process.Tags = nil
			}
			if len(process.Plugins) == 0 {
				process.Plugins = nil
			}
		}
		d.Handling.Order = d.Handling.ProcessIDs()
		if len(d.Handling.Order) == 0 {
			d.Handling.Order = nil
		}
	}
	d.Execution.Environments = compact(d.Execution.Environments)
	d.Tools = compact(d.Tools)
	d.Limits = compact(d.Limits)
	if len(d.Execution.Environments) == 0 {
		d.Execution.Environments = nil
	}
	for _, env := range d.Execution.Environments {
		env.Normalize()
	}
	if d.Resources != nil && len(d.Resources.Groups) == 0 {
		d.Resources.Groups = nil
	}
	if len(d.Tools) == 0 {
		d.Tools = nil
	}
	for _, tool := range d.Tools {
		if len(tool.Params) == 0 {
			tool.Params = nil
		}
	}
	if len(d.Limits) == 0 {
		d.Limits = nil
	}
}

func compact[S ~[]*T, T any](items S) S {
	out := items[:0]
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

func (e *Environment) Normalize() {
	if e == nil {
		return
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	if len(e.Env) == 0 {
		e.Env = nil
	}
	if len(e.Resubmit) == 0 {
		e.Resubmit = nil
	}
	if len(e.Params) == 0 {
		e.Params = nil
	}
	if e.Metrics == nil {
		e.Metrics = &MetricsConf{Src: MetricsSourceDefault}
	}
	e.Metrics.Plugins = compact(e.Metrics.Plugins)
	if len(e.Metrics.Plugins) == 0 {
		e.Metrics.Plugins = nil
	}
	for _, plugin := range e.Metrics.Plugins {
		if len(plugin.Params) == 0 {
			plugin.Params = nil
		}
	}
}

// Validate checks the structural constraints of the document. Cross
// references between sections are checked by the registries built from it.
func (d *Document) Validate() error {
	if d == nil {
		return errors.New("nil job configuration document")
	}
	var mErr multierror.Error
	if err := documentValidator().Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, verr := range verrs {
				mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid value for %s: failed on %q", verr.Namespace(), verr.Tag()))
			}
		} else {
			mErr.Errors = append(mErr.Errors, err)
		}
	}
	for _, env := range d.Execution.Environments {
		if env.Runner == "" && env.URL == "" {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("environment %q declares neither a runner nor a url", env.ID))
		}
		if err := env.Metrics.Validate(); err != nil {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("environment %q: %w", env.ID, err))
		}
	}
	return mErr.ErrorOrNil()
}
