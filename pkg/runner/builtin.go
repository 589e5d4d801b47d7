package runner

import (
	"regexp"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/models"
)

// BaseRunner is the runner record shared by the built-in plugins.
type BaseRunner struct {
	id        string
	workers   int
	kwds      map[string]any
	translate func(url string) map[string]any
}

func (r *BaseRunner) ID() string {
	return r.id
}

func (r *BaseRunner) Workers() int {
	return r.workers
}

// Kwds returns the keyword arguments the runner was constructed with.
func (r *BaseRunner) Kwds() map[string]any {
	return maps.Clone(r.kwds)
}

func (r *BaseRunner) URLToDestination(url string) (map[string]any, error) {
	if r.translate == nil {
		return map[string]any{}, nil
	}
	return r.translate(url), nil
}

func newClass(translate func(string) map[string]any) Class {
	return Class{
		New: func(params Params) (Runner, error) {
			workers := params.Workers
			if workers <= 0 {
				workers = models.DefaultWorkers
			}
			return &BaseRunner{id: params.ID, workers: workers, kwds: maps.Clone(params.Kwds), translate: translate}, nil
		},
	}
}

// taskClass only understands a worker count. Keyword arguments send it
// through its legacy constructor, which sizes the pool from the settings.
func taskClass() Class {
	return Class{
		New: func(params Params) (Runner, error) {
			if len(params.Kwds) > 0 {
				return nil, ErrUnsupportedArguments
			}
			return &BaseRunner{id: params.ID, workers: params.Workers}, nil
		},
		NewLegacy: func(id string, settings *config.Settings) (Runner, error) {
			workers := config.Default().LocalTaskQueueWorkers
			if settings != nil && settings.LocalTaskQueueWorkers > 0 {
				workers = settings.LocalTaskQueueWorkers
			}
			return &BaseRunner{id: id, workers: workers}, nil
		},
	}
}

// nativeSpecification reads drmaa://NATIVE SPEC/ style urls.
func nativeSpecification(url string) map[string]any {
	parts := strings.Split(url, "/")
	if len(parts) < 3 || parts[2] == "" {
		return map[string]any{}
	}
	return map[string]any{"nativeSpecification": parts[2]}
}

var privateTokenPattern = regexp.MustCompile(`^https?://(.*)@.*/?`)

// pulsarParams reads pulsar://https://TOKEN@host:port/ style urls. The token
// is optional.
func pulsarParams(url string) map[string]any {
	url = strings.TrimPrefix(url, "pulsar://")
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	params := map[string]any{}
	if m := privateTokenPattern.FindStringSubmatch(url); m != nil {
		params["private_token"] = m[1]
		url = strings.Replace(url, m[1]+"@", "", 1)
	}
	params["url"] = url
	return params
}

// builtins are the runner modules every table starts with.
func builtins() map[string]Module {
	module := func(class string, c Class) Module {
		return Module{Exports: []string{class}, Classes: map[string]Class{class: c}}
	}
	return map[string]Module{
		Namespace + ".local":      module("LocalRunner", newClass(nil)),
		Namespace + ".tasks":      module("TaskRunner", taskClass()),
		Namespace + ".drmaa":      module("DRMAAJobRunner", newClass(nativeSpecification)),
		Namespace + ".slurm":      module("SlurmJobRunner", newClass(nativeSpecification)),
		Namespace + ".condor":     module("CondorJobRunner", newClass(nil)),
		Namespace + ".kubernetes": module("KubernetesJobRunner", newClass(nil)),
		Namespace + ".pulsar":     module("PulsarRESTJobRunner", newClass(pulsarParams)),
	}
}

// DefaultTable returns a table holding the built-in runner modules.
func DefaultTable() *Table {
	return NewTable(builtins())
}
