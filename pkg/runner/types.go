//go:generate mockgen --source types.go --destination mocks.go --package runner
package runner

import (
	"errors"

	"github.com/bacalhau-project/jobconf/pkg/config"
)

// Runner is a loaded job runner plugin. Job execution itself happens
// elsewhere; the job configuration only needs a runner's identity and its
// translation of legacy destination urls.
type Runner interface {
	// ID is the plugin id the runner was loaded under.
	ID() string
	// Workers is the size of the runner's worker pool.
	Workers() int
	// URLToDestination translates a legacy destination url into destination
	// params.
	URLToDestination(url string) (map[string]any, error)
}

// Params are the arguments a runner is constructed with.
type Params struct {
	ID       string
	Settings *config.Settings
	Workers  int
	Kwds     map[string]any
}

// ErrUnsupportedArguments is returned by a constructor that cannot take a
// worker count or keyword arguments. The registry then falls back to the
// legacy constructor.
var ErrUnsupportedArguments = errors.New("job runner does not accept workers or keyword arguments")

// Class is a runner implementation. A class without any constructor is not
// a runner and is skipped when loaded.
type Class struct {
	New       func(params Params) (Runner, error)
	NewLegacy func(id string, settings *config.Settings) (Runner, error)
}

func (c Class) isRunner() bool {
	return c.New != nil || c.NewLegacy != nil
}

// Module groups runner classes under a load path.
type Module struct {
	// Exports are the class names loaded when a plugin names only the
	// module. A module without exports can only be loaded as module:Class.
	Exports []string
	Classes map[string]Class
}

// PluginAssignments tells which runner plugins a handler loads.
type PluginAssignments interface {
	// RunnerIDsFor returns the plugin ids assigned to handlerID. The second
	// result is false when the handler loads every plugin.
	RunnerIDsFor(handlerID string) ([]string, bool)
}
