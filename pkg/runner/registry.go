package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/models"
)

type RegistryParams struct {
	Settings    *config.Settings
	Plugins     map[string]*models.RunnerPlugin
	Assignments PluginAssignments
	// Table defaults to DefaultTable.
	Table *Table
}

// Registry instantiates the runner plugins of a job configuration.
type Registry struct {
	settings    *config.Settings
	plugins     map[string]*models.RunnerPlugin
	assignments PluginAssignments
	table       *Table
}

func NewRegistry(params RegistryParams) *Registry {
	table := params.Table
	if table == nil {
		table = DefaultTable()
	}
	return &Registry{
		settings:    params.Settings,
		plugins:     params.Plugins,
		assignments: params.Assignments,
		table:       table,
	}
}

// PluginIDs returns the ids of the configured runner plugins.
func (r *Registry) PluginIDs() []string {
	ids := maps.Keys(r.plugins)
	slices.Sort(ids)
	return ids
}

// Load instantiates the runner plugins handlerID should run. A handler with
// assigned plugins loads only those, any other handler loads all of them.
//
// Instances are not cached: every call constructs new runners. A handler
// process loads its runners once at startup.
//
// Plugins that cannot be loaded are logged and skipped. An error is only
// returned when a runner constructor itself fails.
func (r *Registry) Load(ctx context.Context, handlerID string) (map[string]Runner, error) {
	ids := r.PluginIDs()
	if r.assignments != nil {
		if assigned, ok := r.assignments.RunnerIDsFor(handlerID); ok {
			ids = slices.Clone(assigned)
		}
	}

	runners := make(map[string]Runner, len(ids))
	for _, id := range ids {
		plugin, ok := r.plugins[id]
		if !ok {
			log.Ctx(ctx).Warn().Str("runner", id).Str("handler", handlerID).
				Msg("handler is assigned a job runner that is not configured")
			continue
		}
		module, classes, err := r.table.Resolve(plugin.Load)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("runner", id).Str("load", plugin.Load).
				Msg("job runner is not loadable")
			continue
		}
		for _, name := range classes {
			class, ok := module.Classes[name]
			if !ok || !class.isRunner() {
				log.Ctx(ctx).Warn().Str("runner", id).Str("class", name).
					Msg("job runner module does not provide a runner by that name, skipping")
				continue
			}
			instance, err := r.instantiate(ctx, plugin, class)
			if err != nil {
				return nil, err
			}
			runners[id] = instance
			log.Ctx(ctx).Debug().Str("runner", id).Int("workers", instance.Workers()).Msg("loaded job runner")
		}
	}
	return runners, nil
}

func (r *Registry) instantiate(ctx context.Context, plugin *models.RunnerPlugin, class Class) (Runner, error) {
	if class.New != nil {
		instance, err := class.New(Params{
			ID:       plugin.ID,
			Settings: r.settings,
			Workers:  plugin.Workers,
			Kwds:     maps.Clone(plugin.Kwds),
		})
		if err == nil {
			return instance, nil
		}
		if !errors.Is(err, ErrUnsupportedArguments) || class.NewLegacy == nil {
			return nil, fmt.Errorf("failed to construct job runner %s: %w", plugin.ID, err)
		}
	}
	log.Ctx(ctx).Warn().Str("runner", plugin.ID).
		Msg("job runner does not accept workers or keyword arguments, constructed without them")
	instance, err := class.NewLegacy(plugin.ID, r.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to construct job runner %s: %w", plugin.ID, err)
	}
	return instance, nil
}
