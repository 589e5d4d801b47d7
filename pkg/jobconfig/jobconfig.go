// Package jobconfig builds the job configuration of a process and answers
// the queries of the job submission path: which handler and destination run
// a tool's jobs, with which params, resources and limits.
//
// A JobConfiguration is built once and is safe for concurrent use. The only
// mutation after construction is the one time conversion of legacy
// destinations.
package jobconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/mohae/deepcopy"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/destination"
	"github.com/bacalhau-project/jobconf/pkg/handler"
	"github.com/bacalhau-project/jobconf/pkg/jobmetrics"
	"github.com/bacalhau-project/jobconf/pkg/limits"
	"github.com/bacalhau-project/jobconf/pkg/models"
	"github.com/bacalhau-project/jobconf/pkg/parser"
	"github.com/bacalhau-project/jobconf/pkg/resources"
	"github.com/bacalhau-project/jobconf/pkg/runner"
	"github.com/bacalhau-project/jobconf/pkg/toolmap"
)

var tracer = otel.Tracer("github.com/bacalhau-project/jobconf/pkg/jobconfig")

type options struct {
	runnerTable     *runner.Table
	metricsDefaults []models.MetricsPlugin
	parserOptions   []parser.Option
}

type Option func(*options)

// WithRunnerTable replaces the built in runner modules.
func WithRunnerTable(table *runner.Table) Option {
	return func(o *options) {
		o.runnerTable = table
	}
}

// WithMetricsDefaults sets the metrics plugins of destinations using the
// default metrics.
func WithMetricsDefaults(plugins []models.MetricsPlugin) Option {
	return func(o *options) {
		o.metricsDefaults = plugins
	}
}

// WithParserOptions are passed on to the parser when discovering the
// document.
func WithParserOptions(opts ...parser.Option) Option {
	return func(o *options) {
		o.parserOptions = append(o.parserOptions, opts...)
	}
}

type JobConfiguration struct {
	settings *config.Settings
	source   string
	document *models.Document

	handlers     *handler.Assignment
	destinations *destination.Registry
	metrics      *jobmetrics.Registry
	tools        *toolmap.Table
	resources    *resources.Registry
	limits       *limits.Limits
	runners      *runner.Registry
}

// New discovers the job configuration document of the settings and builds
// the job configuration from it.
func New(ctx context.Context, settings *config.Settings, opts ...Option) (*JobConfiguration, error) {
	ctx, span := tracer.Start(ctx, "pkg/jobconfig.New")
	defer span.End()

	o := newOptions(opts)
	doc, source, err := Discover(settings, o.parserOptions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to discover job configuration")
		return nil, err
	}
	span.SetAttributes(attribute.String("source", source))
	log.Ctx(ctx).Debug().Str("source", source).Msg("loading job configuration")

	jc, err := build(ctx, settings, doc, source, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build job configuration")
		return nil, err
	}
	return jc, nil
}

// FromDocument builds the job configuration from an already parsed document.
// The document is copied and normalized first.
func FromDocument(ctx context.Context, settings *config.Settings, doc *models.Document, opts ...Option) (*JobConfiguration, error) {
	if doc != nil {
		doc = deepcopy.Copy(doc).(*models.Document)
		doc.Normalize()
	}
	return build(ctx, settings, doc, parser.InlineSource, newOptions(opts))
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

//nolint:funlen
func build(ctx context.Context, settings *config.Settings, doc *models.Document, source string, o options) (*JobConfiguration, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job configuration %s: %w", source, err)
	}
	jc := &JobConfiguration{settings: settings, source: source, document: doc}

	var err error
	jc.handlers, err = handler.New(doc.Handling, settings.ServerName)
	if err != nil {
		return nil, fmt.Errorf("job handlers: %w", err)
	}

	var defaultResubmits []models.ResubmitRule
	if settings.DefaultJobResubmissionCondition != "" {
		defaultResubmits = []models.ResubmitRule{{Condition: settings.DefaultJobResubmissionCondition}}
	}
	jc.destinations, err = destination.NewRegistry(doc.Execution.Environments, doc.Execution.Default,
		destination.WithDefaultResubmits(defaultResubmits))
	if err != nil {
		return nil, fmt.Errorf("job destinations: %w", err)
	}

	jc.metrics = jobmetrics.NewRegistry(o.metricsDefaults)
	for _, ref := range jc.destinations.All() {
		if ref.ID() == "" {
			continue
		}
		conf := ref.Metrics()
		if conf.Src == models.MetricsSourcePath {
			conf.Path = settings.ResolvePath(conf.Path)
		}
		if err := jc.metrics.SetDestinationConf(ctx, ref.ID(), conf); err != nil {
			return nil, err
		}
	}

	jc.tools, err = toolmap.New(doc.Tools, jc.handlers.DefaultID(), jc.destinations.DefaultID())
	if err != nil {
		return nil, fmt.Errorf("tool mappings: %w", err)
	}
	jc.warnDanglingTools(ctx, doc.Tools)

	params, err := loadResourceParameters(ctx, settings)
	if err != nil {
		return nil, err
	}
	jc.resources = resources.NewRegistry(doc.Resources, params, jc.tools)

	jc.limits, err = limits.New(ctx, doc.Limits)
	if err != nil {
		return nil, fmt.Errorf("job limits: %w", err)
	}

	jc.runners = runner.NewRegistry(runner.RegistryParams{
		Settings:    settings,
		Plugins:     doc.Runners,
		Assignments: jc.handlers,
		Table:       o.runnerTable,
	})

	log.Ctx(ctx).Info().
		Str("source", source).
		Int("destinations", len(jc.destinations.All())).
		Int("runners", len(doc.Runners)).
		Str("default_destination", jc.destinations.DefaultID()).
		Str("default_handler", jc.handlers.DefaultID()).
		Msg("job configuration loaded")
	return jc, nil
}

func (jc *JobConfiguration) warnDanglingTools(ctx context.Context, tools []*models.ToolEntry) {
	for _, tool := range tools {
		name := tool.ID + tool.Class
		if tool.Environment != "" && !jc.destinations.IsID(tool.Environment) && !jc.destinations.IsTag(tool.Environment) {
			log.Ctx(ctx).Warn().Str("tool", name).Str("destination", tool.Environment).
				Msg("tool is mapped to an unknown destination")
		}
		if tool.Handler != "" {
			if _, ok := jc.handlers.Handlers(tool.Handler); !ok {
				log.Ctx(ctx).Warn().Str("tool", name).Str("handler", tool.Handler).
					Msg("tool is mapped to an unknown handler")
			}
		}
	}
}

func loadResourceParameters(ctx context.Context, settings *config.Settings) (map[string]resources.FieldDefinition, error) {
	if settings.JobResourceParamsFile == "" {
		return nil, nil
	}
	path := settings.ResolvePath(settings.JobResourceParamsFile)
	params, err := resources.LoadParameters(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Ctx(ctx).Debug().Str("path", path).Msg("no job resource parameters file, resource groups are empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job resource parameters: %w", err)
	}
	return params, nil
}

// Source is the path of the document the configuration was built from, or
// a placeholder for inline and default documents.
func (jc *JobConfiguration) Source() string {
	return jc.source
}

// Document returns a copy of the normalized document.
func (jc *JobConfiguration) Document() *models.Document {
	return deepcopy.Copy(jc.document).(*models.Document)
}

func (jc *JobConfiguration) Settings() *config.Settings {
	return jc.settings
}

func (jc *JobConfiguration) DefaultDestinationID() string {
	return jc.destinations.DefaultID()
}

func (jc *JobConfiguration) DefaultHandlerID() string {
	return jc.handlers.DefaultID()
}

func (jc *JobConfiguration) Handlers() *handler.Assignment {
	return jc.handlers
}

func (jc *JobConfiguration) Metrics() *jobmetrics.Registry {
	return jc.metrics
}

// Dynamic returns the parameters of rule based destination resolution.
func (jc *JobConfiguration) Dynamic() map[string]any {
	if jc.document.Dynamic == nil {
		return nil
	}
	return deepcopy.Copy(jc.document.Dynamic).(map[string]any)
}

// DefaultJobToolConfiguration is the configuration of tools without one of
// their own.
func (jc *JobConfiguration) DefaultJobToolConfiguration() toolmap.Entry {
	return jc.tools.Default()
}

// GetJobToolConfigurations returns the configurations of the first of ids
// that has any, else of the first of classes that has any, else the default
// configuration. ids are forms of one tool id, most specific first.
func (jc *JobConfiguration) GetJobToolConfigurations(ids []string, classes []string) []toolmap.Entry {
	return jc.tools.Lookup(ids, classes)
}

// ToolConfigurations looks up the configurations of a tool id through its
// fallback forms.
func (jc *JobConfiguration) ToolConfigurations(toolID string, classes []string) []toolmap.Entry {
	return jc.tools.Lookup(toolmap.FallbackIDs(toolID), classes)
}

// GetDestination returns a copy of the destination with the given id, or of
// one destination carrying the given tag. Callers may modify the copy.
func (jc *JobConfiguration) GetDestination(idOrTag string) (*models.Destination, error) {
	return jc.destinations.Get(idOrTag)
}

// GetDestinations returns read-only references to the destination with the
// given id or to every destination carrying the given tag.
func (jc *JobConfiguration) GetDestinations(idOrTag string) (destination.Collection, error) {
	return jc.destinations.GetAll(idOrTag)
}

// Destinations returns read-only references to every destination.
func (jc *JobConfiguration) Destinations() []destination.Ref {
	return jc.destinations.All()
}

func (jc *JobConfiguration) IsID(c destination.Collection) bool {
	return c.IsID()
}

func (jc *JobConfiguration) IsTag(c destination.Collection) bool {
	return c.IsTag()
}

// GetJobRunnerPlugins instantiates the runner plugins of a handler. Callers
// pass the result to ConvertLegacyDestinations once.
func (jc *JobConfiguration) GetJobRunnerPlugins(ctx context.Context, handlerID string) (map[string]runner.Runner, error) {
	return jc.runners.Load(ctx, handlerID)
}

// RunnerPluginIDs returns the ids of the configured runner plugins.
func (jc *JobConfiguration) RunnerPluginIDs() []string {
	return jc.runners.PluginIDs()
}

// ConvertLegacyDestinations translates the urls of legacy destinations into
// params with the loaded runners. Destinations are converted at most once.
func (jc *JobConfiguration) ConvertLegacyDestinations(ctx context.Context, runners map[string]runner.Runner) {
	jc.destinations.ConvertLegacy(ctx, runners)
}

// ToolResourceFields returns the resource parameters offered for a tool.
func (jc *JobConfiguration) ToolResourceFields(toolID, toolType string) ([]resources.FieldDefinition, error) {
	return jc.resources.FieldsFor(toolID, toolType)
}

// GetToolResourceXML renders the resource selector of a tool. It returns an
// empty string when the tool is offered no resource parameters.
func (jc *JobConfiguration) GetToolResourceXML(toolID, toolType string) (string, error) {
	c, err := jc.resources.ConditionalFor(toolID, toolType)
	if err != nil || c == nil {
		return "", err
	}
	return c.XML()
}

// Limits returns a copy of the limits table.
func (jc *JobConfiguration) Limits() *limits.Limits {
	return jc.limits.Copy()
}

// LimitFor returns the concurrent job limit of a scope.
func (jc *JobConfiguration) LimitFor(kind limits.ScopeKind, id string) (int, bool) {
	return jc.limits.ForScope(kind, id)
}
