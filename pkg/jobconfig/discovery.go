package jobconfig

import (
	"errors"
	"io/fs"
	"os"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/models"
	"github.com/bacalhau-project/jobconf/pkg/parser"
	"github.com/bacalhau-project/jobconf/pkg/runner"
)

const (
	// DefaultSource names the built in configuration used when no document
	// is configured or found.
	DefaultSource = "<default job configuration>"

	defaultID = "local"
	tasksID   = "tasks"
)

// SearchFiles are the job configuration files looked for in the settings
// directory, in order, when no file is configured.
func SearchFiles() []string {
	return []string{"job_conf.yml", "job_conf.yaml", "job_conf.xml"}
}

// DefaultDocument is the configuration of a single local runner and a single
// local destination. A tasks runner is added when tasked jobs are enabled.
func DefaultDocument(settings *config.Settings) *models.Document {
	doc := &models.Document{
		Runners: map[string]*models.RunnerPlugin{
			defaultID: {
				Load:    runner.Namespace + ".local:LocalRunner",
				Workers: settings.LocalJobQueueWorkers,
			},
		},
		Execution: models.Execution{
			Default:      defaultID,
			Environments: models.Environments{{ID: defaultID, Runner: defaultID}},
		},
	}
	if settings.UseTaskedJobs {
		doc.Runners[tasksID] = &models.RunnerPlugin{
			Load:    runner.Namespace + ".tasks:TaskRunner",
			Workers: settings.LocalTaskQueueWorkers,
		}
	}
	doc.Normalize()
	return doc
}

// Discover finds and parses the job configuration document of the settings.
// An inline document wins over a configured file, which must exist. Without
// either the settings directory is searched, and the default document is
// used when nothing is found. It returns the document and where it came from.
func Discover(settings *config.Settings, opts ...parser.Option) (*models.Document, string, error) {
	opts = append([]parser.Option{parser.WithConfigDict(settings.ConfigDict())}, opts...)

	if len(settings.JobConfig) > 0 {
		doc, err := parser.ParseMap(settings.JobConfig)
		return doc, parser.InlineSource, err
	}
	if settings.JobConfigFile != "" {
		path := settings.ResolvePath(settings.JobConfigFile)
		doc, err := parser.ParseFile(path, opts...)
		return doc, path, err
	}
	if path, ok := searchConfigDir(settings); ok {
		doc, err := parser.ParseFile(path, opts...)
		return doc, path, err
	}
	return DefaultDocument(settings), DefaultSource, nil
}

func searchConfigDir(settings *config.Settings) (string, bool) {
	for _, name := range SearchFiles() {
		path := settings.ResolvePath(name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, true
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			// unreadable candidates are reported by the parser
			return path, true
		}
	}
	return "", false
}
