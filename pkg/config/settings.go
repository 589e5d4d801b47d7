// Package config holds the application settings the job configuration is
// built against.
package config

import (
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

const (
	JobConfigFile                   = "job_config_file"
	JobConfig                       = "job_config"
	UseTaskedJobs                   = "use_tasked_jobs"
	LocalJobQueueWorkers            = "local_job_queue_workers"
	LocalTaskQueueWorkers           = "local_task_queue_workers"
	DefaultJobResubmissionCondition = "default_job_resubmission_condition"
	JobResourceParamsFile           = "job_resource_params_file"
	ServerName                      = "server_name"
	ConfigDir                       = "config_dir"
)

// EnvKeys lists the settings that may be overridden from the environment.
// The inline job configuration is structured and can only come from a file.
func EnvKeys() []string {
	return []string{
		JobConfigFile,
		UseTaskedJobs,
		LocalJobQueueWorkers,
		LocalTaskQueueWorkers,
		DefaultJobResubmissionCondition,
		JobResourceParamsFile,
		ServerName,
		ConfigDir,
	}
}

type Settings struct {
	JobConfigFile string `yaml:"job_config_file,omitempty" mapstructure:"job_config_file"`
	// JobConfig is an inline job configuration. It takes precedence over
	// JobConfigFile.
	JobConfig                       map[string]any `yaml:"job_config,omitempty" mapstructure:"job_config"`
	UseTaskedJobs                   bool           `yaml:"use_tasked_jobs,omitempty" mapstructure:"use_tasked_jobs"`
	LocalJobQueueWorkers            int            `yaml:"local_job_queue_workers,omitempty" mapstructure:"local_job_queue_workers"`
	LocalTaskQueueWorkers           int            `yaml:"local_task_queue_workers,omitempty" mapstructure:"local_task_queue_workers"`
	DefaultJobResubmissionCondition string         `yaml:"default_job_resubmission_condition,omitempty" mapstructure:"default_job_resubmission_condition"`
	JobResourceParamsFile           string         `yaml:"job_resource_params_file,omitempty" mapstructure:"job_resource_params_file"`
	ServerName                      string         `yaml:"server_name,omitempty" mapstructure:"server_name"`
	ConfigDir                       string         `yaml:"config_dir,omitempty" mapstructure:"config_dir"`

	extra map[string]any
}

func Default() Settings {
	return Settings{
		LocalJobQueueWorkers:  4,
		LocalTaskQueueWorkers: 2,
		ServerName:            "main",
	}
}

// ConfigDict returns every loaded settings key, including keys this package
// does not know about. Params declared with from_config are looked up here.
func (s *Settings) ConfigDict() map[string]any {
	out := make(map[string]any, len(s.extra))
	for k, v := range s.extra {
		out[k] = v
	}
	var known map[string]any
	if err := mapstructure.Decode(s, &known); err == nil {
		for k, v := range known {
			out[k] = v
		}
	}
	return out
}

// ResolvePath resolves a path relative to the settings directory.
func (s *Settings) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || s.ConfigDir == "" {
		return path
	}
	return filepath.Join(s.ConfigDir, path)
}
