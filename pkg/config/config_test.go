//go:build unit || !integration

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 4, s.LocalJobQueueWorkers)
		assert.Equal(t, 2, s.LocalTaskQueueWorkers)
		assert.Equal(t, "main", s.ServerName)
		assert.Empty(t, s.JobConfigFile)
	})

	t.Run("file values", func(t *testing.T) {
		path := writeSettings(t, `
job_config_file: job_conf.yml
use_tasked_jobs: true
local_task_queue_workers: 6
tool_data_path: /data/tools
job_config:
  runners:
    local:
      load: jobconf.runners.local:LocalRunner
`)
		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "job_conf.yml", s.JobConfigFile)
		assert.True(t, s.UseTaskedJobs)
		assert.Equal(t, 6, s.LocalTaskQueueWorkers)
		assert.Equal(t, 4, s.LocalJobQueueWorkers)
		assert.Equal(t, filepath.Dir(path), s.ConfigDir)
		assert.Contains(t, s.JobConfig, "runners")
		assert.Equal(t, "/data/tools", s.ConfigDict()["tool_data_path"])
		assert.Equal(t, filepath.Join(filepath.Dir(path), "job_conf.yml"), s.ResolvePath(s.JobConfigFile))
	})

	t.Run("environment overrides", func(t *testing.T) {
		path := writeSettings(t, "server_name: web\n")
		t.Setenv(KeyAsEnvVar(ServerName), "handler0")
		t.Setenv(KeyAsEnvVar(LocalJobQueueWorkers), "9")
		t.Setenv(KeyAsEnvVar(UseTaskedJobs), "true")
		t.Setenv(KeyAsEnvVar(JobResourceParamsFile), "params.xml")
		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "handler0", s.ServerName)
		assert.Equal(t, 9, s.LocalJobQueueWorkers)
		assert.True(t, s.UseTaskedJobs)
		assert.Equal(t, "params.xml", s.JobResourceParamsFile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
	})
}

func TestKeyAsEnvVar(t *testing.T) {
	assert.Equal(t, "JOBCONF_JOB_CONFIG_FILE", KeyAsEnvVar(JobConfigFile))
	assert.Equal(t, "JOBCONF_DEFAULT_JOB_RESUBMISSION_CONDITION", KeyAsEnvVar(DefaultJobResubmissionCondition))
}

func TestResolvePath(t *testing.T) {
	s := &Settings{ConfigDir: "/etc/jobconf"}
	assert.Equal(t, "/etc/jobconf/job_conf.xml", s.ResolvePath("job_conf.xml"))
	assert.Equal(t, "/srv/job_conf.xml", s.ResolvePath("/srv/job_conf.xml"))
	assert.Equal(t, "", s.ResolvePath(""))
	assert.Equal(t, "job_conf.xml", (&Settings{}).ResolvePath("job_conf.xml"))
}

func TestConfigDict(t *testing.T) {
	s := Default()
	dict := s.ConfigDict()
	assert.Equal(t, "main", dict[ServerName])
	assert.Equal(t, 4, dict[LocalJobQueueWorkers])
}
