//go:build unit || !integration

package jobconfig

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/destination"
	"github.com/bacalhau-project/jobconf/pkg/limits"
	"github.com/bacalhau-project/jobconf/pkg/logger"
	"github.com/bacalhau-project/jobconf/pkg/models"
	"github.com/bacalhau-project/jobconf/pkg/toolmap"
)

const bwaMem = "toolshed.example.org/repos/devteam/bwa/bwa_mem/0.7.17"

type JobConfigurationSuite struct {
	suite.Suite
	ctx      context.Context
	settings *config.Settings
	jc       *JobConfiguration
}

func TestJobConfigurationSuite(t *testing.T) {
	suite.Run(t, new(JobConfigurationSuite))
}

func (s *JobConfigurationSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()

	dir, err := filepath.Abs("testdata")
	s.Require().NoError(err)
	settings := config.Default()
	settings.ConfigDir = dir
	settings.JobResourceParamsFile = "job_resource_params_conf.xml"
	s.settings = &settings

	s.jc, err = New(s.ctx, s.settings)
	s.Require().NoError(err)
}

func (s *JobConfigurationSuite) TestDiscoveredInConfigDir() {
	s.Equal(filepath.Join(s.settings.ConfigDir, "job_conf.yml"), s.jc.Source())
	s.Equal("local", s.jc.DefaultDestinationID())
	s.Equal("handlers", s.jc.DefaultHandlerID())
	s.Equal(map[string]any{"rules_module": "site.rules"}, s.jc.Dynamic())
	s.Equal([]string{"local", "slurm"}, s.jc.RunnerPluginIDs())
}

func (s *JobConfigurationSuite) TestGetDestination() {
	first, err := s.jc.GetDestination("cluster")
	s.Require().NoError(err)
	s.Equal("slurm", first.Runner)
	s.Equal("--time=04:00:00", first.Params["nativeSpecification"])

	first.Params["job_runner_external_id"] = "1234"
	second, err := s.jc.GetDestination("cluster")
	s.Require().NoError(err)
	s.NotContains(second.Params, "job_runner_external_id")

	d, err := s.jc.GetDestination("")
	s.Require().NoError(err)
	s.Equal("local", d.ID)

	_, err = s.jc.GetDestination("missing")
	s.Require().ErrorAs(err, new(destination.ErrUnknownDestination))
}

func (s *JobConfigurationSuite) TestGetDestinations() {
	fast, err := s.jc.GetDestinations("fast")
	s.Require().NoError(err)
	s.True(s.jc.IsTag(fast))
	s.False(s.jc.IsID(fast))
	s.Require().Equal(2, fast.Len())

	big, err := s.jc.GetDestinations("big")
	s.Require().NoError(err)
	s.True(big.Refs()[0].Same(fast.Refs()[1]))

	local, err := s.jc.GetDestinations("local")
	s.Require().NoError(err)
	s.True(s.jc.IsID(local))
	s.Len(s.jc.Destinations(), 4)
}

func (s *JobConfigurationSuite) TestToolConfigurations() {
	s.Equal([]toolmap.Entry{{Handler: "handler1", Destination: "cluster", Resources: "all"}},
		s.jc.ToolConfigurations(bwaMem, nil))
	s.Equal([]toolmap.Entry{{Destination: "big"}},
		s.jc.GetJobToolConfigurations([]string{"Cat1"}, nil))
	s.Equal([]toolmap.Entry{{Destination: "local"}},
		s.jc.GetJobToolConfigurations([]string{"upload1"}, []string{models.ToolClassLocal}))

	def := toolmap.Entry{Handler: "handlers", Destination: "local"}
	s.Equal(def, s.jc.DefaultJobToolConfiguration())
	s.Equal([]toolmap.Entry{def}, s.jc.GetJobToolConfigurations([]string{"upload1"}, nil))
}

func (s *JobConfigurationSuite) TestToolResources() {
	out, err := s.jc.GetToolResourceXML("toolshed.example.org/repos/devteam/bwa/bwa_mem/", "default")
	s.Require().NoError(err)
	s.Contains(out, `name="__job_resource"`)
	s.Contains(out, `name="cores"`)
	s.Contains(out, `name="memory"`)

	fields, err := s.jc.ToolResourceFields("cat1", "manage_data")
	s.Require().NoError(err)
	s.Require().Len(fields, 1)
	s.Equal("cores", fields[0].Name())

	out, err = s.jc.GetToolResourceXML("cat1", "data_source")
	s.Require().NoError(err)
	s.Empty(out)
}

func (s *JobConfigurationSuite) TestLimitsAndMetrics() {
	n, ok := s.jc.LimitFor(limits.ScopeUser, "big")
	s.Require().True(ok)
	s.Equal(2, n)
	n, ok = s.jc.LimitFor(limits.ScopeRegisteredUser, "")
	s.Require().True(ok)
	s.Equal(4, n)

	l := s.jc.Limits()
	s.Equal("72:00:00", l.Walltime)
	s.Require().NotNil(l.OutputSize)
	s.Equal(int64(1<<30), *l.OutputSize)

	s.False(s.jc.Metrics().Enabled("cluster"))
	s.True(s.jc.Metrics().Enabled("local"))
}

func (s *JobConfigurationSuite) TestRunnerPluginsAndLegacyConversion() {
	runners, err := s.jc.GetJobRunnerPlugins(s.ctx, "handler1")
	s.Require().NoError(err)
	s.Len(runners, 1)
	s.Contains(runners, "slurm")

	runners, err = s.jc.GetJobRunnerPlugins(s.ctx, "handler0")
	s.Require().NoError(err)
	s.Len(runners, 2)
	s.Equal(2, runners["local"].Workers())
	s.Equal(4, runners["slurm"].Workers())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.jc.ConvertLegacyDestinations(s.ctx, runners)
		}()
	}
	wg.Wait()

	d, err := s.jc.GetDestination("legacy_cluster")
	s.Require().NoError(err)
	s.True(d.Legacy)
	s.True(d.Converted)
	s.Equal(map[string]any{"nativeSpecification": "--mem=64G"}, d.Params)

	d, err = s.jc.GetDestination("legacy_local")
	s.Require().NoError(err)
	s.True(d.Converted)
	s.Empty(d.Params)
}

func (s *JobConfigurationSuite) TestDocumentIsACopy() {
	doc := s.jc.Document()
	doc.Execution.Default = "cluster"
	s.Equal("local", s.jc.Document().Execution.Default)
}

func settingsIn(dir string) *config.Settings {
	settings := config.Default()
	settings.ConfigDir = dir
	return &settings
}

func TestDefaultConfiguration(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx := context.Background()

	settings := settingsIn(t.TempDir())
	jc, err := New(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, jc.Source())
	assert.Equal(t, "main", jc.DefaultHandlerID())
	assert.Equal(t, "local", jc.DefaultDestinationID())

	runners, err := jc.GetJobRunnerPlugins(ctx, jc.DefaultHandlerID())
	require.NoError(t, err)
	require.Len(t, runners, 1)
	assert.Equal(t, 4, runners["local"].Workers())

	settings.UseTaskedJobs = true
	settings.LocalTaskQueueWorkers = 3
	jc, err = New(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "tasks"}, jc.RunnerPluginIDs())

	runners, err = jc.GetJobRunnerPlugins(ctx, jc.DefaultHandlerID())
	require.NoError(t, err)
	assert.Equal(t, 3, runners["tasks"].Workers())
}

func TestFromDocument(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx := context.Background()
	settings := settingsIn(t.TempDir())
	settings.DefaultJobResubmissionCondition = "walltime_reached"

	doc := &models.Document{
		Execution: models.Execution{
			Environments: models.Environments{{ID: "only", Runner: "local"}},
		},
	}
	jc, err := FromDocument(ctx, settings, doc)
	require.NoError(t, err)
	assert.Equal(t, "only", jc.DefaultDestinationID())
	assert.Nil(t, doc.Execution.Environments[0].Metrics)

	d, err := jc.GetDestination("only")
	require.NoError(t, err)
	assert.Equal(t, []models.ResubmitRule{{Condition: "walltime_reached"}}, d.Resubmit)

	_, err = FromDocument(ctx, settings, nil)
	require.Error(t, err)

	doc.Execution.Environments = append(doc.Execution.Environments, &models.Environment{ID: "other", Runner: "local"})
	_, err = FromDocument(ctx, settings, doc)
	require.ErrorAs(t, err, new(destination.ErrNoDefaultDestination))
}

func TestBuildFailures(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		doc  models.Document
	}{
		{
			name: "malformed walltime",
			doc: models.Document{
				Execution: models.Execution{Environments: models.Environments{{ID: "local", Runner: "local"}}},
				Limits:    []*models.LimitEntry{{Type: models.LimitWalltime, Value: "10 hours"}},
			},
		},
		{
			name: "unknown default destination",
			doc: models.Document{
				Execution: models.Execution{Default: "cluster", Environments: models.Environments{{ID: "local", Runner: "local"}}},
			},
		},
		{
			name: "unknown default handler",
			doc: models.Document{
				Handling:  &models.Handling{Default: "nobody"},
				Execution: models.Execution{Environments: models.Environments{{ID: "local", Runner: "local"}}},
			},
		},
		{
			name: "invalid tool class",
			doc: models.Document{
				Execution: models.Execution{Environments: models.Environments{{ID: "local", Runner: "local"}}},
				Tools:     []*models.ToolEntry{{Class: "remote"}},
			},
		},
		{
			name: "destination without runner",
			doc: models.Document{
				Execution: models.Execution{Environments: models.Environments{{ID: "local"}}},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := tc.doc
			jc, err := FromDocument(ctx, settingsIn(t.TempDir()), &doc)
			require.Error(t, err)
			assert.Nil(t, jc)
		})
	}
}
