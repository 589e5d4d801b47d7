//go:build unit || !integration

package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/logger"
	"github.com/bacalhau-project/jobconf/pkg/models"
)

type RegistrySuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	settings *config.Settings
	table    *Table
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctrl = gomock.NewController(s.T())
	settings := config.Default()
	s.settings = &settings

	s.table = DefaultTable()
	s.table.Add("site.runners", Module{
		Exports: []string{"FirstRunner", "SecondRunner"},
		Classes: map[string]Class{
			"FirstRunner":  newClass(nil),
			"SecondRunner": newClass(nativeSpecification),
		},
	})
	s.table.Add("site.noexports", Module{Classes: map[string]Class{"Runner": newClass(nil)}})
	s.table.Add("site.helpers", Module{
		Exports: []string{"NotARunner"},
		Classes: map[string]Class{"NotARunner": {}},
	})
	s.table.Add("site.broken", Module{
		Exports: []string{"Broken"},
		Classes: map[string]Class{"Broken": {New: func(Params) (Runner, error) {
			return nil, errors.New("no scheduler reachable")
		}}},
	})
}

func (s *RegistrySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RegistrySuite) registry(plugins map[string]*models.RunnerPlugin, assignments PluginAssignments) *Registry {
	doc := &models.Document{Runners: plugins}
	doc.Normalize()
	return NewRegistry(RegistryParams{
		Settings:    s.settings,
		Plugins:     doc.Runners,
		Assignments: assignments,
		Table:       s.table,
	})
}

func (s *RegistrySuite) TestLoadSpecifiers() {
	r := s.registry(map[string]*models.RunnerPlugin{
		"local":    {Load: "jobconf.runners.local:LocalRunner", Workers: 2},
		"drmaa":    {Load: "drmaa"},
		"site":     {Load: "site.runners"},
		"explicit": {Load: "site.runners:FirstRunner"},
	}, nil)

	runners, err := r.Load(context.Background(), "main")
	s.Require().NoError(err)
	s.Require().Len(runners, 4)
	s.Equal(2, runners["local"].Workers())
	s.Equal(models.DefaultWorkers, runners["drmaa"].Workers())

	// every exported class is loaded under the plugin id, the last one wins
	params, err := runners["site"].URLToDestination("site://-q long/")
	s.Require().NoError(err)
	s.Equal(map[string]any{"nativeSpecification": "-q long"}, params)

	params, err = runners["explicit"].URLToDestination("site://-q long/")
	s.Require().NoError(err)
	s.Empty(params)
}

func (s *RegistrySuite) TestUnloadablePluginsAreSkipped() {
	r := s.registry(map[string]*models.RunnerPlugin{
		"local":     {Load: "local"},
		"missing":   {Load: "site.missing"},
		"noexports": {Load: "site.noexports"},
		"helpers":   {Load: "site.helpers"},
		"wrongname": {Load: "site.runners:ThirdRunner"},
	}, nil)

	runners, err := r.Load(context.Background(), "main")
	s.Require().NoError(err)
	s.Len(runners, 1)
	s.Contains(runners, "local")
}

func (s *RegistrySuite) TestConstructorFailureIsFatal() {
	r := s.registry(map[string]*models.RunnerPlugin{
		"broken": {Load: "site.broken"},
	}, nil)
	_, err := r.Load(context.Background(), "main")
	s.Require().Error(err)
	s.Contains(err.Error(), "no scheduler reachable")
}

func (s *RegistrySuite) TestLegacyConstructorFallback() {
	s.settings.LocalTaskQueueWorkers = 3
	r := s.registry(map[string]*models.RunnerPlugin{
		"tasks":      {Load: "tasks", Workers: 5},
		"tasks_kwds": {Load: "tasks", Workers: 5, Kwds: map[string]any{"poll": "10"}},
	}, nil)

	runners, err := r.Load(context.Background(), "main")
	s.Require().NoError(err)
	s.Equal(5, runners["tasks"].Workers())
	s.Equal(3, runners["tasks_kwds"].Workers())
}

func (s *RegistrySuite) TestHandlerAssignments() {
	assignments := NewMockPluginAssignments(s.ctrl)
	assignments.EXPECT().RunnerIDsFor("handler0").Return([]string{"local"}, true)
	assignments.EXPECT().RunnerIDsFor("handler1").Return(nil, false)

	r := s.registry(map[string]*models.RunnerPlugin{
		"local": {Load: "local"},
		"slurm": {Load: "slurm"},
	}, assignments)

	runners, err := r.Load(context.Background(), "handler0")
	s.Require().NoError(err)
	s.Len(runners, 1)
	s.Contains(runners, "local")

	runners, err = r.Load(context.Background(), "handler1")
	s.Require().NoError(err)
	s.Len(runners, 2)
}

func (s *RegistrySuite) TestLoadDoesNotCache() {
	r := s.registry(map[string]*models.RunnerPlugin{"local": {Load: "local"}}, nil)
	first, err := r.Load(context.Background(), "main")
	s.Require().NoError(err)
	second, err := r.Load(context.Background(), "main")
	s.Require().NoError(err)
	s.NotSame(first["local"], second["local"])
}
