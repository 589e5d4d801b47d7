//go:build unit || !integration

package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEnvironmentsUnmarshal(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		ids  []string
	}{
		{
			name: "list keeps order",
			doc: `
- id: b
  runner: local
- id: a
  runner: local
`,
			ids: []string{"b", "a"},
		},
		{
			name: "mapping keeps order",
			doc: `
zeta:
  runner: local
alpha:
  runner: local
mid:
  runner: local
`,
			ids: []string{"zeta", "alpha", "mid"},
		},
		{
			name: "null",
			doc:  `~`,
			ids:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var envs Environments
			require.NoError(t, yaml.Unmarshal([]byte(tc.doc), &envs))
			var ids []string
			for _, env := range envs {
				ids = append(ids, env.ID)
			}
			require.Equal(t, tc.ids, ids)
		})
	}
}

func TestEnvironmentsUnmarshalRejectsScalar(t *testing.T) {
	var envs Environments
	require.Error(t, yaml.Unmarshal([]byte(`"local"`), &envs))
}

func TestEnvironmentInlineParams(t *testing.T) {
	var env Environment
	require.NoError(t, yaml.Unmarshal([]byte(`
runner: slurm
tags: [cluster]
nativeSpecification: "-p normal"
docker_enabled: true
`), &env))
	require.Equal(t, "slurm", env.Runner)
	require.Equal(t, []string{"cluster"}, env.Tags)
	require.Equal(t, map[string]any{
		"nativeSpecification": "-p normal",
		"docker_enabled":      true,
	}, env.Params)
}

func TestDocumentNormalize(t *testing.T) {
	doc := &Document{
		Runners: map[string]*RunnerPlugin{
			"local": {Load: "jobconf.runners.local:LocalRunner", Kwds: map[string]any{}},
			"empty": nil,
		},
		Dynamic: map[string]any{},
		Execution: Execution{
			Environments: Environments{
				{ID: "local", Runner: "local", Tags: []string{}},
				nil,
			},
		},
		Tools:  []*ToolEntry{},
		Limits: []*LimitEntry{nil},
	}
	doc.Normalize()

	require.Equal(t, "local", doc.Runners["local"].ID)
	require.Equal(t, DefaultWorkers, doc.Runners["local"].Workers)
	require.Nil(t, doc.Runners["local"].Kwds)
	require.NotNil(t, doc.Runners["empty"])
	require.Nil(t, doc.Dynamic)
	require.Len(t, doc.Execution.Environments, 1)
	require.Nil(t, doc.Execution.Environments[0].Tags)
	require.Equal(t, &MetricsConf{Src: MetricsSourceDefault}, doc.Execution.Environments[0].Metrics)
	require.Nil(t, doc.Tools)
	require.Nil(t, doc.Limits)
}

func TestDocumentValidate(t *testing.T) {
	valid := func() *Document {
		doc := &Document{
			Runners: map[string]*RunnerPlugin{
				"local": {Load: "jobconf.runners.local:LocalRunner"},
			},
			Execution: Execution{
				Default:      "local",
				Environments: Environments{{ID: "local", Runner: "local"}},
			},
			Limits: []*LimitEntry{
				{Type: "destination_user_concurrent_jobs", ID: "local", Value: "2"},
				{Type: "walltime", Value: "24:00:00"},
			},
		}
		doc.Normalize()
		return doc
	}

	testCases := []struct {
		name    string
		mutate  func(*Document)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Document) {}},
		{
			name:    "runner without load",
			mutate:  func(d *Document) { d.Runners["local"].Load = "" },
			wantErr: true,
		},
		{
			name:    "negative workers",
			mutate:  func(d *Document) { d.Runners["local"].Workers = -1 },
			wantErr: true,
		},
		{
			name:    "unknown limit type",
			mutate:  func(d *Document) { d.Limits[0].Type = "gpu_hours" },
			wantErr: true,
		},
		{
			name:    "environment without runner",
			mutate:  func(d *Document) { d.Execution.Environments[0].Runner = "" },
			wantErr: true,
		},
		{
			name: "metrics path without path",
			mutate: func(d *Document) {
				d.Execution.Environments[0].Metrics = &MetricsConf{Src: MetricsSourcePath}
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := valid()
			tc.mutate(doc)
			err := doc.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNormalizeLimitType(t *testing.T) {
	require.Equal(t, "environment_user_concurrent_jobs", NormalizeLimitType("destination_user_concurrent_jobs"))
	require.Equal(t, "environment_total_concurrent_jobs", NormalizeLimitType("environment_total_concurrent_jobs"))
	require.Equal(t, "walltime", NormalizeLimitType("walltime"))
}
