//go:build unit || !integration

package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

func TestNew(t *testing.T) {
	handling := &models.Handling{
		Processes: map[string]*models.HandlerProcess{
			"handler0": {Tags: []string{"handlers"}},
			"handler1": {Tags: []string{"handlers", "special"}, Plugins: []string{"local"}},
		},
		MaxGrab: 8,
	}
	a, err := New(handling, "main")
	require.NoError(t, err)

	require.Equal(t, DefaultTag, a.DefaultID())
	pool, ok := a.Handlers(DefaultTag)
	require.True(t, ok)
	require.Equal(t, []string{"handler0", "handler1"}, pool)

	pool, ok = a.Handlers("handlers")
	require.True(t, ok)
	require.Equal(t, []string{"handler0", "handler1"}, pool)

	pool, ok = a.Handlers("special")
	require.True(t, ok)
	require.Equal(t, []string{"handler1"}, pool)

	_, ok = a.Handlers("other")
	require.False(t, ok)

	ids, ok := a.RunnerIDsFor("handler1")
	require.True(t, ok)
	require.Equal(t, []string{"local"}, ids)
	_, ok = a.RunnerIDsFor("handler0")
	require.False(t, ok)

	require.True(t, a.IsHandler("handler0"))
	require.False(t, a.IsHandler("handlers"))
	require.Equal(t, []string{DefaultTag, "handlers", "special"}, a.Tags())
	require.Equal(t, []string{models.AssignDBSkipLocked}, a.Methods())
	require.Equal(t, 8, a.MaxGrab())
}

func TestPoolsFollowDeclarationOrder(t *testing.T) {
	handling := &models.Handling{
		Order: []string{"web2", "web0", "web1"},
		Processes: map[string]*models.HandlerProcess{
			"web0":  {Tags: []string{"web"}},
			"web1":  {Tags: []string{"web"}},
			"web2":  {Tags: []string{"web"}},
			"extra": {},
		},
	}
	a, err := New(handling, "main")
	require.NoError(t, err)

	pool, ok := a.Handlers("web")
	require.True(t, ok)
	require.Equal(t, []string{"web2", "web0", "web1"}, pool)

	pool, ok = a.Handlers(DefaultTag)
	require.True(t, ok)
	require.Equal(t, []string{"web2", "web0", "web1", "extra"}, pool)
}

func TestDefaultHandler(t *testing.T) {
	testCases := []struct {
		name     string
		handling *models.Handling
		expected string
		methods  []string
		wantErr  bool
	}{
		{
			name:     "no handlers",
			handling: nil,
			expected: "main",
			methods:  []string{models.AssignDBPreassign},
		},
		{
			name: "single handler",
			handling: &models.Handling{Processes: map[string]*models.HandlerProcess{
				"handler0": {},
			}},
			expected: "handler0",
			methods:  []string{models.AssignDBSkipLocked},
		},
		{
			name: "explicit tag",
			handling: &models.Handling{
				Default: "pool",
				Assign:  []string{models.AssignDBTransactionIsolation},
				Processes: map[string]*models.HandlerProcess{
					"handler0": {Tags: []string{"pool"}},
					"handler1": {},
				},
			},
			expected: "pool",
			methods:  []string{models.AssignDBTransactionIsolation},
		},
		{
			name: "unknown default",
			handling: &models.Handling{
				Default:   "missing",
				Processes: map[string]*models.HandlerProcess{"handler0": {}},
			},
			wantErr: true,
		},
		{
			name: "unknown method",
			handling: &models.Handling{
				Assign: []string{"mem-self"},
			},
			wantErr: true,
		},
		{
			name: "tag shadows id",
			handling: &models.Handling{Processes: map[string]*models.HandlerProcess{
				"handler0": {Tags: []string{"handler1"}},
				"handler1": {},
			}},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := New(tc.handling, "main")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, a.DefaultID())
			require.Equal(t, tc.methods, a.Methods())
		})
	}
}

func TestAssign(t *testing.T) {
	a, err := New(nil, "main")
	require.NoError(t, err)
	_, ok := a.RunnerIDsFor("main")
	require.False(t, ok)

	a.Assign("main", []string{"local", "tasks"})
	ids, ok := a.RunnerIDsFor("main")
	require.True(t, ok)
	require.Equal(t, []string{"local", "tasks"}, ids)
	require.True(t, a.IsHandler("main"))
}
