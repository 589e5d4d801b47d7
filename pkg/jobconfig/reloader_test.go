//go:build unit || !integration

package jobconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/jobconf/pkg/logger"
)

func TestReloadKeepsConfigurationOnFailure(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "job_conf.yml", structuredConf)

	r, err := NewReloader(ctx, settingsIn(dir))
	require.NoError(t, err)
	first := r.Current()
	assert.Equal(t, "from_yaml", first.DefaultDestinationID())

	require.NoError(t, os.WriteFile(path, []byte("execution: [\n"), 0o600))
	require.Error(t, r.Reload(ctx))
	assert.Same(t, first, r.Current())

	updated := strings.ReplaceAll(structuredConf, "from_yaml", "updated")
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, r.Reload(ctx))
	assert.Equal(t, "updated", r.Current().DefaultDestinationID())
}

func TestNewReloaderFailsOnBrokenConfiguration(t *testing.T) {
	logger.ConfigureTestLogging(t)
	dir := t.TempDir()
	writeFile(t, dir, "job_conf.yml", "execution: [\n")

	_, err := NewReloader(context.Background(), settingsIn(dir))
	require.Error(t, err)
}

func TestWatch(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	path := writeFile(t, dir, "job_conf.yml", structuredConf)

	r, err := NewReloader(ctx, settingsIn(dir))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx)
	}()

	updated := []byte(strings.ReplaceAll(structuredConf, "from_yaml", "watched"))
	require.Eventually(t, func() bool {
		// rewritten until the watcher is registered and picks it up
		if err := os.WriteFile(path, updated, 0o600); err != nil {
			return false
		}
		return r.Current().DefaultDestinationID() == "watched"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchDefaultConfiguration(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()

	r, err := NewReloader(ctx, settingsIn(dir))
	require.NoError(t, err)
	require.Equal(t, DefaultSource, r.Current().Source())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Watch(ctx)
	}()

	path := filepath.Join(dir, "job_conf.yml")
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte(structuredConf), 0o600); err != nil {
			return false
		}
		return r.Current().DefaultDestinationID() == "from_yaml"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func TestWatchInlineConfiguration(t *testing.T) {
	logger.ConfigureTestLogging(t)
	settings := settingsIn("")
	settings.JobConfig = map[string]any{
		"execution": map[string]any{
			"environments": []any{map[string]any{"id": "inline", "runner": "local"}},
		},
	}
	r, err := NewReloader(context.Background(), settings)
	require.NoError(t, err)
	require.Error(t, r.Watch(context.Background()))
}
