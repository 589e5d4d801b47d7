package jobconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/parser"
)

// Reloader holds the current job configuration and rebuilds it when its
// document changes. Readers always see a complete configuration.
type Reloader struct {
	settings *config.Settings
	opts     []Option
	current  atomic.Pointer[JobConfiguration]
}

// NewReloader builds the initial job configuration.
func NewReloader(ctx context.Context, settings *config.Settings, opts ...Option) (*Reloader, error) {
	jc, err := New(ctx, settings, opts...)
	if err != nil {
		return nil, err
	}
	r := &Reloader{settings: settings, opts: opts}
	r.current.Store(jc)
	return r, nil
}

// Current returns the configuration built last.
func (r *Reloader) Current() *JobConfiguration {
	return r.current.Load()
}

// Reload rebuilds the configuration. The previous configuration stays
// current when the rebuild fails.
func (r *Reloader) Reload(ctx context.Context) error {
	jc, err := New(ctx, r.settings, r.opts...)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("source", r.Current().Source()).
			Msg("failed to reload job configuration, keeping the current one")
		return err
	}
	r.current.Store(jc)
	log.Ctx(ctx).Info().Str("source", jc.Source()).Msg("reloaded job configuration")
	return nil
}

// watchTargets returns the directory to watch and the files in it that
// trigger a reload.
func (r *Reloader) watchTargets() (string, []string, error) {
	source := r.Current().Source()
	if source != parser.InlineSource && source != DefaultSource {
		return filepath.Dir(source), []string{filepath.Base(source)}, nil
	}
	if len(r.settings.JobConfig) == 0 && r.settings.JobConfigFile == "" && r.settings.ConfigDir != "" {
		return r.settings.ConfigDir, SearchFiles(), nil
	}
	return "", nil, fmt.Errorf("job configuration from %s has no file to watch", source)
}

// Watch reloads the configuration whenever its file is written, until ctx is
// done. A default configuration is replaced once a job configuration file
// appears in the settings directory.
func (r *Reloader) Watch(ctx context.Context) error {
	dir, names, err := r.watchTargets()
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	// editors replace files on save, so the directory is watched
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Ctx(ctx).Debug().Str("dir", dir).Strs("files", names).Msg("watching job configuration")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !slices.Contains(names, filepath.Base(event.Name)) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			_ = r.Reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Ctx(ctx).Warn().Err(err).Msg("job configuration watcher error")
		}
	}
}
