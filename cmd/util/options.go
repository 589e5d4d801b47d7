package util

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/jobconfig"
)

// RootOptions are the global flags every command loads its job
// configuration from.
type RootOptions struct {
	// SettingsFile is the process settings file.
	SettingsFile string
	// JobConfigFile overrides the job configuration file named in the
	// settings.
	JobConfigFile string
	// EnvFile is a dotenv file loaded before the settings, so its
	// JOBCONF_* variables override settings.
	EnvFile string
}

// Settings loads the process settings.
func (o *RootOptions) Settings(ctx context.Context) (*config.Settings, error) {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load environment file %s: %w", o.EnvFile, err)
		}
		log.Ctx(ctx).Debug().Str("path", o.EnvFile).Msg("loaded environment file")
	}
	settings, err := config.Load(o.SettingsFile)
	if err != nil {
		return nil, err
	}
	if o.JobConfigFile != "" {
		path, err := filepath.Abs(o.JobConfigFile)
		if err != nil {
			return nil, err
		}
		settings.JobConfigFile = path
		settings.JobConfig = nil
	}
	return settings, nil
}

// JobConfiguration loads the settings and builds the job configuration they
// point at.
func (o *RootOptions) JobConfiguration(ctx context.Context) (*jobconfig.JobConfiguration, error) {
	settings, err := o.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return jobconfig.New(ctx, settings)
}
