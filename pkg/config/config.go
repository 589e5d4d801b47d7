package config

import (
	"path/filepath"
	"strings"

	"github.com/imdario/mergo"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	environmentVariablePrefix = "JOBCONF"
	configType                = "yaml"
)

var (
	environmentVariableReplace = strings.NewReplacer(".", "_")
	configDecoderHook          = viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
)

type Params struct {
	FileType      string
	DefaultConfig Settings
}

// Load reads the settings file at path, if any, and applies JOBCONF_*
// environment overrides on top of it. Settings left unset take their value
// from the defaults.
func Load(path string, opts ...Option) (*Settings, error) {
	params := &Params{
		FileType:      configType,
		DefaultConfig: Default(),
	}
	for _, opt := range opts {
		opt(params)
	}

	v := viper.New()
	v.SetConfigType(params.FileType)
	v.SetEnvPrefix(environmentVariablePrefix)
	v.SetEnvKeyReplacer(environmentVariableReplace)
	v.AutomaticEnv()
	for _, key := range EnvKeys() {
		if err := v.BindEnv(key, KeyAsEnvVar(key)); err != nil {
			return nil, errors.Wrapf(err, "failed to bind environment variable for %s", key)
		}
	}

	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve settings path %s", path)
		}
		v.SetConfigFile(abs)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read settings from %s", abs)
		}
		if params.DefaultConfig.ConfigDir == "" {
			params.DefaultConfig.ConfigDir = filepath.Dir(abs)
		}
	}

	var out Settings
	if err := v.Unmarshal(&out, configDecoderHook); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := mergo.Merge(&out, params.DefaultConfig); err != nil {
		return nil, errors.Wrap(err, "failed to apply default settings")
	}
	out.extra = v.AllSettings()
	return &out, nil
}
