package config

import "strings"

// KeyAsEnvVar returns the environment variable that overrides a settings
// key, e.g. JOBCONF_JOB_CONFIG_FILE for job_config_file.
func KeyAsEnvVar(key string) string {
	return environmentVariablePrefix + "_" + strings.ToUpper(environmentVariableReplace.Replace(key))
}
