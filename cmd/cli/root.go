package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bacalhau-project/jobconf/cmd/cli/destinations"
	"github.com/bacalhau-project/jobconf/cmd/cli/limits"
	"github.com/bacalhau-project/jobconf/cmd/cli/resolve"
	"github.com/bacalhau-project/jobconf/cmd/cli/runners"
	"github.com/bacalhau-project/jobconf/cmd/cli/show"
	"github.com/bacalhau-project/jobconf/cmd/cli/validate"
	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/pkg/logger"
)

type contextKey struct{ name string }

var spanKey = contextKey{name: "span"}

func NewRootCmd() *cobra.Command {
	opts := &util.RootOptions{}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "jobconf",
		Short: "Inspect and validate job configurations",
		Long: `Inspect and validate job configurations.

The job configuration is read from --job-config, from the job_config_file
setting, or from job_conf.yml, job_conf.yaml or job_conf.xml in the settings
directory, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				zerolog.SetGlobalLevel(logger.ParseLevel(logLevel))
			}

			var names []string
			for c := cmd; c.HasParent(); c = c.Parent() {
				names = append([]string{c.Name()}, names...)
			}
			name := fmt.Sprintf("jobconf.%s", strings.Join(names, "."))
			ctx, span := otel.Tracer("github.com/bacalhau-project/jobconf/cmd/cli").Start(cmd.Context(), name)
			cmd.SetContext(context.WithValue(ctx, spanKey, span))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if span, ok := cmd.Context().Value(spanKey).(trace.Span); ok {
				span.End()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.SettingsFile, "config", opts.SettingsFile,
		`Path to the settings file. Relative job configuration paths are resolved against its directory.`)
	rootCmd.PersistentFlags().StringVar(&opts.JobConfigFile, "job-config", opts.JobConfigFile,
		`Path to the job configuration file, overriding the job_config_file setting.`)
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", opts.EnvFile,
		`Path to a file of JOBCONF_* environment variables loaded before the settings.`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel,
		`Log level: 'trace', 'debug', 'info', 'warn' or 'error'. Defaults to LOG_LEVEL.`)

	rootCmd.AddCommand(validate.NewCmd(opts))
	rootCmd.AddCommand(show.NewCmd(opts))
	rootCmd.AddCommand(destinations.NewCmd(opts))
	rootCmd.AddCommand(resolve.NewCmd(opts))
	rootCmd.AddCommand(limits.NewCmd(opts))
	rootCmd.AddCommand(runners.NewCmd(opts))
	return rootCmd
}

// Execute runs the command line and exits with status 1 on failure.
func Execute(ctx context.Context) {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.Fatal(rootCmd, err, 1)
	}
}
