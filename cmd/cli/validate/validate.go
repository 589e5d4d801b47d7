package validate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/pkg/parser"
)

var (
	validateLong = `Build the job configuration and report the first problem found.

Structured (yaml) job configurations are also checked against the job
configuration schema, which can be printed with --output-schema.`

	validateExample = `
# Validate the job configuration the settings point at
jobconf validate --config settings.yml

# Validate a file
jobconf validate job_conf.yml

# Print the schema of structured job configurations
jobconf validate --output-schema`
)

type ValidateOptions struct {
	OutputSchema bool
}

func NewValidateOptions() *ValidateOptions {
	return &ValidateOptions{}
}

func NewCmd(root *util.RootOptions) *cobra.Command {
	o := NewValidateOptions()

	validateCmd := &cobra.Command{
		Use:     "validate [FILE]",
		Short:   "Check a job configuration",
		Long:    validateLong,
		Example: validateExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, root, args)
		},
	}
	validateCmd.Flags().BoolVar(&o.OutputSchema, "output-schema", o.OutputSchema,
		`Print the JSON schema of structured job configurations and exit.`)
	return validateCmd
}

func (o *ValidateOptions) run(cmd *cobra.Command, root *util.RootOptions, args []string) error {
	if o.OutputSchema {
		schema, err := parser.Schema()
		if err != nil {
			return err
		}
		cmd.Println(string(schema))
		return nil
	}

	opts := *root
	if len(args) == 1 {
		opts.JobConfigFile = args[0]
	}
	jc, err := opts.JobConfiguration(cmd.Context())
	if err != nil {
		return fmt.Errorf("job configuration is invalid: %w", err)
	}
	if err := validateSchema(jc.Source()); err != nil {
		return err
	}
	cmd.Printf("%s is valid\n", jc.Source())
	return nil
}

// validateSchema checks structured job configuration files. Other sources
// were fully checked when they were built.
func validateSchema(source string) error {
	format, err := parser.FormatForPath(source)
	if err != nil || format != parser.FormatYAML {
		return nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	if err := parser.ValidateStructured(data); err != nil {
		return fmt.Errorf("%s does not match the job configuration schema: %w", source, err)
	}
	return nil
}
