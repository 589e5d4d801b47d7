package show

import (
	"bytes"
	"encoding/json"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"

	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/jobconf/cmd/util/output"
)

type ShowOptions struct {
	OutputOpts output.OutputOptions
}

func NewShowOptions() *ShowOptions {
	return &ShowOptions{
		OutputOpts: output.OutputOptions{Format: output.YAMLFormat},
	}
}

func NewCmd(root *util.RootOptions) *cobra.Command {
	o := NewShowOptions()

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the normalized job configuration",
		Long: `Print the job configuration after parsing and normalization, in the
structured format. Markup configurations are printed as their structured
equivalent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, root)
		},
	}
	showCmd.Flags().AddFlagSet(cliflags.OutputNonTabularFormatFlags(&o.OutputOpts))
	return showCmd
}

func (o *ShowOptions) run(cmd *cobra.Command, root *util.RootOptions) error {
	jc, err := root.JobConfiguration(cmd.Context())
	if err != nil {
		return err
	}

	// documents carry inline yaml fields, so json is derived from the yaml
	out, err := yaml.Marshal(jc.Document())
	if err != nil {
		return err
	}
	if o.OutputOpts.Format == output.JSONFormat {
		if out, err = k8syaml.YAMLToJSON(out); err != nil {
			return err
		}
		if o.OutputOpts.Pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, out, "", "  "); err != nil {
				return err
			}
			out = buf.Bytes()
		}
		out = append(out, '\n')
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
