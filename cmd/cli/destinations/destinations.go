package destinations

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/jobconf/cmd/util/output"
	"github.com/bacalhau-project/jobconf/pkg/destination"
	"github.com/bacalhau-project/jobconf/pkg/models"
)

type DestinationsOptions struct {
	OutputOpts output.OutputOptions
}

func NewDestinationsOptions() *DestinationsOptions {
	return &DestinationsOptions{
		OutputOpts: output.OutputOptions{Format: output.TableFormat},
	}
}

func NewCmd(root *util.RootOptions) *cobra.Command {
	o := NewDestinationsOptions()

	destinationsCmd := &cobra.Command{
		Use:   "destinations [ID_OR_TAG]",
		Short: "List destinations",
		Long: `List every destination, or the destinations an id or tag resolves to.
The default destination is marked with a *.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, root, args)
		},
	}
	destinationsCmd.Flags().AddFlagSet(cliflags.OutputFormatFlags(&o.OutputOpts))
	return destinationsCmd
}

func (o *DestinationsOptions) run(cmd *cobra.Command, root *util.RootOptions, args []string) error {
	jc, err := root.JobConfiguration(cmd.Context())
	if err != nil {
		return err
	}

	refs := jc.Destinations()
	if len(args) == 1 {
		c, err := jc.GetDestinations(args[0])
		if err != nil {
			return err
		}
		refs = c.Refs()
	}
	items := lo.Map(refs, func(r destination.Ref, _ int) *models.Destination { return r.Copy() })
	return output.Output(cmd, columns(jc.DefaultDestinationID()), o.OutputOpts, items)
}

func columns(defaultID string) []output.TableColumn[*models.Destination] {
	return []output.TableColumn[*models.Destination]{
		{
			ColumnConfig: table.ColumnConfig{Name: "id"},
			Value: func(d *models.Destination) string {
				if d.ID == defaultID {
					return d.ID + " *"
				}
				return d.ID
			},
		},
		{
			ColumnConfig: table.ColumnConfig{Name: "runner"},
			Value:        func(d *models.Destination) string { return d.Runner },
		},
		{
			ColumnConfig: table.ColumnConfig{Name: "tags"},
			Value:        func(d *models.Destination) string { return strings.Join(d.Tags, ",") },
		},
		{
			ColumnConfig: table.ColumnConfig{Name: "url"},
			Value:        func(d *models.Destination) string { return d.URL },
		},
		{
			ColumnConfig: table.ColumnConfig{Name: "metrics"},
			Value:        func(d *models.Destination) string { return string(d.Metrics.Src) },
		},
		{
			ColumnConfig: table.ColumnConfig{Name: "params", WidthMax: 60, WidthMaxEnforcer: text.WrapText},
			Value:        func(d *models.Destination) string { return FormatParams(d.Params) },
		},
	}
}

// FormatParams prints params one per line, sorted by name.
func FormatParams(params map[string]any) string {
	keys := maps.Keys(params)
	slices.Sort(keys)
	lines := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s=%v", k, params[k])
	})
	return strings.Join(lines, "\n")
}
