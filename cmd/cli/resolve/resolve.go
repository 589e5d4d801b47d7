package resolve

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/jobconf/cmd/cli/destinations"
	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/cmd/util/flags"
	"github.com/bacalhau-project/jobconf/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/jobconf/cmd/util/output"
	"github.com/bacalhau-project/jobconf/pkg/destination"
	"github.com/bacalhau-project/jobconf/pkg/jobconfig"
)

// Resolution is where the jobs of a tool run.
type Resolution struct {
	Tool string `json:"tool"`
	// Handler and Destination are the ids or tags the tool maps to.
	Handler      string         `json:"handler"`
	Handlers     []string       `json:"handlers"`
	Destination  string         `json:"destination"`
	Destinations []string       `json:"destinations"`
	Resources    string         `json:"resources,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

type ResolveOptions struct {
	Classes    []string
	OutputOpts output.OutputOptions
}

func NewResolveOptions() *ResolveOptions {
	return &ResolveOptions{
		OutputOpts: output.OutputOptions{Format: output.TableFormat},
	}
}

func NewCmd(root *util.RootOptions) *cobra.Command {
	o := NewResolveOptions()

	resolveCmd := &cobra.Command{
		Use:   "resolve TOOL_ID...",
		Short: "Show where the jobs of tools run",
		Long: `Show the handler, destination and resource group the jobs of each tool
map to. Tool ids are matched exactly, then without their version. Tools
without an entry fall back to their class and then to the defaults.`,
		Example: `
# Resolve a toolshed tool
jobconf resolve toolshed.example.org/repos/devteam/bwa/bwa_mem/0.7.17

# Resolve an upload tool of the local class
jobconf resolve upload1 --class local`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, root, args)
		},
	}
	resolveCmd.Flags().Var(flags.ToolClassFlag(&o.Classes), "class",
		`Class of the tools. May be repeated.`)
	resolveCmd.Flags().AddFlagSet(cliflags.OutputFormatFlags(&o.OutputOpts))
	return resolveCmd
}

func (o *ResolveOptions) run(cmd *cobra.Command, root *util.RootOptions, toolIDs []string) error {
	jc, err := root.JobConfiguration(cmd.Context())
	if err != nil {
		return err
	}
	var items []Resolution
	for _, toolID := range toolIDs {
		resolved, err := Resolve(jc, toolID, o.Classes)
		if err != nil {
			return err
		}
		items = append(items, resolved...)
	}
	return output.Output(cmd, columns, o.OutputOpts, items)
}

// Resolve returns one resolution per entry the tool maps to.
func Resolve(jc *jobconfig.JobConfiguration, toolID string, classes []string) ([]Resolution, error) {
	var out []Resolution
	for _, entry := range jc.ToolConfigurations(toolID, classes) {
		r := Resolution{
			Tool:        toolID,
			Handler:     entry.Handler,
			Destination: entry.Destination,
			Resources:   entry.Resources,
			Params:      entry.Params,
		}
		if r.Handler == "" {
			r.Handler = jc.DefaultHandlerID()
		}
		if r.Destination == "" {
			r.Destination = jc.DefaultDestinationID()
		}
		if handlers, ok := jc.Handlers().Handlers(r.Handler); ok {
			r.Handlers = handlers
		}
		c, err := jc.GetDestinations(r.Destination)
		if err != nil {
			return nil, err
		}
		r.Destinations = lo.Map(c.Refs(), func(ref destination.Ref, _ int) string { return ref.ID() })
		out = append(out, r)
	}
	return out, nil
}

var columns = []output.TableColumn[Resolution]{
	{
		ColumnConfig: table.ColumnConfig{Name: "tool", WidthMax: 50, WidthMaxEnforcer: text.WrapText},
		Value:        func(r Resolution) string { return r.Tool },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "handler"},
		Value:        func(r Resolution) string { return joinTarget(r.Handler, r.Handlers) },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "destination"},
		Value:        func(r Resolution) string { return joinTarget(r.Destination, r.Destinations) },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "resources"},
		Value:        func(r Resolution) string { return r.Resources },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "params", WidthMax: 60, WidthMaxEnforcer: text.WrapText},
		Value:        func(r Resolution) string { return destinations.FormatParams(r.Params) },
	},
}

// joinTarget prints a tag with the ids it stands for.
func joinTarget(idOrTag string, ids []string) string {
	if len(ids) == 0 || (len(ids) == 1 && ids[0] == idOrTag) {
		return idOrTag
	}
	return idOrTag + " (" + strings.Join(ids, ",") + ")"
}
