package runners

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/jobconf/cmd/util/output"
	"github.com/bacalhau-project/jobconf/pkg/logger"
)

// Row is a runner plugin loaded by a handler.
type Row struct {
	ID      string `json:"id"`
	Handler string `json:"handler"`
	Workers int    `json:"workers"`
	// Legacy lists the legacy destinations converted through the runner.
	Legacy []string `json:"legacy,omitempty"`
}

type RunnersOptions struct {
	Handler    string
	OutputOpts output.OutputOptions
}

func NewRunnersOptions() *RunnersOptions {
	return &RunnersOptions{
		OutputOpts: output.OutputOptions{Format: output.TableFormat},
	}
}

func NewCmd(root *util.RootOptions) *cobra.Command {
	o := NewRunnersOptions()

	runnersCmd := &cobra.Command{
		Use:   "runners",
		Short: "Load the runner plugins of a handler",
		Long: `Load the runner plugins assigned to a handler, the default handler unless
--handler is given, and convert the legacy destinations those runners serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, root)
		},
	}
	runnersCmd.Flags().StringVar(&o.Handler, "handler", o.Handler,
		`The handler to load runner plugins for.`)
	runnersCmd.Flags().AddFlagSet(cliflags.OutputFormatFlags(&o.OutputOpts))
	return runnersCmd
}

func (o *RunnersOptions) run(cmd *cobra.Command, root *util.RootOptions) error {
	jc, err := root.JobConfiguration(cmd.Context())
	if err != nil {
		return err
	}
	handlerID := o.Handler
	if handlerID == "" {
		handlerID = jc.DefaultHandlerID()
	}
	ctx := logger.ContextWithHandlerLogger(cmd.Context(), handlerID)

	loaded, err := jc.GetJobRunnerPlugins(ctx, handlerID)
	if err != nil {
		return err
	}
	jc.ConvertLegacyDestinations(ctx, loaded)

	legacy := make(map[string][]string)
	for _, ref := range jc.Destinations() {
		if ref.Legacy() && ref.Converted() {
			legacy[ref.Runner()] = append(legacy[ref.Runner()], ref.ID())
		}
	}
	log.Ctx(ctx).Debug().Int("runners", len(loaded)).Msg("loaded runner plugins")

	ids := maps.Keys(loaded)
	slices.Sort(ids)
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, Row{
			ID:      id,
			Handler: handlerID,
			Workers: loaded[id].Workers(),
			Legacy:  legacy[id],
		})
	}
	return output.Output(cmd, columns, o.OutputOpts, rows)
}

var columns = []output.TableColumn[Row]{
	{
		ColumnConfig: table.ColumnConfig{Name: "id"},
		Value:        func(r Row) string { return r.ID },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "handler"},
		Value:        func(r Row) string { return r.Handler },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "workers", Align: text.AlignRight},
		Value:        func(r Row) string { return strconv.Itoa(r.Workers) },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "legacy destinations"},
		Value:        func(r Row) string { return strings.Join(r.Legacy, ",") },
	},
}
