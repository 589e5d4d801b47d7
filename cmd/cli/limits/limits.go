package limits

import (
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/cmd/util"
	"github.com/bacalhau-project/jobconf/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/jobconf/cmd/util/output"
	"github.com/bacalhau-project/jobconf/pkg/limits"
	"github.com/bacalhau-project/jobconf/pkg/models"
)

// Row is one configured limit.
type Row struct {
	Type string `json:"type"`
	// Scope is the destination id or tag of a destination limit.
	Scope string `json:"scope,omitempty"`
	Value string `json:"value"`
}

type LimitsOptions struct {
	OutputOpts output.OutputOptions
}

func NewLimitsOptions() *LimitsOptions {
	return &LimitsOptions{
		OutputOpts: output.OutputOptions{Format: output.TableFormat},
	}
}

func NewCmd(root *util.RootOptions) *cobra.Command {
	o := NewLimitsOptions()

	limitsCmd := &cobra.Command{
		Use:   "limits",
		Short: "List the configured limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jc, err := root.JobConfiguration(cmd.Context())
			if err != nil {
				return err
			}
			return output.Output(cmd, columns, o.OutputOpts, Rows(jc.Limits()))
		},
	}
	limitsCmd.Flags().AddFlagSet(cliflags.OutputFormatFlags(&o.OutputOpts))
	return limitsCmd
}

// Rows lists the limits that are set. Destination limits are sorted by
// scope.
func Rows(l *limits.Limits) []Row {
	var rows []Row
	if l.RegisteredUserConcurrentJobs != nil {
		rows = append(rows, Row{Type: string(limits.ScopeRegisteredUser), Value: strconv.Itoa(*l.RegisteredUserConcurrentJobs)})
	}
	if l.AnonymousUserConcurrentJobs != nil {
		rows = append(rows, Row{Type: string(limits.ScopeAnonymousUser), Value: strconv.Itoa(*l.AnonymousUserConcurrentJobs)})
	}
	if l.Walltime != "" {
		rows = append(rows, Row{Type: models.LimitWalltime, Value: l.Walltime})
	}
	if l.TotalWalltime != nil {
		rows = append(rows, Row{
			Type:  models.LimitTotalWalltime,
			Scope: strconv.Itoa(l.TotalWalltime.Window) + " days",
			Value: l.TotalWalltime.Raw,
		})
	}
	if l.OutputSize != nil {
		rows = append(rows, Row{Type: models.LimitOutputSize, Value: datasize.ByteSize(*l.OutputSize).HR()})
	}
	rows = append(rows, scopedRows(models.LimitEnvironmentUserConcurrentJobs, l.DestinationUserConcurrentJobs)...)
	rows = append(rows, scopedRows(models.LimitEnvironmentTotalConcurrentJobs, l.DestinationTotalConcurrentJobs)...)
	return rows
}

func scopedRows(limitType string, table map[string]int) []Row {
	scopes := maps.Keys(table)
	slices.Sort(scopes)
	rows := make([]Row, 0, len(scopes))
	for _, scope := range scopes {
		rows = append(rows, Row{Type: limitType, Scope: scope, Value: strconv.Itoa(table[scope])})
	}
	return rows
}

var columns = []output.TableColumn[Row]{
	{
		ColumnConfig: table.ColumnConfig{Name: "type"},
		Value:        func(r Row) string { return r.Type },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "scope"},
		Value:        func(r Row) string { return r.Scope },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "value", Align: text.AlignRight},
		Value:        func(r Row) string { return r.Value },
	},
}
