package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/backend"
	"github.com/DachengChen/nlsql/console"
	"github.com/spf13/cobra"
)

// dial connects to the configured backend. The caller closes the result.
func dial(cmd *cobra.Command) (*backend.Conn, error) {
	return backend.Connect(cmd.Context(), *cfg)
}

// printNotifier writes controller notices to the terminal as they happen.
type printNotifier struct{ w io.Writer }

func (p printNotifier) Notify(n console.Notice) {
	if n.Level == console.LevelInfo {
		return
	}
	fmt.Fprintf(p.w, "%-7s %s\n", n.Level, n.Text)
}

// printResult renders rs as an aligned table.
func printResult(w io.Writer, rs *api.ResultSet) {
	if rs == nil || len(rs.Columns) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.Columns, "\t"))
	for i := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for j, col := range rs.Columns {
			cells[j] = rs.Cell(i, col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "(%d of %d rows)\n", len(rs.Rows), rs.TotalRows)
}
