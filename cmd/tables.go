package cmd

import (
	"fmt"

	"github.com/DachengChen/nlsql/console"
	"github.com/spf13/cobra"
)

var (
	tablesFilter string
	tablesLimit  int
)

var tablesCmd = &cobra.Command{
	Use:   "tables [name]",
	Short: "List tables, or show the schema and first rows of one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		out := cmd.OutOrStdout()
		b := console.NewBrowser(conn.Client, printNotifier{w: cmd.ErrOrStderr()})

		if len(args) == 0 {
			if err := b.Refresh(cmd.Context()); err != nil {
				return err
			}
			b.Filter(tablesFilter)
			for _, t := range b.Visible() {
				fmt.Fprintln(out, t)
			}
			return nil
		}

		report := b.Preview(cmd.Context(), args[0], tablesLimit)
		if report.DataErr != nil && report.SchemaErr != nil {
			return report.DataErr
		}
		s := b.Snapshot()
		if s.Schema != "" {
			fmt.Fprintln(out, s.Schema)
			fmt.Fprintln(out)
		}
		if s.Preview != nil {
			printResult(out, s.Preview)
		}
		return nil
	},
}

func init() {
	tablesCmd.Flags().StringVarP(&tablesFilter, "filter", "f", "", "only list tables containing this text")
	tablesCmd.Flags().IntVarP(&tablesLimit, "limit", "n", console.DefaultPreviewLimit, "rows to preview")
}
