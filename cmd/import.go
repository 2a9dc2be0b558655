package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DachengChen/nlsql/console"
	"github.com/spf13/cobra"
)

var (
	importSheet       string
	importTable       string
	importPreviewOnly bool
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import an Excel sheet into a table",
	Long: `Runs the import wizard without the TUI: upload the workbook, load the
sheet into preview_<table>, then import it into <table> and refresh the
backend's table config.

The sheet defaults to the first one in the workbook and the table name
to the file name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := console.ValidateWorkbook(path); err != nil {
			return err
		}

		conn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		w := console.NewWizard(conn.Client, printNotifier{w: out})

		if err := w.Upload(ctx, path); err != nil {
			return err
		}
		s := w.Snapshot()
		fmt.Fprintf(out, "sheets: %s\n", strings.Join(s.Sheets, ", "))

		sheet := importSheet
		if sheet == "" {
			sheet = s.Sheet
		}
		table := importTable
		if table == "" {
			table = console.SuggestTableName(path)
		}
		if err := w.Preview(ctx, sheet, table); err != nil {
			return err
		}
		p := w.Snapshot().Preview
		fmt.Fprintf(out, "preview table %s: %d rows, %d columns\n", p.TableName, p.RowCount, p.ColumnCount)
		if len(p.NormalizedColumns) > 0 {
			fmt.Fprintf(out, "columns: %s\n", strings.Join(p.NormalizedColumns, ", "))
		}
		if importPreviewOnly {
			return nil
		}

		if err := w.Confirm(ctx); err != nil {
			return err
		}
		if !w.Snapshot().ConfigRefreshed {
			return errors.New("data imported, but the backend did not reload its table config")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importSheet, "sheet", "s", "", "sheet to import (default: first sheet)")
	importCmd.Flags().StringVarP(&importTable, "table", "t", "", "target table (default: derived from the file name)")
	importCmd.Flags().BoolVar(&importPreviewOnly, "preview-only", false, "stop after loading the preview table")
}
