package cmd

import (
	"fmt"
	"strings"

	"github.com/DachengChen/nlsql/console"
	"github.com/spf13/cobra"
)

var (
	askTables []string
	askModel  string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about one or more tables",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		p := console.NewPipeline(conn.Client, printNotifier{w: cmd.ErrOrStderr()})
		p.Load(ctx)
		if askModel != "" {
			if err := p.SelectModel(askModel); err != nil {
				return err
			}
		}

		submitErr := p.Submit(ctx, strings.Join(args, " "), askTables, "")
		for _, e := range p.Log().Entries() {
			switch e.Kind {
			case console.EntrySQLResult:
				if e.Status != console.StatusSucceeded {
					continue
				}
				fmt.Fprintf(out, "%s\n\n", e.SQL)
				printResult(out, e.Result)
				fmt.Fprintln(out)
			case console.EntryChatAnswer:
				if e.Status == console.StatusSucceeded {
					fmt.Fprintln(out, e.Text)
				}
			}
		}
		return submitErr
	},
}

func init() {
	askCmd.Flags().StringSliceVarP(&askTables, "table", "t", nil, "table to query (repeatable)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model name (default: the backend's default)")
}
