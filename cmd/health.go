package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		h := conn.Health
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:       %s\n", conn.URL)
		fmt.Fprintf(out, "status:        %s\n", h.Status)
		fmt.Fprintf(out, "tables loaded: %d\n", h.TablesLoaded)
		fmt.Fprintf(out, "models loaded: %d\n", h.ModelsLoaded)
		fmt.Fprintf(out, "default model: %s\n", h.DefaultModel)
		return nil
	},
}
