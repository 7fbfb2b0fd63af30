package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tx-dashboard/internal/app"
)

var (
	showWindow string
	showRows   int
	showJSON   bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Run one refresh cycle and print the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showRows < 0 {
			return fmt.Errorf("--rows cannot be negative")
		}

		opts := app.ShowOptions{
			Window: showWindow,
			Rows:   showRows,
			JSON:   showJSON,
			Out:    cmd.OutOrStdout(),
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showWindow, "window", "", "Display window: 15m, 1h, 6h or all (defaults to config)")
	showCmd.Flags().IntVar(&showRows, "rows", 0, "Organized rows to display (defaults to display.table_rows)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the snapshot as JSON")
}
