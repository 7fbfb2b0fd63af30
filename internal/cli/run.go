package cli

import (
	"github.com/spf13/cobra"

	"tx-dashboard/internal/app"
)

var runWindow string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh the dashboard on a timer and render it to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{
			Window: runWindow,
			Out:    cmd.OutOrStdout(),
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runWindow, "window", "", "Display window: 15m, 1h, 6h or all (defaults to config)")
}
