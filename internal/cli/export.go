package cli

import (
	"github.com/spf13/cobra"

	"tx-dashboard/internal/app"
)

var (
	exportWindow     string
	exportPNGPath    string
	exportComparePNG string
	exportCSVPath    string
	exportMaxPoints  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the windowed organized table as CSV and/or PNG charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Window:         exportWindow,
			CSVPath:        exportCSVPath,
			PNGPath:        exportPNGPath,
			ComparePNGPath: exportComparePNG,
			MaxPoints:      exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportWindow, "window", "", "Display window: 15m, 1h, 6h or all (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write the status-over-time chart")
	exportCmd.Flags().StringVar(&exportComparePNG, "compare-png", "", "Path to write the approved vs auth 00 chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write organized rows as CSV")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
