package cli

import (
	"github.com/spf13/cobra"

	"tx-dashboard/internal/app"
)

var (
	serveAddr   string
	serveWindow string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve dashboard snapshots as a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{
			Addr:   serveAddr,
			Window: serveWindow,
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().StringVar(&serveWindow, "window", "", "Default window when a request omits ?window=")
}
