package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"tx-dashboard/internal/httpapi"
)

// Serve exposes the pipeline over HTTP. Requests share one cache, so
// concurrent callers within the TTL trigger at most one source read.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sel, err := a.Config.ResolveWindow(opts.Window)
	if err != nil {
		return err
	}
	addr := opts.Addr
	if addr == "" {
		addr = a.Config.HTTP.Addr
	}

	p, closePipeline, err := a.openPipeline(ctx)
	if err != nil {
		return err
	}
	defer closePipeline()

	if a.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := httpapi.NewServer(p, sel, a.Config.Display.TableRows, a.Logger)
	err = srv.Run(ctx, addr)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("http api terminated with error")
		return err
	}

	a.Logger.Info().Msg("http api stopped")
	return nil
}
