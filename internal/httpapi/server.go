// Package httpapi exposes refresh snapshots as a JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/pipeline"
	"tx-dashboard/internal/source"
	"tx-dashboard/internal/window"
)

// Refresher produces one snapshot per call. Implementations must be safe for
// concurrent use.
type Refresher interface {
	Refresh(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error)
}

// Server is the dashboard API server.
type Server struct {
	refresher     Refresher
	defaultWindow window.Selector
	defaultRows   int
	router        *gin.Engine
	logger        zerolog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(refresher Refresher, defaultWindow window.Selector, defaultRows int, logger zerolog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		refresher:     refresher,
		defaultWindow: defaultWindow,
		defaultRows:   defaultRows,
		router:        router,
		logger:        logger.With().Str("component", "httpapi").Logger(),
	}
	router.Use(s.logRequest)

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/snapshot", s.handleSnapshot)
		api.GET("/kpis", s.handleKPIs)
		api.GET("/organized", s.handleOrganized)
		api.GET("/auth/latest", s.handleLatestAuth)
		api.GET("/status/pivot", s.handleStatusPivot)
	}

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug().
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", c.Writer.Status()).
		Dur("elapsed", time.Since(start)).
		Msg("request served")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// refresh resolves the window query parameter and runs one cycle. It writes
// the error response itself and reports false on failure.
func (s *Server) refresh(c *gin.Context) (pipeline.Snapshot, bool) {
	sel := s.defaultWindow
	if raw := c.Query("window"); raw != "" {
		parsed, err := window.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return pipeline.Snapshot{}, false
		}
		sel = parsed
	}

	snap, err := s.refresher.Refresh(c.Request.Context(), sel)
	if err != nil {
		kind := source.KindOf(err)
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("refresh failed")
		c.JSON(statusFor(kind), gin.H{"error": err.Error(), "kind": kind})
		return pipeline.Snapshot{}, false
	}
	return snap, true
}

func statusFor(kind source.Kind) int {
	switch kind {
	case source.KindSourceUnavailable:
		return http.StatusServiceUnavailable
	case source.KindSchemaMismatch, source.KindParseError:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, ok := s.refresh(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleKPIs(c *gin.Context) {
	snap, ok := s.refresh(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window":  snap.Window,
		"no_data": snap.NoData,
		"max_ts":  snap.Anchor,
		"summary": snap.Summary,
	})
}

func (s *Server) handleOrganized(c *gin.Context) {
	limit := s.defaultRows
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	snap, ok := s.refresh(c)
	if !ok {
		return
	}
	rows := aggregate.Tail(snap.Tables.Organized, limit)
	c.JSON(http.StatusOK, gin.H{
		"window":  snap.Window,
		"no_data": snap.NoData,
		"rows":    rows,
		"count":   len(rows),
	})
}

func (s *Server) handleLatestAuth(c *gin.Context) {
	snap, ok := s.refresh(c)
	if !ok {
		return
	}
	dist, found := aggregate.LatestAuthDistribution(snap.Tables.Auth)
	if !found {
		c.JSON(http.StatusOK, gin.H{"window": snap.Window, "no_data": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": snap.Window, "no_data": false, "distribution": dist})
}

func (s *Server) handleStatusPivot(c *gin.Context) {
	snap, ok := s.refresh(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window":  snap.Window,
		"no_data": snap.NoData,
		"pivot":   aggregate.Pivot(snap.Tables.Status),
	})
}
