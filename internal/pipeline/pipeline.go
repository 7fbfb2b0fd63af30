// Package pipeline runs one refresh cycle: read both sources, aggregate,
// cache, apply the display window and compute the KPIs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/cache"
	"tx-dashboard/internal/model"
	"tx-dashboard/internal/source"
	"tx-dashboard/internal/window"
)

// DefaultReadTimeout bounds a source pass when Options.ReadTimeout is unset.
const DefaultReadTimeout = 10 * time.Second

// Options tune a Pipeline.
type Options struct {
	TTL         time.Duration
	ReadTimeout time.Duration
	Clock       clockwork.Clock
}

// Snapshot is the outcome of one successful refresh cycle.
type Snapshot struct {
	CycleID     string    `json:"cycle_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Window      string    `json:"window"`
	// NoData is set when either source yielded zero rows. Tables and Summary are empty then.
	NoData     bool              `json:"no_data"`
	Anchor     time.Time         `json:"max_ts,omitzero"`
	Start      time.Time         `json:"start_ts,omitzero"`
	Tables     aggregate.Tables  `json:"tables"`
	Summary    aggregate.Summary `json:"summary"`
	Skipped    int               `json:"skipped_rows"`
	CacheHit   bool              `json:"cache_hit"`
	ComputedAt time.Time         `json:"computed_at"`
}

// Pipeline wires the two source readers to the cache and window filter.
type Pipeline struct {
	status source.Reader
	auth   source.Reader
	cache  *cache.Cache
	opts   Options
	logger zerolog.Logger
}

// New constructs a pipeline over the status and auth readers.
func New(status, auth source.Reader, c *cache.Cache, opts Options, logger zerolog.Logger) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &Pipeline{
		status: status,
		auth:   auth,
		cache:  c,
		opts:   opts,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Identity is the cache key of the source pair.
func (p *Pipeline) Identity() string {
	return p.status.Identity() + "|" + p.auth.Identity()
}

// Refresh runs one cycle for sel. Source failures abort the cycle and are
// returned unchanged; an empty source yields a NoData snapshot and a nil error.
func (p *Pipeline) Refresh(ctx context.Context, sel window.Selector) (Snapshot, error) {
	cycleID := uuid.NewString()
	logger := p.logger.With().Str("cycle_id", cycleID).Str("window", sel.Name).Logger()

	res, err := p.cache.GetOrCompute(ctx, p.Identity(), p.opts.TTL, p.load)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(source.KindOf(err))).Msg("refresh cycle failed")
		return Snapshot{}, err
	}

	snap := Snapshot{
		CycleID:     cycleID,
		GeneratedAt: p.opts.Clock.Now().UTC(),
		Window:      sel.Name,
		Skipped:     res.Payload.Skipped,
		CacheHit:    res.Hit,
		ComputedAt:  res.ComputedAt,
	}

	windowed, err := window.Apply(res.Payload.Tables, sel)
	if errors.Is(err, window.ErrNoData) {
		snap.NoData = true
		logger.Info().Bool("cache_hit", res.Hit).Msg("no data in sources")
		return snap, nil
	}
	if err != nil {
		return Snapshot{}, err
	}

	snap.Anchor = windowed.Anchor
	snap.Start = windowed.Start
	snap.Tables = windowed.Tables
	snap.Summary = aggregate.Summarize(windowed.Tables)

	logger.Info().
		Bool("cache_hit", res.Hit).
		Int("status_rows", len(snap.Tables.Status)).
		Int("auth_rows", len(snap.Tables.Auth)).
		Int("organized_rows", len(snap.Tables.Organized)).
		Int64("total", snap.Summary.TotalCount).
		Str("approval_rate_pct", snap.Summary.ApprovalRate.StringFixed(2)).
		Msg("refresh cycle complete")
	return snap, nil
}

// load reads both sources within one deadline and aggregates them. Either
// failure cancels the other read and fails the whole pass. The cache runs it
// detached from the caller, so the deadline is its only bound.
func (p *Pipeline) load(ctx context.Context) (cache.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ReadTimeout)
	defer cancel()

	var (
		status        []model.StatusRecord
		auth          []model.AuthRecord
		statusSkipped int
		authSkipped   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, statusSkipped, err = source.ReadStatus(gctx, p.status)
		if err != nil {
			return fmt.Errorf("read status source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		auth, authSkipped, err = source.ReadAuth(gctx, p.auth)
		if err != nil {
			return fmt.Errorf("read auth source: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return cache.Payload{}, err
	}

	p.logger.Debug().
		Int("status_records", len(status)).
		Int("auth_records", len(auth)).
		Int("skipped", statusSkipped+authSkipped).
		Msg("sources read")

	return cache.Payload{
		Tables:  aggregate.Build(status, auth),
		Skipped: statusSkipped + authSkipped,
	}, nil
}
