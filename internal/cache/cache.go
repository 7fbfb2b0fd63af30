// Package cache memoizes the read+aggregate result of a pair of sources for a
// short time-to-live.
//
// Entries are replaced wholesale: a reader either sees the previous payload or
// the new one, never a mix. Concurrent misses for the same identity share one
// recomputation through singleflight.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"tx-dashboard/internal/aggregate"
)

// Payload is the cached output of one read+aggregate pass.
type Payload struct {
	Tables aggregate.Tables `json:"tables"`
	// Skipped counts rows dropped by lenient parsing across both sources.
	Skipped int `json:"skipped"`
}

// Entry is one cached payload and the instant it was computed.
type Entry struct {
	Identity   string        `json:"identity"`
	ComputedAt time.Time     `json:"computed_at"`
	TTL        time.Duration `json:"ttl"`
	Payload    Payload       `json:"payload"`
}

// Fresh reports whether the entry may still be served at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.ComputedAt) < e.TTL
}

// Store holds entries keyed by source identity.
type Store interface {
	Load(ctx context.Context, identity string) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
}

// ComputeFunc performs the uncached read+aggregate pass.
type ComputeFunc func(ctx context.Context) (Payload, error)

// Result is what GetOrCompute hands back to the caller.
type Result struct {
	Payload    Payload
	ComputedAt time.Time
	Hit        bool
}

// Cache serves fresh entries from a Store and recomputes expired ones.
type Cache struct {
	store  Store
	clock  clockwork.Clock
	group  singleflight.Group
	logger zerolog.Logger
}

// New constructs a cache over store. A nil clock uses the wall clock.
func New(store Store, clock clockwork.Clock, logger zerolog.Logger) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// GetOrCompute returns the fresh entry for identity, or runs compute and stores
// its result. Errors from compute are returned and never cached.
//
// Concurrent misses for one identity share a single compute call. That call
// runs detached from any caller's cancellation; a caller whose ctx ends stops
// waiting and gets ctx.Err(), while the other callers still receive the result.
// compute must bound its own blocking work.
func (c *Cache) GetOrCompute(ctx context.Context, identity string, ttl time.Duration, compute ComputeFunc) (Result, error) {
	if ttl <= 0 {
		return Result{}, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	if entry, ok := c.lookup(ctx, identity); ok {
		return Result{Payload: entry.Payload, ComputedAt: entry.ComputedAt, Hit: true}, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(identity, func() (any, error) {
		// A flight that finished just before this one may already have stored a fresh entry.
		if entry, ok := c.lookup(flightCtx, identity); ok {
			return Result{Payload: entry.Payload, ComputedAt: entry.ComputedAt, Hit: true}, nil
		}

		payload, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}

		entry := Entry{
			Identity:   identity,
			ComputedAt: c.clock.Now().UTC(),
			TTL:        ttl,
			Payload:    payload,
		}
		if err := c.store.Save(flightCtx, entry); err != nil {
			c.logger.Warn().Err(err).Str("identity", identity).Msg("failed to store cache entry")
		}
		c.logger.Debug().Str("identity", identity).Time("computed_at", entry.ComputedAt).Msg("cache entry refreshed")
		return Result{Payload: payload, ComputedAt: entry.ComputedAt}, nil
	})

	select {
	case <-ctx.Done():
		c.logger.Debug().Str("identity", identity).Msg("caller left before recomputation finished")
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		if r.Shared {
			c.logger.Debug().Str("identity", identity).Msg("joined in-flight recomputation")
		}
		return r.Val.(Result), nil
	}
}

func (c *Cache) lookup(ctx context.Context, identity string) (Entry, bool) {
	entry, ok, err := c.store.Load(ctx, identity)
	if err != nil {
		c.logger.Warn().Err(err).Str("identity", identity).Msg("cache lookup failed; recomputing")
		return Entry{}, false
	}
	if !ok || !entry.Fresh(c.clock.Now()) {
		return Entry{}, false
	}
	return entry, true
}
