package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tx-dashboard/internal/alerting"
	"tx-dashboard/internal/config"
	"tx-dashboard/internal/pipeline"
	"tx-dashboard/internal/scheduler"
	"tx-dashboard/internal/window"
)

// Refresher produces one snapshot per call.
type Refresher interface {
	Refresh(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error)
}

// PublishFunc receives the result of every refresh tick. err is non-nil when
// the cycle failed; snap is then the zero value.
type PublishFunc func(snap pipeline.Snapshot, err error)

// Service orchestrates refresh ticks, publishing and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	refresher Refresher
	window    window.Selector
	publish   PublishFunc
	notifier  alerting.Notifier
	clock     clockwork.Clock
	logger    zerolog.Logger

	alertsOn  bool
	threshold decimal.Decimal
	minTotal  int64
	cooldown  time.Duration

	mu        sync.Mutex
	lastAlert time.Time
}

// New constructs the refresh service. sched may be nil for one-shot use.
func New(cfg *config.Config, sched *scheduler.Scheduler, refresher Refresher, sel window.Selector, publish PublishFunc, notifier alerting.Notifier, clock clockwork.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		scheduler: sched,
		refresher: refresher,
		window:    sel,
		publish:   publish,
		notifier:  notifier,
		clock:     clock,
		logger:    logger.With().Str("component", "service").Logger(),
		alertsOn:  cfg.Alerting.Enabled,
		threshold: decimal.NewFromFloat(cfg.Alerting.MinApprovalRate),
		minTotal:  cfg.Alerting.MinTotal,
		cooldown:  cfg.Alerting.Cooldown,
	}
}

// Run begins the refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单次刷新周期。
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	snap, err := s.refresher.Refresh(ctx, s.window)
	if s.publish != nil {
		s.publish(snap, err)
	}
	if err != nil {
		return fmt.Errorf("refresh at %s: %w", tick.Format(time.RFC3339), err)
	}

	s.maybeAlert(ctx, snap)
	return nil
}

func (s *Service) maybeAlert(ctx context.Context, snap pipeline.Snapshot) {
	if !s.alertsOn || s.notifier == nil || snap.NoData {
		return
	}
	if snap.Summary.TotalCount < s.minTotal || !snap.Summary.ApprovalRate.LessThan(s.threshold) {
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	previous := s.lastAlert
	if !previous.IsZero() && now.Sub(previous) < s.cooldown {
		s.mu.Unlock()
		s.logger.Debug().Time("last_alert", previous).Msg("alert suppressed by cooldown")
		return
	}
	// Claimed before sending so overlapping ticks cannot both alert; released on failure.
	s.lastAlert = now
	s.mu.Unlock()

	note := alerting.Notification{
		Anchor:          snap.Anchor,
		Window:          snap.Window,
		TotalCount:      snap.Summary.TotalCount,
		ApprovedTotal:   snap.Summary.ApprovedTotal,
		Auth00Total:     snap.Summary.Auth00Total,
		ApprovalRatePct: snap.Summary.ApprovalRate,
		ThresholdPct:    s.threshold,
		CycleID:         snap.CycleID,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.mu.Lock()
		if s.lastAlert.Equal(now) {
			s.lastAlert = previous
		}
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("cycle_id", snap.CycleID).Msg("failed to dispatch alert")
		return
	}
	s.logger.Warn().
		Str("approval_rate_pct", snap.Summary.ApprovalRate.StringFixed(2)).
		Str("threshold_pct", s.threshold.StringFixed(2)).
		Msg("approval rate below threshold")
}
