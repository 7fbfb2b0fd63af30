package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/pipeline"
	"tx-dashboard/internal/service"
	"tx-dashboard/internal/window"
)

// SimulateAlert 使用给定的通过/总交易数模拟一次低通过率告警流程。
func (a *App) SimulateAlert(ctx context.Context, approved, total int64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	if approved > total {
		return errors.New("approved 不能大于 total")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	sel := a.Config.WindowSelector()
	now := time.Now().UTC().Truncate(time.Minute)
	refresher := &staticRefresher{snap: pipeline.Snapshot{
		CycleID:     uuid.NewString(),
		GeneratedAt: now,
		Window:      sel.Name,
		Anchor:      now,
		Summary: aggregate.Summary{
			TotalCount:    total,
			ApprovedTotal: approved,
			ApprovalRate:  aggregate.ApprovalRate(approved, total),
		},
	}}

	svc := service.New(a.Config, nil, refresher, sel, nil, notifier, nil, a.Logger)
	return svc.ProcessTick(ctx, now)
}

type staticRefresher struct {
	snap pipeline.Snapshot
}

func (s *staticRefresher) Refresh(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error) {
	return s.snap, nil
}

var _ service.Refresher = (*staticRefresher)(nil)
