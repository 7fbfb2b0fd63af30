package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tx-dashboard/internal/cache"
	"tx-dashboard/internal/source"
	"tx-dashboard/internal/window"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// stubReader counts full scans and returns a fixed table.
type stubReader struct {
	id    string
	rows  []source.Row
	err   error
	block bool
	calls atomic.Int32
}

func (r *stubReader) Identity() string { return r.id }

func (r *stubReader) Read(ctx context.Context, schema source.Schema) (source.Table, error) {
	r.calls.Add(1)
	if r.block {
		<-ctx.Done()
		return source.Table{}, ctx.Err()
	}
	if r.err != nil {
		return source.Table{}, r.err
	}
	return source.Table{Rows: append([]source.Row(nil), r.rows...)}, nil
}

func newPipeline(status, auth source.Reader, clock clockwork.Clock) *Pipeline {
	c := cache.New(cache.NewMemoryStore(), clock, zerolog.Nop())
	return New(status, auth, c, Options{TTL: 5 * time.Second, ReadTimeout: time.Second, Clock: clock}, zerolog.Nop())
}

func scenarioA() (*stubReader, *stubReader) {
	status := &stubReader{id: "status", rows: []source.Row{
		{Timestamp: t0, Category: "approved", Count: 10},
		{Timestamp: t0, Category: "denied", Count: 2},
	}}
	auth := &stubReader{id: "auth", rows: []source.Row{
		{Timestamp: t0, Category: "00", Count: 9},
	}}
	return status, auth
}

func TestRefreshScenarioA(t *testing.T) {
	status, auth := scenarioA()
	p := newPipeline(status, auth, clockwork.NewFakeClockAt(t0))

	snap, err := p.Refresh(context.Background(), window.LastHour)
	if err != nil {
		t.Fatalf("刷新不应失败: %v", err)
	}
	if snap.NoData {
		t.Fatalf("有数据时不应为 NoData")
	}
	if snap.CycleID == "" {
		t.Fatalf("每个周期应有 cycle_id")
	}
	if len(snap.Tables.Organized) != 1 {
		t.Fatalf("期望 1 行 organized, 实际 %d", len(snap.Tables.Organized))
	}
	row := snap.Tables.Organized[0]
	if row.Approved != 10 || row.Denied != 2 || row.Auth00() != 9 {
		t.Fatalf("organized 行错误: %#v", row)
	}
	if snap.Summary.TotalCount != 12 || snap.Summary.ApprovalRate.StringFixed(2) != "83.33" {
		t.Fatalf("KPI 错误: %#v", snap.Summary)
	}
	if !snap.Anchor.Equal(t0) || !snap.Start.Equal(t0.Add(-time.Hour)) {
		t.Fatalf("窗口边界错误: anchor=%s start=%s", snap.Anchor, snap.Start)
	}
}

func TestRefreshWithinTTLDoesNotReread(t *testing.T) {
	status, auth := scenarioA()
	clock := clockwork.NewFakeClockAt(t0)
	p := newPipeline(status, auth, clock)

	first, err := p.Refresh(context.Background(), window.All)
	if err != nil {
		t.Fatalf("首次刷新失败: %v", err)
	}
	clock.Advance(2 * time.Second)
	second, err := p.Refresh(context.Background(), window.All)
	if err != nil {
		t.Fatalf("二次刷新失败: %v", err)
	}

	if status.calls.Load() != 1 || auth.calls.Load() != 1 {
		t.Fatalf("TTL 内不应重新读取: status=%d auth=%d", status.calls.Load(), auth.calls.Load())
	}
	if !second.CacheHit || first.CacheHit {
		t.Fatalf("缓存命中标记错误: first=%v second=%v", first.CacheHit, second.CacheHit)
	}
	if !reflect.DeepEqual(first.Tables, second.Tables) || !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Fatalf("TTL 内两次结果应完全一致")
	}

	clock.Advance(3 * time.Second)
	if _, err := p.Refresh(context.Background(), window.All); err != nil {
		t.Fatalf("过期后刷新失败: %v", err)
	}
	if status.calls.Load() != 2 || auth.calls.Load() != 2 {
		t.Fatalf("过期后应重新读取两个来源")
	}
}

func TestRefreshScenarioCEmptyStatus(t *testing.T) {
	status := &stubReader{id: "status"}
	auth := &stubReader{id: "auth", rows: []source.Row{{Timestamp: t0, Category: "00", Count: 3}}}
	p := newPipeline(status, auth, clockwork.NewFakeClockAt(t0))

	snap, err := p.Refresh(context.Background(), window.Last15Minutes)
	if err != nil {
		t.Fatalf("空来源不应视为错误: %v", err)
	}
	if !snap.NoData {
		t.Fatalf("status 为空应报告 NoData")
	}
	if len(snap.Tables.Organized) != 0 || snap.Summary.TotalCount != 0 {
		t.Fatalf("NoData 时不应有数据: %#v", snap)
	}
}

func TestRefreshPropagatesSourceErrors(t *testing.T) {
	status, _ := scenarioA()
	path := filepath.Join(t.TempDir(), "auth.csv")
	if err := os.WriteFile(path, []byte("timestamp,auth_code,count\n2024-05-01 10:00,00,abc\n"), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	auth := source.NewCSV(path, source.Options{Logger: zerolog.Nop()})
	p := newPipeline(status, auth, clockwork.NewFakeClockAt(t0))

	_, err := p.Refresh(context.Background(), window.All)
	if !errors.Is(err, source.ErrParse) {
		t.Fatalf("严格模式下解析错误应终止周期, 实际 %v", err)
	}

	missing := source.NewCSV(filepath.Join(t.TempDir(), "missing.csv"), source.Options{Logger: zerolog.Nop()})
	p = newPipeline(status, missing, clockwork.NewFakeClockAt(t0))
	if _, err := p.Refresh(context.Background(), window.All); !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("文件不存在应返回 SourceUnavailable, 实际 %v", err)
	}
}

func TestRefreshStalledReadTimesOut(t *testing.T) {
	status, _ := scenarioA()
	auth := &stubReader{id: "auth", block: true}
	c := cache.New(cache.NewMemoryStore(), clockwork.NewFakeClockAt(t0), zerolog.Nop())
	p := New(status, auth, c, Options{TTL: time.Second, ReadTimeout: 20 * time.Millisecond}, zerolog.Nop())

	_, err := p.Refresh(context.Background(), window.All)
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("读取超时应视为 SourceUnavailable, 实际 %v", err)
	}
}

func TestSnapshotJSONOmitsUnboundedStart(t *testing.T) {
	status, auth := scenarioA()
	p := newPipeline(status, auth, clockwork.NewFakeClockAt(t0))

	snap, err := p.Refresh(context.Background(), window.All)
	if err != nil {
		t.Fatalf("刷新不应失败: %v", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if _, ok := fields["start_ts"]; ok {
		t.Fatalf("All 窗口没有下界, 不应输出 start_ts: %s", fields["start_ts"])
	}
	if _, ok := fields["max_ts"]; !ok {
		t.Fatalf("应输出 max_ts")
	}

	empty, err := json.Marshal(Snapshot{NoData: true, Window: "1h"})
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	fields = nil
	if err := json.Unmarshal(empty, &fields); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if _, ok := fields["max_ts"]; ok {
		t.Fatalf("NoData 快照不应输出 max_ts")
	}
}

func TestIdentityCombinesSources(t *testing.T) {
	status, auth := scenarioA()
	p := newPipeline(status, auth, clockwork.NewFakeClockAt(t0))
	if p.Identity() != "status|auth" {
		t.Fatalf("identity 错误: %s", p.Identity())
	}
}
