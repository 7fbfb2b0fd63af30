package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/model"
	"tx-dashboard/internal/pipeline"
	"tx-dashboard/internal/source"
	"tx-dashboard/internal/window"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// MockRefresher records the requested window and returns a canned result.
type MockRefresher struct {
	RefreshFunc func(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error)
	lastWindow  window.Selector
}

func (m *MockRefresher) Refresh(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error) {
	m.lastWindow = sel
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, sel)
	}
	return pipeline.Snapshot{NoData: true, Window: sel.Name}, nil
}

func scenarioSnapshot(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error) {
	tables := aggregate.Build(
		[]model.StatusRecord{
			{Timestamp: t0, Status: model.StatusApproved, Count: 10},
			{Timestamp: t0, Status: model.StatusDenied, Count: 2},
			{Timestamp: t0.Add(time.Minute), Status: model.StatusApproved, Count: 4},
		},
		[]model.AuthRecord{
			{Timestamp: t0, AuthCode: "00", Count: 9},
			{Timestamp: t0.Add(time.Minute), AuthCode: "00", Count: 3},
			{Timestamp: t0.Add(time.Minute), AuthCode: "51", Count: 5},
		},
	)
	return pipeline.Snapshot{
		Window:  sel.Name,
		Anchor:  t0.Add(time.Minute),
		Tables:  tables,
		Summary: aggregate.Summarize(tables),
	}, nil
}

func setupTestServer(refresher Refresher) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(refresher, window.LastHour, 200, zerolog.Nop())
}

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(setupTestServer(&MockRefresher{}), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz 应返回 200, 实际 %d", rec.Code)
	}
}

func TestKPIs(t *testing.T) {
	refresher := &MockRefresher{RefreshFunc: scenarioSnapshot}
	rec := doRequest(setupTestServer(refresher), "/api/kpis?window=15m")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d: %s", rec.Code, rec.Body.String())
	}
	if refresher.lastWindow != window.Last15Minutes {
		t.Fatalf("应使用查询参数指定的窗口: %v", refresher.lastWindow)
	}

	var body struct {
		Window  string `json:"window"`
		Summary struct {
			TotalCount   int64  `json:"total_count"`
			ApprovalRate string `json:"approval_rate_pct"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body.Window != "15m" || body.Summary.TotalCount != 16 {
		t.Fatalf("KPI 响应错误: %+v", body)
	}
	if body.Summary.ApprovalRate == "" {
		t.Fatalf("应返回 approval rate")
	}
}

func TestDefaultWindow(t *testing.T) {
	refresher := &MockRefresher{}
	rec := doRequest(setupTestServer(refresher), "/api/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	if refresher.lastWindow != window.LastHour {
		t.Fatalf("未指定时应使用默认窗口: %v", refresher.lastWindow)
	}
}

func TestInvalidWindow(t *testing.T) {
	refresher := &MockRefresher{}
	rec := doRequest(setupTestServer(refresher), "/api/snapshot?window=2d")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("非法窗口应返回 400, 实际 %d", rec.Code)
	}
}

func TestOrganizedLimit(t *testing.T) {
	rec := doRequest(setupTestServer(&MockRefresher{RefreshFunc: scenarioSnapshot}), "/api/organized?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	var body struct {
		Count int                     `json:"count"`
		Rows  []model.OrganizedRecord `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body.Count != 1 || len(body.Rows) != 1 {
		t.Fatalf("limit=1 应只返回最后一行: %+v", body)
	}
	if !body.Rows[0].Timestamp.Equal(t0.Add(time.Minute)) || body.Rows[0].Auth00() != 3 {
		t.Fatalf("应返回最新一行: %+v", body.Rows[0])
	}

	bad := doRequest(setupTestServer(&MockRefresher{}), "/api/organized?limit=-1")
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("负数 limit 应返回 400, 实际 %d", bad.Code)
	}
}

func TestLatestAuth(t *testing.T) {
	rec := doRequest(setupTestServer(&MockRefresher{RefreshFunc: scenarioSnapshot}), "/api/auth/latest")
	var body struct {
		Distribution aggregate.AuthDistribution `json:"distribution"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	codes := body.Distribution.Codes
	if len(codes) != 2 || codes[0].AuthCode != "51" || codes[1].AuthCode != "00" {
		t.Fatalf("最新分钟的 auth code 应按数量降序: %+v", codes)
	}
}

func TestStatusPivot(t *testing.T) {
	rec := doRequest(setupTestServer(&MockRefresher{RefreshFunc: scenarioSnapshot}), "/api/status/pivot")
	var body struct {
		Pivot aggregate.StatusMatrix `json:"pivot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	denied := body.Pivot.Series(model.StatusDenied)
	if len(denied) != 2 || denied[0] != 2 || denied[1] != 0 {
		t.Fatalf("缺失的 (ts,status) 应填 0: %v", denied)
	}
}

func TestSourceErrorsMapToStatus(t *testing.T) {
	cases := map[source.Kind]int{
		source.KindSourceUnavailable: http.StatusServiceUnavailable,
		source.KindSchemaMismatch:    http.StatusUnprocessableEntity,
		source.KindParseError:        http.StatusUnprocessableEntity,
	}
	for kind, want := range cases {
		kind := kind
		refresher := &MockRefresher{RefreshFunc: func(ctx context.Context, sel window.Selector) (pipeline.Snapshot, error) {
			return pipeline.Snapshot{}, &source.Error{Kind: kind, Source: "csv:/data/x.csv"}
		}}
		rec := doRequest(setupTestServer(refresher), "/api/snapshot")
		if rec.Code != want {
			t.Fatalf("%s 应返回 %d, 实际 %d", kind, want, rec.Code)
		}
	}
}
