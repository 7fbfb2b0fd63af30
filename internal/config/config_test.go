package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tx-dashboard/internal/window"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  status:
    path: data/transactions.csv
  auth:
    path: data/transactions_auth_codes.csv
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Refresh.Interval != 10*time.Second {
		t.Fatalf("默认刷新间隔应为 10s, 实际 %s", cfg.Refresh.Interval)
	}
	if cfg.Cache.TTL != 5*time.Second || cfg.Cache.Backend != CacheMemory {
		t.Fatalf("缓存默认值错误: %#v", cfg.Cache)
	}
	if cfg.WindowSelector() != window.LastHour {
		t.Fatalf("默认窗口应为 1h: %s", cfg.Window)
	}
	if cfg.Sources.Lenient {
		t.Fatalf("默认应为严格解析")
	}
	if cfg.Logging.Output != "stderr" {
		t.Fatalf("默认日志输出应为 stderr: %q", cfg.Logging.Output)
	}
}

func TestLoadWindowLabel(t *testing.T) {
	path := writeConfig(t, `
window: "6 hours"
refresh:
  interval: 30s
sources:
  status: {path: a.csv}
  auth: {path: b.csv}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.WindowSelector() != window.Last6Hours {
		t.Fatalf("窗口标签应被接受: %s", cfg.Window)
	}
	if cfg.Refresh.Interval != 30*time.Second {
		t.Fatalf("刷新间隔解析错误: %s", cfg.Refresh.Interval)
	}
}

func validConfig() Config {
	return Config{
		Sources: SourcesConfig{
			Status:      SourceConfig{Kind: SourceCSV, Path: "a.csv"},
			Auth:        SourceConfig{Kind: SourceCSV, Path: "b.csv"},
			ReadTimeout: 10 * time.Second,
		},
		Refresh: RefreshConfig{Interval: 10 * time.Second},
		Window:  "1h",
		Cache:   CacheConfig{TTL: 5 * time.Second, Backend: CacheMemory},
		Export:  ExportConfig{MaxDataPoints: 10},
		Display: DisplayConfig{TableRows: 10},
		Alerting: AlertingConfig{
			MinApprovalRate: 90,
		},
	}
}

func TestValidate(t *testing.T) {
	base := validConfig()
	if err := base.Validate(); err != nil {
		t.Fatalf("基础配置应合法: %v", err)
	}

	cases := []struct {
		want   string
		mutate func(c *Config)
	}{
		{"refresh.interval", func(c *Config) { c.Refresh.Interval = time.Second }},
		{"refresh.interval", func(c *Config) { c.Refresh.Interval = 301 * time.Second }},
		{"window", func(c *Config) { c.Window = "2h" }},
		{"cache.ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"sources.read_timeout", func(c *Config) { c.Sources.ReadTimeout = -time.Second }},
		{"sources.read_timeout", func(c *Config) { c.Sources.ReadTimeout = 0 }},
		{"sources.status.path", func(c *Config) { c.Sources.Status.Path = "" }},
		{"sources.auth.kind", func(c *Config) { c.Sources.Auth.Kind = "s3" }},
		{"database.dsn", func(c *Config) { c.Sources.Auth = SourceConfig{Kind: SourcePostgres, Table: "t"} }},
		{"sources.status.table", func(c *Config) {
			c.Database.DSN = "postgres://localhost/tx"
			c.Sources.Status = SourceConfig{Kind: SourcePostgres, Table: "a;b"}
		}},
		{"cache.redis.addr", func(c *Config) { c.Cache.Backend = CacheRedis }},
		{"cache.backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"export.max_data_points", func(c *Config) { c.Export.MaxDataPoints = 0 }},
		{"display.table_rows", func(c *Config) { c.Display.TableRows = 0 }},
		{"alerting.min_approval_rate", func(c *Config) { c.Alerting.MinApprovalRate = 120 }},
		{"alerting.telegram.bot_token", func(c *Config) { c.Alerting.Telegram.Enabled = true }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: 应校验失败", tc.want)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: 错误信息不相关: %v", tc.want, err)
		}
	}
}

func TestBoundaryIntervalsAccepted(t *testing.T) {
	for _, interval := range []time.Duration{MinRefreshInterval, MaxRefreshInterval} {
		cfg := validConfig()
		cfg.Refresh.Interval = interval
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s 应合法: %v", interval, err)
		}
	}
}

func TestResolveWindow(t *testing.T) {
	cfg := validConfig()
	sel, err := cfg.ResolveWindow("")
	if err != nil || sel != window.LastHour {
		t.Fatalf("无覆盖时应使用配置窗口: %v %v", sel, err)
	}
	sel, err = cfg.ResolveWindow("15m")
	if err != nil || sel != window.Last15Minutes {
		t.Fatalf("覆盖窗口解析错误: %v %v", sel, err)
	}
	if _, err := cfg.ResolveWindow("3d"); err == nil {
		t.Fatalf("非法覆盖应报错")
	}
}
