package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"tx-dashboard/internal/logging"
	"tx-dashboard/internal/source"
	"tx-dashboard/internal/window"
)

// Refresh interval bounds.
const (
	MinRefreshInterval = 2 * time.Second
	MaxRefreshInterval = 300 * time.Second
)

// Source kinds.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Database DatabaseConfig `mapstructure:"database"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Window   string         `mapstructure:"window"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
	Display  DisplayConfig  `mapstructure:"display"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourcesConfig locates the two count streams.
type SourcesConfig struct {
	Status      SourceConfig  `mapstructure:"status"`
	Auth        SourceConfig  `mapstructure:"auth"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// Lenient skips unparsable rows instead of failing the cycle.
	Lenient bool `mapstructure:"lenient"`
}

// SourceConfig points at one stream: a CSV file or a PostgreSQL table.
type SourceConfig struct {
	Kind  string `mapstructure:"kind"`
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RefreshConfig governs the refresh cadence.
type RefreshConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToTick  bool          `mapstructure:"align_to_tick"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// CacheConfig sets the memoisation policy for read+aggregate results.
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Backend string        `mapstructure:"backend"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the shared cache backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AlertingConfig defines the approval rate alert.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	MinApprovalRate float64        `mapstructure:"min_approval_rate"`
	MinTotal        int64          `mapstructure:"min_total"`
	Cooldown        time.Duration  `mapstructure:"cooldown"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// DisplayConfig sets console rendering behaviour.
type DisplayConfig struct {
	TableRows int `mapstructure:"table_rows"`
}

// HTTPConfig configures the JSON API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TXDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "txdash")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("sources.status.kind", SourceCSV)
	v.SetDefault("sources.status.path", "")
	v.SetDefault("sources.status.table", "transactions")
	v.SetDefault("sources.auth.kind", SourceCSV)
	v.SetDefault("sources.auth.path", "")
	v.SetDefault("sources.auth.table", "transactions_auth_codes")
	v.SetDefault("sources.read_timeout", "10s")
	v.SetDefault("sources.lenient", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("refresh.interval", "10s")
	v.SetDefault("refresh.align_to_tick", false)
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("window", window.LastHour.Name)

	v.SetDefault("cache.ttl", "5s")
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "txdash:cache:")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_approval_rate", 90.0)
	v.SetDefault("alerting.min_total", 1)
	v.SetDefault("alerting.cooldown", "15m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
	v.SetDefault("display.table_rows", 200)
	v.SetDefault("http.addr", ":8080")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Refresh.Interval < MinRefreshInterval || c.Refresh.Interval > MaxRefreshInterval {
		return fmt.Errorf("refresh.interval must be between %s and %s, got %s", MinRefreshInterval, MaxRefreshInterval, c.Refresh.Interval)
	}
	if _, err := window.Parse(c.Window); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero")
	}
	if c.Sources.ReadTimeout <= 0 {
		return fmt.Errorf("sources.read_timeout must be greater than zero")
	}
	if err := c.validateSource("sources.status", c.Sources.Status); err != nil {
		return err
	}
	if err := c.validateSource("sources.auth", c.Sources.Auth); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Display.TableRows <= 0 {
		return fmt.Errorf("display.table_rows must be greater than zero")
	}
	if c.Alerting.MinApprovalRate < 0 || c.Alerting.MinApprovalRate > 100 {
		return fmt.Errorf("alerting.min_approval_rate must be within [0, 100]")
	}
	if c.Alerting.MinTotal < 0 {
		return fmt.Errorf("alerting.min_total cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

func (c *Config) validateSource(key string, src SourceConfig) error {
	switch src.Kind {
	case SourceCSV:
		if src.Path == "" {
			return fmt.Errorf("%s.path is required for csv sources", key)
		}
	case SourcePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%s uses postgres but database.dsn is empty", key)
		}
		if !source.ValidTableName(src.Table) {
			return fmt.Errorf("%s.table %q is not a valid table name", key, src.Table)
		}
	default:
		return fmt.Errorf("unknown %s.kind %q", key, src.Kind)
	}
	return nil
}

// WindowSelector returns the configured display window.
func (c *Config) WindowSelector() window.Selector {
	sel, err := window.Parse(c.Window)
	if err != nil {
		return window.LastHour
	}
	return sel
}

// ResolveWindow returns the CLI override when set, else the configured window.
func (c *Config) ResolveWindow(override string) (window.Selector, error) {
	if override == "" {
		return c.WindowSelector(), nil
	}
	return window.Parse(override)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// UsesPostgres reports whether either source reads from PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Sources.Status.Kind == SourcePostgres || c.Sources.Auth.Kind == SourcePostgres
}
