// Package config holds the immutable service configuration. Adapters and the
// router receive explicit config structs at construction; nothing reads
// ambient global state.
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"

	defaultAdapterTimeout = 15 * time.Second
	defaultAdapterRetries = 2
	defaultRenderTimeout  = 45 * time.Second
	defaultLookupTimeout  = 10 * time.Second

	defaultWorkerPoolSize     = 8
	defaultAdapterMaxInFlight = 4
	defaultAdapterMaxRPS      = 4.0
	defaultBulkMaxURLs        = 1000
	defaultRetentionDays      = 14
	defaultPayloadMaxBytes    = 256 * 1024
	defaultSweepInterval      = time.Hour
	defaultPriceAbsThreshold  = 1.0
	defaultPricePctThreshold  = 0.02
)

type Config struct {
	Debug      bool             `env:"APP_DEBUG" yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Adapters   AdaptersConfig   `yaml:"adapters"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Components ComponentsConfig `yaml:"components"`
	Render     RenderConfig     `yaml:"render"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" yaml:"host"`
	Port         int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection configuration for event publishing.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"`
}

// AdapterConfig configures one extraction adapter. Domains are host suffixes
// the adapter serves; "*" matches everything.
type AdapterConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Domains    []string      `yaml:"domains"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
}

// AdaptersConfig holds the per-adapter configuration table plus the shared
// in-flight cap and start-rate pacing applied to each adapter across all
// jobs.
type AdaptersConfig struct {
	MarketAPI   AdapterConfig `yaml:"market_api"`
	Markup      AdapterConfig `yaml:"markup"`
	Rendered    AdapterConfig `yaml:"rendered"`
	MaxInFlight int           `yaml:"max_in_flight"`
	MaxRPS      float64       `yaml:"max_rps"`
}

// IngestConfig tunes the ingestion pipeline itself.
type IngestConfig struct {
	WorkerPoolSize          int           `yaml:"worker_pool_size"`
	SyncSingle              bool          `yaml:"sync_single"`
	BulkMaxURLs             int           `yaml:"bulk_max_urls"`
	PriceChangeAbsThreshold float64       `yaml:"price_change_abs_threshold"`
	PriceChangePctThreshold float64       `yaml:"price_change_pct_threshold"`
	RawPayloadRetentionDays int           `yaml:"raw_payload_retention_days"`
	RawPayloadMaxBytes      int           `yaml:"raw_payload_max_bytes"`
	SweepInterval           time.Duration `yaml:"sweep_interval"`
}

// ComponentsConfig points at the component catalog lookup collaborator.
type ComponentsConfig struct {
	BaseURL string        `env:"COMPONENTS_API_URL" yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RenderConfig points at the browser rendering collaborator.
type RenderConfig struct {
	BaseURL string        `env:"RENDER_API_URL" yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Ingest.WorkerPoolSize <= 0 {
		return errors.New("ingest.worker_pool_size must be positive")
	}
	if c.Ingest.PriceChangePctThreshold < 0 || c.Ingest.PriceChangePctThreshold > 1 {
		return errors.New("ingest.price_change_pct_threshold must be a ratio between 0 and 1")
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg, err := loadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}

	setAdapterDefaults(&cfg.Adapters.MarketAPI)
	setAdapterDefaults(&cfg.Adapters.Markup)
	// The structured API only serves marketplaces it has credentials for;
	// the page-based adapters are wildcard fallbacks.
	if len(cfg.Adapters.MarketAPI.Domains) == 0 {
		cfg.Adapters.MarketAPI.Domains = []string{"ebay.com"}
	}
	if len(cfg.Adapters.Markup.Domains) == 0 {
		cfg.Adapters.Markup.Domains = []string{"*"}
	}
	if len(cfg.Adapters.Rendered.Domains) == 0 {
		cfg.Adapters.Rendered.Domains = []string{"*"}
	}
	// Rendering is slow by nature; it gets more headroom than static fetches.
	if cfg.Adapters.Rendered.Timeout == 0 {
		cfg.Adapters.Rendered.Timeout = defaultRenderTimeout
	}
	setAdapterDefaults(&cfg.Adapters.Rendered)
	if cfg.Adapters.MaxInFlight == 0 {
		cfg.Adapters.MaxInFlight = defaultAdapterMaxInFlight
	}
	if cfg.Adapters.MaxRPS == 0 {
		cfg.Adapters.MaxRPS = defaultAdapterMaxRPS
	}

	if cfg.Ingest.WorkerPoolSize == 0 {
		cfg.Ingest.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.Ingest.BulkMaxURLs == 0 {
		cfg.Ingest.BulkMaxURLs = defaultBulkMaxURLs
	}
	if cfg.Ingest.PriceChangeAbsThreshold == 0 {
		cfg.Ingest.PriceChangeAbsThreshold = defaultPriceAbsThreshold
	}
	if cfg.Ingest.PriceChangePctThreshold == 0 {
		cfg.Ingest.PriceChangePctThreshold = defaultPricePctThreshold
	}
	if cfg.Ingest.RawPayloadRetentionDays == 0 {
		cfg.Ingest.RawPayloadRetentionDays = defaultRetentionDays
	}
	if cfg.Ingest.RawPayloadMaxBytes == 0 {
		cfg.Ingest.RawPayloadMaxBytes = defaultPayloadMaxBytes
	}
	if cfg.Ingest.SweepInterval == 0 {
		cfg.Ingest.SweepInterval = defaultSweepInterval
	}

	if cfg.Components.Timeout == 0 {
		cfg.Components.Timeout = defaultLookupTimeout
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = defaultRenderTimeout
	}
}

func setAdapterDefaults(a *AdapterConfig) {
	if a.Timeout == 0 {
		a.Timeout = defaultAdapterTimeout
	}
	if a.RetryCount == 0 {
		a.RetryCount = defaultAdapterRetries
	}
}
