package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/contact-finder/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	RocketReach RocketReachConfig `yaml:"rocketreach" mapstructure:"rocketreach"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit" mapstructure:"ratelimit"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Breaker     BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Discovery   DiscoveryConfig   `yaml:"discovery" mapstructure:"discovery"`
	Runner      RunnerConfig      `yaml:"runner" mapstructure:"runner"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Notion      NotionConfig      `yaml:"notion" mapstructure:"notion"`
	Pricing     cost.Rates        `yaml:"pricing" mapstructure:"pricing"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// RocketReachConfig holds people-search API credentials.
type RocketReachConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RateLimitConfig bounds outbound request rate. A zero ceiling disables
// that window.
type RateLimitConfig struct {
	PerSecond       int `yaml:"per_second" mapstructure:"per_second"`
	PerMinute       int `yaml:"per_minute" mapstructure:"per_minute"`
	JitterMs        int `yaml:"jitter_ms" mapstructure:"jitter_ms"`
	DefaultWaitSecs int `yaml:"default_wait_secs" mapstructure:"default_wait_secs"`
}

// RetryConfig bounds retries of transient API failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the API circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SearchConfig configures person search calls.
type SearchConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// DiscoveryConfig holds default criteria and quota.
type DiscoveryConfig struct {
	Quota         int      `yaml:"quota" mapstructure:"quota"`
	Departments   []string `yaml:"departments" mapstructure:"departments"`
	Geography     []string `yaml:"geography" mapstructure:"geography"`
	DedupeByEmail bool     `yaml:"dedupe_by_email" mapstructure:"dedupe_by_email"`
	PresetsFile   string   `yaml:"presets_file" mapstructure:"presets_file"`
}

// RunnerConfig paces company processing.
type RunnerConfig struct {
	MinDelayMs  int `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig configures the lookup cache backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	LookupTTLHours int    `yaml:"lookup_ttl_hours" mapstructure:"lookup_ttl_hours"`
}

// NotionConfig holds Notion API credentials and the company database.
type NotionConfig struct {
	Token          string `yaml:"token" mapstructure:"token"`
	CompanyDB      string `yaml:"company_db" mapstructure:"company_db"`
	DomainProperty string `yaml:"domain_property" mapstructure:"domain_property"`
	StatusProperty string `yaml:"status_property" mapstructure:"status_property"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to "" so AutomaticEnv can fill them.
	v.SetDefault("rocketreach.key", "")
	v.SetDefault("rocketreach.base_url", "https://api.rocketreach.co/api/v2")
	v.SetDefault("rocketreach.timeout_secs", 30)
	v.SetDefault("ratelimit.per_second", 5)
	v.SetDefault("ratelimit.per_minute", 0)
	v.SetDefault("ratelimit.jitter_ms", 300)
	v.SetDefault("ratelimit.default_wait_secs", 60)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("search.page_size", 10)
	v.SetDefault("discovery.quota", 3)
	v.SetDefault("discovery.departments", []string{})
	v.SetDefault("discovery.geography", []string{})
	v.SetDefault("discovery.dedupe_by_email", false)
	v.SetDefault("discovery.presets_file", "")
	v.SetDefault("runner.min_delay_ms", 500)
	v.SetDefault("runner.max_delay_ms", 1500)
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.lookup_ttl_hours", 720)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.company_db", "")
	v.SetDefault("notion.domain_property", "URL")
	v.SetDefault("notion.status_property", "")
	v.SetDefault("pricing.rocketreach.per_lookup", cost.DefaultRates().RocketReach.PerLookup)
	v.SetDefault("pricing.rocketreach.per_search", cost.DefaultRates().RocketReach.PerSearch)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "find", "serve":
		if c.RocketReach.Key == "" {
			errs = append(errs, "rocketreach.key is required")
		}
		if c.Discovery.Quota < 1 {
			errs = append(errs, "discovery.quota must be >= 1")
		}
		if c.Search.PageSize < 1 || c.Search.PageSize > 100 {
			errs = append(errs, "search.page_size must be between 1 and 100")
		}
		if c.Runner.Concurrency < 1 || c.Runner.Concurrency > 10 {
			errs = append(errs, "runner.concurrency must be between 1 and 10")
		}
		if c.Runner.MinDelayMs < 0 || c.Runner.MaxDelayMs < c.Runner.MinDelayMs {
			errs = append(errs, "runner delays must satisfy 0 <= min_delay_ms <= max_delay_ms")
		}
		if c.RateLimit.PerSecond < 0 || c.RateLimit.PerMinute < 0 {
			errs = append(errs, "ratelimit ceilings must be >= 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "cache":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
