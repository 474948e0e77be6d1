package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // reports.timezone must resolve in minimal containers

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Reports   ReportsConfig   `yaml:"reports" mapstructure:"reports"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// HubSpotConfig holds HubSpot API settings. Tenants maps a tenant ID to its
// private-app token; Token is used for tenants not in the map.
type HubSpotConfig struct {
	Token       string            `yaml:"token" mapstructure:"token"`
	BaseURL     string            `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64           `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Tenants     map[string]string `yaml:"tenants" mapstructure:"tenants"`
}

// TenantToken returns the token for tenantID, falling back to the default
// token. ok is false when neither is set.
func (h HubSpotConfig) TenantToken(tenantID string) (string, bool) {
	if tok := h.Tenants[strings.ToLower(tenantID)]; tok != "" {
		return tok, true
	}
	if h.Token != "" {
		return h.Token, true
	}
	return "", false
}

// ReportsConfig tunes the report builders.
type ReportsConfig struct {
	PageSize           int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages           int    `yaml:"max_pages" mapstructure:"max_pages"`
	PageDelayMs        int    `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	CacheTTLSecs       int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CompanyConcurrency int    `yaml:"company_concurrency" mapstructure:"company_concurrency"`
	TopClients         int    `yaml:"top_clients" mapstructure:"top_clients"`
	Timezone           string `yaml:"timezone" mapstructure:"timezone"`
	ZonesFile          string `yaml:"zones_file" mapstructure:"zones_file"`
	VocabularyFile     string `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
}

// PageDelay returns the pause between daily report pages.
func (r ReportsConfig) PageDelay() time.Duration {
	return time.Duration(r.PageDelayMs) * time.Millisecond
}

// CacheTTL returns the daily report cache lifetime.
func (r ReportsConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSecs) * time.Second
}

// Location loads the configured timezone, defaulting to UTC.
func (r ReportsConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %s", r.Timezone)
	}
	return loc, nil
}

// StoreConfig configures the action-plan database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	Model        string `yaml:"model" mapstructure:"model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	PlanTTLHours int    `yaml:"plan_ttl_hours" mapstructure:"plan_ttl_hours"`
}

// ServerConfig configures the HTTP report server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 9)
	v.SetDefault("hubspot.timeout_secs", 30)
	v.SetDefault("reports.page_size", 100)
	v.SetDefault("reports.max_pages", 50)
	v.SetDefault("reports.page_delay_ms", 1500)
	v.SetDefault("reports.cache_ttl_secs", 300)
	v.SetDefault("reports.company_concurrency", 5)
	v.SetDefault("reports.top_clients", 10)
	v.SetDefault("reports.timezone", "America/Santiago")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pipeline-reports.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.plan_ttl_hours", 72)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings required by a command mode: "report",
// "plan" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	hasToken := c.HubSpot.Token != "" || len(c.HubSpot.Tenants) > 0
	if !hasToken {
		errs = append(errs, "hubspot.token or hubspot.tenants is required")
	}
	if c.Reports.MaxPages < 1 {
		errs = append(errs, "reports.max_pages must be >= 1")
	}
	if c.Reports.CompanyConcurrency < 1 || c.Reports.CompanyConcurrency > 50 {
		errs = append(errs, "reports.company_concurrency must be between 1 and 50")
	}

	switch mode {
	case "report":
	case "plan":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(errs, "; ")))
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
