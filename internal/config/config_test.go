package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)
	assert.InDelta(t, 9, cfg.HubSpot.RateLimit, 0.001)
	assert.Equal(t, 30, cfg.HubSpot.TimeoutSecs)
	assert.Equal(t, 100, cfg.Reports.PageSize)
	assert.Equal(t, 50, cfg.Reports.MaxPages)
	assert.Equal(t, 1500*time.Millisecond, cfg.Reports.PageDelay())
	assert.Equal(t, 5*time.Minute, cfg.Reports.CacheTTL())
	assert.Equal(t, 5, cfg.Reports.CompanyConcurrency)
	assert.Equal(t, 10, cfg.Reports.TopClients)
	assert.Equal(t, "America/Santiago", cfg.Reports.Timezone)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 72, cfg.Anthropic.PlanTTLHours)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
hubspot:
  token: pat-default
  tenants:
    acme: pat-acme
store:
  driver: postgres
  database_url: postgres://localhost/plans
reports:
  page_delay_ms: 2000
  zones_file: zones.yaml
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Reports.PageDelay())
	assert.Equal(t, "zones.yaml", cfg.Reports.ZonesFile)
	assert.Equal(t, map[string]string{"acme": "pat-acme"}, cfg.HubSpot.Tenants)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Reports.MaxPages)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PIPELINE_STORE_DRIVER", "postgres")
	t.Setenv("PIPELINE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PIPELINE_SERVER_PORT", "3000")
	t.Setenv("PIPELINE_HUBSPOT_TOKEN", "pat-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "pat-env", cfg.HubSpot.Token)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("hubspot: [unclosed"), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "config: read file")
}

func TestTenantToken(t *testing.T) {
	h := HubSpotConfig{Token: "pat-default", Tenants: map[string]string{"acme": "pat-acme"}}

	tok, ok := h.TenantToken("ACME")
	assert.True(t, ok)
	assert.Equal(t, "pat-acme", tok)

	tok, ok = h.TenantToken("other")
	assert.True(t, ok)
	assert.Equal(t, "pat-default", tok)

	_, ok = HubSpotConfig{}.TenantToken("acme")
	assert.False(t, ok)
}

func TestReportsLocation(t *testing.T) {
	loc, err := ReportsConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = ReportsConfig{Timezone: "America/Santiago"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Santiago", loc.String())

	_, err = ReportsConfig{Timezone: "Mars/Olympus"}.Location()
	assert.ErrorContains(t, err, "load timezone")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.HubSpot.Token = "pat-token"
	cfg.Reports.MaxPages = 50
	cfg.Reports.CompanyConcurrency = 5
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateReport(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("report"))

	cfg := validDefaults()
	cfg.HubSpot.Token = ""
	err := cfg.Validate("report")
	assert.ErrorContains(t, err, "hubspot.token or hubspot.tenants is required")

	cfg.HubSpot.Tenants = map[string]string{"acme": "pat"}
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidatePlan_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Store.DatabaseURL = "plans.db"
	assert.NoError(t, cfg.Validate("plan"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Reports.CompanyConcurrency = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "company_concurrency must be between 1 and 50")

	cfg.Reports.CompanyConcurrency = 51
	assert.ErrorContains(t, cfg.Validate("serve"), "company_concurrency must be between 1 and 50")

	cfg.Reports.CompanyConcurrency = 50
	cfg.Reports.MaxPages = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "max_pages must be >= 1")
}
