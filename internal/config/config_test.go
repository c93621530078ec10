package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(`
database: /var/lib/fincollect/data.db
exchange: bvb
fetcher:
  base_url: https://data.example.com/api
  requests_per_second: 0.5
  burst: 3
  timeout: 45s
schedule:
  tick_interval: 0s
  directory_interval: 2h
  instrument_interval: 90s
  operation_timeout: 1m
priority_companies: [TLV, SNP]
log_level: DEBUG
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/fincollect/data.db", cfg.Database)
	assert.Equal(t, "BVB", cfg.Exchange)
	assert.Equal(t, "https://data.example.com/api", cfg.Fetcher.BaseURL)
	assert.Equal(t, 0.5, cfg.Fetcher.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Fetcher.Burst)
	assert.Equal(t, 45*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Schedule.TickInterval)
	assert.Equal(t, 2*time.Hour, cfg.Schedule.DirectoryInterval)
	assert.Equal(t, 90*time.Second, cfg.Schedule.InstrumentInterval)
	assert.Equal(t, time.Minute, cfg.Schedule.OperationTimeout)
	assert.Equal(t, []string{"TLV", "SNP"}, cfg.PriorityCompanies)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	sc := cfg.SchedulerConfig()
	assert.Equal(t, 2*time.Hour, sc.DirectoryInterval)
	assert.Equal(t, 90*time.Second, sc.InstrumentInterval)

	hc := cfg.HTTPConfig()
	assert.Equal(t, "https://data.example.com/api", hc.BaseURL)
	assert.Equal(t, "BVB", hc.Exchange)
	assert.Equal(t, 45*time.Second, hc.RequestTimeout)
	assert.Equal(t, 3, hc.RateLimiter.Burst())
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("schedule:\n  instrument_interval: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Schedule.InstrumentInterval)
	assert.Equal(t, time.Hour, cfg.Schedule.DirectoryInterval)
	assert.Equal(t, "BVB", cfg.Exchange)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("databse: x.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"empty database", "database: \"\"\n", "database"},
		{"bad exchange", "exchange: \"B-V-B\"\n", "exchange"},
		{"bad url", "fetcher:\n  base_url: ftp://x\n", "base_url"},
		{"zero rate", "fetcher:\n  requests_per_second: 0\n", "requests_per_second"},
		{"zero burst", "fetcher:\n  burst: 0\n", "burst"},
		{"negative tick", "schedule:\n  tick_interval: -1s\n", "tick_interval"},
		{"zero directory interval", "schedule:\n  directory_interval: 0s\n", "directory_interval"},
		{"empty priority symbol", "priority_companies: [TLV, \"\"]\n", "priority_companies"},
		{"unknown level", "log_level: loud\n", "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fincollect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: file.db\nexchange: XBSE\n"), 0o644))

	t.Setenv(EnvDatabase, "env.db")
	t.Setenv(EnvBaseURL, "http://override:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, "http://override:9000", cfg.Fetcher.BaseURL)
	assert.Equal(t, "XBSE", cfg.Exchange)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_NoPath(t *testing.T) {
	t.Setenv(EnvDatabase, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fincollect.db", cfg.Database)
}
