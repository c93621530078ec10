// Package config loads the collector configuration: a YAML file, then
// environment overrides, then validation against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fincollect/internal/fetcher"
	"github.com/roach88/fincollect/internal/scheduler"
)

//go:embed schema.cue
var schemaSource string

// Environment variables that override file settings.
const (
	EnvDatabase = "FINCOLLECT_DB"
	EnvBaseURL  = "FINCOLLECT_BASE_URL"
)

// Config is the collector configuration.
type Config struct {
	Database          string   `yaml:"database" json:"database"`
	Exchange          string   `yaml:"exchange" json:"exchange"`
	Fetcher           Fetcher  `yaml:"fetcher" json:"fetcher"`
	Schedule          Schedule `yaml:"schedule" json:"schedule"`
	PriorityCompanies []string `yaml:"priority_companies" json:"priority_companies"`
	LogLevel          string   `yaml:"log_level" json:"log_level"`
}

// Fetcher configures the HTTP data source.
type Fetcher struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// Schedule configures the driver and scheduler timings.
type Schedule struct {
	TickInterval       time.Duration `yaml:"tick_interval" json:"tick_interval"`
	DirectoryInterval  time.Duration `yaml:"directory_interval" json:"directory_interval"`
	InstrumentInterval time.Duration `yaml:"instrument_interval" json:"instrument_interval"`
	OperationTimeout   time.Duration `yaml:"operation_timeout" json:"operation_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: "fincollect.db",
		Exchange: "BVB",
		Fetcher: Fetcher{
			BaseURL:           "http://127.0.0.1:8080",
			RequestsPerSecond: 2,
			Burst:             1,
			Timeout:           30 * time.Second,
		},
		Schedule: Schedule{
			TickInterval:       10 * time.Second,
			DirectoryInterval:  scheduler.DefaultDirectoryInterval,
			InstrumentInterval: scheduler.DefaultInstrumentInterval,
			OperationTimeout:   2 * time.Minute,
		},
		PriorityCompanies: []string{},
		LogLevel:          "info",
	}
}

// Load reads the file at path (defaults only when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return parse(data, os.LookupEnv)
}

// Parse decodes YAML config data over the defaults and validates it.
// Environment overrides are not applied.
func Parse(data []byte) (*Config, error) {
	return parse(data, func(string) (string, bool) { return "", false })
}

func parse(data []byte, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if v, ok := lookupEnv(EnvDatabase); ok && v != "" {
		cfg.Database = v
	}
	if v, ok := lookupEnv(EnvBaseURL); ok && v != "" {
		cfg.Fetcher.BaseURL = v
	}

	cfg.Exchange = strings.ToUpper(strings.TrimSpace(cfg.Exchange))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.PriorityCompanies == nil {
		cfg.PriorityCompanies = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SchedulerConfig returns the scheduler timer intervals.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		DirectoryInterval:  c.Schedule.DirectoryInterval,
		InstrumentInterval: c.Schedule.InstrumentInterval,
	}
}

// HTTPConfig returns the fetcher configuration.
func (c *Config) HTTPConfig() *fetcher.HTTPConfig {
	hc := fetcher.DefaultHTTPConfig(c.Fetcher.BaseURL, c.Exchange, c.Fetcher.RequestsPerSecond, c.Fetcher.Burst)
	hc.RequestTimeout = c.Fetcher.Timeout
	return hc
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
