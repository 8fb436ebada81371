// Package config loads Sentinel settings from a YAML file, a .env file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "sentinel.yaml"

var validate = validator.New()

// Config is the full Sentinel configuration.
type Config struct {
	RosterPath  string `yaml:"roster_path" validate:"required"`
	SignalsPath string `yaml:"signals_path"`
	DataDir     string `yaml:"data_dir" validate:"required"`

	Logging    LoggingConfig    `yaml:"logging"`
	Simulation SimulationConfig `yaml:"simulation"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	News       NewsConfig       `yaml:"news"`
	Relevance  RelevanceConfig  `yaml:"relevance"`
	Server     ServerConfig     `yaml:"server"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// SimulationConfig bounds the simulation stage.
type SimulationConfig struct {
	TopN    int `yaml:"top_n" validate:"gte=1,lte=100"`
	Workers int `yaml:"workers" validate:"gte=0,lte=64"`
}

// MonitorConfig controls continuous runs.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gte=1s"`
}

// NewsConfig configures the NewsData.io fetcher. An empty APIKey disables it.
type NewsConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	Query       string        `yaml:"query" validate:"max=100"`
	MaxArticles int           `yaml:"max_articles" validate:"gte=1,lte=50"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RelevanceConfig controls relevance estimation for signals without a score.
type RelevanceConfig struct {
	Estimate     bool    `yaml:"estimate"`
	DefaultScore float64 `yaml:"default_score" validate:"gte=0,lte=1"`
}

// ServerConfig configures the HTTP read API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		RosterPath:  "data/suppliers.csv",
		SignalsPath: "data/signals.json",
		DataDir:     ".sentinel",
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		Simulation:  SimulationConfig{TopN: 5, Workers: 4},
		Monitor:     MonitorConfig{Interval: 5 * time.Minute},
		News: NewsConfig{
			BaseURL:     "https://newsdata.io/api/1",
			Query:       "supply chain OR disruption OR tariff OR China OR Taiwan",
			MaxArticles: 10,
			Timeout:     15 * time.Second,
		},
		Relevance: RelevanceConfig{DefaultScore: 0.5},
		Server:    ServerConfig{Addr: ":8089"},
	}
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads .env from the working directory when present, then the YAML
// file at path (DefaultPath when empty), then environment overrides. A
// missing YAML file leaves the defaults in place.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load without .env handling and with an injectable environment.
func LoadWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with the SENTINEL_* variables and NEWSDATA_API_KEY.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("SENTINEL_ROSTER", &cfg.RosterPath)
	str("SENTINEL_SIGNALS", &cfg.SignalsPath)
	str("SENTINEL_DATA_DIR", &cfg.DataDir)
	str("SENTINEL_LOG_LEVEL", &cfg.Logging.Level)
	str("SENTINEL_LOG_FORMAT", &cfg.Logging.Format)
	str("SENTINEL_HTTP_ADDR", &cfg.Server.Addr)
	str("NEWSDATA_API_KEY", &cfg.News.APIKey)

	if v, ok := lookup("SENTINEL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SENTINEL_INTERVAL: %w", err)
		}
		cfg.Monitor.Interval = d
	}
	if v, ok := lookup("SENTINEL_TOP_N"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SENTINEL_TOP_N: %w", err)
		}
		cfg.Simulation.TopN = n
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
