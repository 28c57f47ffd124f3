package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the optional configuration file inside the orchard home.
const FileName = "config.toml"

// Config holds all application configuration.
type Config struct {
	Home    string `envconfig:"ORCHARD_HOME" default:"~/.orchard"`
	API     APIConfig
	Docker  DockerConfig
	Attach  AttachConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// APIConfig holds Orchard REST API configuration.
type APIConfig struct {
	URL       string        `envconfig:"ORCHARD_API_URL" default:"https://api.orchardup.com/v2"`
	Timeout   time.Duration `envconfig:"ORCHARD_API_TIMEOUT" default:"30s"`
	RetryMax  int           `envconfig:"ORCHARD_API_RETRIES" default:"3"`
	RateLimit float64       `envconfig:"ORCHARD_API_RPS" default:"0"`
}

// DockerConfig holds the per-app Docker host configuration.
type DockerConfig struct {
	// HostTemplate is formatted with the app name.
	HostTemplate string `envconfig:"ORCHARD_DOCKER_HOST" default:"https://%s.orchardup.net"`
	APIVersion   string `envconfig:"ORCHARD_DOCKER_API_VERSION" default:"1.5"`
}

// AttachConfig holds attach session configuration.
type AttachConfig struct {
	PollInterval time.Duration `envconfig:"ORCHARD_ATTACH_POLL" default:"1s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds metrics output configuration.
type MetricsConfig struct {
	// File receives the metrics in Prometheus text format on exit.
	File string `envconfig:"ORCHARD_METRICS_FILE"`
}

// fileConfig is the subset of settings accepted in config.toml.
type fileConfig struct {
	API struct {
		URL       string  `toml:"url"`
		Timeout   string  `toml:"timeout"`
		Retries   *int    `toml:"retries"`
		RateLimit float64 `toml:"rate_limit"`
	} `toml:"api"`
	Docker struct {
		Host       string `toml:"host"`
		APIVersion string `toml:"api_version"`
	} `toml:"docker"`
	Attach struct {
		PollInterval string `toml:"poll_interval"`
	} `toml:"attach"`
	Logging struct {
		Level string `toml:"level"`
	} `toml:"logging"`
	Metrics struct {
		File string `toml:"file"`
	} `toml:"metrics"`
}

// Load loads configuration from environment variables, with defaults
// taken from <home>/config.toml when that file exists.
func Load() (*Config, error) {
	cfg, err := loadEnv()
	if err != nil {
		return nil, err
	}

	err = cfg.applyFile(filepath.Join(cfg.Home, FileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from environment variables and the given
// TOML file. Environment variables win over the file.
func LoadFile(path string) (*Config, error) {
	cfg, err := loadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Home: expandHome("~/.orchard"),
		API: APIConfig{
			URL:      "https://api.orchardup.com/v2",
			Timeout:  30 * time.Second,
			RetryMax: 3,
		},
		Docker: DockerConfig{
			HostTemplate: "https://%s.orchardup.net",
			APIVersion:   "1.5",
		},
		Attach: AttachConfig{
			PollInterval: time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// TokenDir is where API tokens are stored, one file per API URL.
func (c *Config) TokenDir() string {
	return filepath.Join(c.Home, "api_tokens")
}

// LogDir is where per-command debug logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.Home, "log")
}

func loadEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Home = expandHome(cfg.Home)
	return &cfg, nil
}

// applyFile copies settings from a TOML file into c for every setting
// whose environment variable is unset.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	setString(&c.API.URL, "ORCHARD_API_URL", f.API.URL)
	setString(&c.Docker.HostTemplate, "ORCHARD_DOCKER_HOST", f.Docker.Host)
	setString(&c.Docker.APIVersion, "ORCHARD_DOCKER_API_VERSION", f.Docker.APIVersion)
	setString(&c.Logging.Level, "LOG_LEVEL", f.Logging.Level)
	setString(&c.Metrics.File, "ORCHARD_METRICS_FILE", f.Metrics.File)

	if err := setDuration(&c.API.Timeout, "ORCHARD_API_TIMEOUT", f.API.Timeout); err != nil {
		return fmt.Errorf("api.timeout: %w", err)
	}
	if err := setDuration(&c.Attach.PollInterval, "ORCHARD_ATTACH_POLL", f.Attach.PollInterval); err != nil {
		return fmt.Errorf("attach.poll_interval: %w", err)
	}
	if f.API.Retries != nil && !isSet("ORCHARD_API_RETRIES") {
		c.API.RetryMax = *f.API.Retries
	}
	if f.API.RateLimit != 0 && !isSet("ORCHARD_API_RPS") {
		c.API.RateLimit = f.API.RateLimit
	}
	return nil
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setString(dst *string, key, value string) {
	if value != "" && !isSet(key) {
		*dst = value
	}
}

func setDuration(dst *time.Duration, key, value string) error {
	if value == "" || isSet(key) {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
