// Package config loads the review CLI configuration from a YAML file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".review"
	// DefaultConfigFile is the configuration file name.
	DefaultConfigFile = "config.yaml"
	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"

	DefaultEndpoint = "http://127.0.0.1:8000"
	DefaultLogLevel = "info"
)

// Environment variables that override file values.
const (
	EnvEndpoint  = "REVIEW_ENDPOINT"
	EnvUserID    = "REVIEW_USER_ID"
	EnvDBPath    = "REVIEW_DB_PATH"
	EnvOutputDir = "REVIEW_OUTPUT_DIR"
	EnvLogLevel  = "REVIEW_LOG_LEVEL"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the review CLI configuration.
type Config struct {
	// Endpoint is the evaluation backend base URL.
	Endpoint string `yaml:"endpoint,omitempty"`

	// UserID identifies the presenter to the backend and in history.
	UserID string `yaml:"user_id,omitempty"`

	// DBPath is the backend's SQLite database. History is unavailable when
	// empty.
	DBPath string `yaml:"db_path,omitempty"`

	// OutputDir receives exported artifacts.
	OutputDir string `yaml:"output_dir,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`

	// FlushTrailing parses an unterminated last line at end of stream.
	FlushTrailing bool `yaml:"flush_trailing,omitempty"`

	// LenientLines repairs malformed lines before skipping them.
	LenientLines bool `yaml:"lenient_lines,omitempty"`

	// Timeout bounds a whole evaluation in seconds. Zero means no limit.
	Timeout int `yaml:"timeout,omitempty"`

	path string
}

// DefaultPath returns ~/.review/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// Load reads the config file at path (the default path when empty) and
// applies .env and environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	return LoadWith(path, DefaultEnvFile)
}

// LoadWith is Load with an explicit .env file. An empty envFile skips it.
func LoadWith(path, envFile string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for key, field := range map[string]*string{
		EnvEndpoint:  &c.Endpoint,
		EnvUserID:    &c.UserID,
		EnvDBPath:    &c.DBPath,
		EnvOutputDir: &c.OutputDir,
		EnvLogLevel:  &c.LogLevel,
	} {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.Dir(), "artifacts")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.Dir(), "review.log")
	}
	c.DBPath = expandHome(c.DBPath)
	c.OutputDir = expandHome(c.OutputDir)
	c.LogFile = expandHome(c.LogFile)
}

// Validate checks the endpoint, log level and timeout.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint: %w", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q must be an http(s) URL", ErrInvalidConfig, c.Endpoint)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout %d is negative", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the config directory path.
func (c *Config) Dir() string {
	return filepath.Dir(c.path)
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Level returns the configured slog level, or info when it is invalid.
func (c *Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// String renders the effective configuration as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
