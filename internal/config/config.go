package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
)

// Transport backends.
const (
	BackendTinygo = "tinygo"
	BackendGoble  = "goble"
)

// Verbose enables debug output when true
var Verbose bool

// Log is the process-wide logger. Commands replace it once the config is loaded.
var Log = logrus.New()

// Debugf prints debug messages when Verbose is true
func Debugf(format string, args ...any) {
	if Verbose {
		Log.Debugf(format, args...)
	}
}

// Config holds all application configuration.
type Config struct {
	ServiceUUID string        `yaml:"service_uuid"`
	StatusUUID  string        `yaml:"status_uuid"`
	RateUUID    string        `yaml:"rate_uuid"`
	Backend     string        `yaml:"backend"` // "tinygo" or "goble"
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	LogLevel    string        `yaml:"log_level"`
	LogFile     string        `yaml:"log_file"`
	MaxBPM      int           `yaml:"max_bpm"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ble-heartbeat")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config matching the stock sensor firmware.
func Default() *Config {
	return &Config{
		ServiceUUID: ble.ServiceUUID,
		StatusUUID:  ble.StatusCharUUID,
		RateUUID:    ble.RateCharUUID,
		Backend:     BackendTinygo,
		ScanTimeout: 15 * time.Second,
		LogLevel:    "info",
		MaxBPM:      220,
	}
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults. UUIDs are canonicalised and a leading ~ in log_file is expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ServiceUUID = ble.CanonicalUUID(cfg.ServiceUUID)
	cfg.StatusUUID = ble.CanonicalUUID(cfg.StatusUUID)
	cfg.RateUUID = ble.CanonicalUUID(cfg.RateUUID)
	cfg.LogFile = expandTilde(cfg.LogFile)

	return cfg, nil
}

// LoadOrDefault loads path when given, then the default path if it exists,
// and otherwise returns built-in defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	defaultPath := DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return Default(), nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"service_uuid", c.ServiceUUID},
		{"status_uuid", c.StatusUUID},
		{"rate_uuid", c.RateUUID},
	} {
		if !ble.IsUUID(f.value) {
			return fmt.Errorf("%s must be a 128-bit UUID, got %q", f.name, f.value)
		}
	}

	if c.StatusUUID == c.RateUUID {
		return fmt.Errorf("status_uuid and rate_uuid must differ")
	}

	switch c.Backend {
	case BackendTinygo, BackendGoble:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendTinygo, BackendGoble, c.Backend)
	}

	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be > 0")
	}

	if c.MaxBPM <= 0 {
		return fmt.Errorf("max_bpm must be > 0")
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// NewLogger creates a logger honouring log_level, log_file and Verbose.
// When toTerminal is false and no log_file is set, output is discarded so
// the interactive display is not disturbed.
func (c *Config) NewLogger(toTerminal bool) (*logrus.Logger, io.Closer, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if Verbose {
		level = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	var closer io.Closer = nopCloser{}
	switch {
	case c.LogFile != "":
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	case toTerminal:
		logger.SetOutput(os.Stderr)
	default:
		logger.SetOutput(io.Discard)
	}

	return logger, closer, nil
}

func parseLevel(s string) (logrus.Level, error) {
	switch s {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn, or error, got %q", s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
