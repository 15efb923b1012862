package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon and CLI look for configuration when no --config is given.
const DefaultPath = "/etc/emptyfolder-cleaner/config.yaml"

type ScanCfg struct {
	IncludeHidden    *bool    `yaml:"include_hidden" json:"include_hidden"`           // Hidden entries count as content (default: true)
	IncludeRoot      bool     `yaml:"include_root" json:"include_root"`               // Report the scan root itself when it is empty
	BundleExtensions []string `yaml:"bundle_extensions" json:"bundle_extensions"`     // Directory suffixes treated as opaque packages
	MaxDirsPerSecond int      `yaml:"max_dirs_per_second" json:"max_dirs_per_second"` // 0 = unlimited
}

type ElevationCfg struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Command        string `yaml:"command" json:"command"` // Shell-syntax template; $TARGET expands to the directory
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type SafetyCfg struct {
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"`
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type APICfg struct {
	Listen    string  `yaml:"listen" json:"listen"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"` // Requests per second per client
	Burst     int     `yaml:"burst" json:"burst"`
}

type LoggingCfg struct {
	File       string `yaml:"file" json:"file"` // Empty = console only
	Level      string `yaml:"level" json:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

type Config struct {
	ScanPaths       []string      `yaml:"scan_paths" json:"scan_paths"`
	Scan            ScanCfg       `yaml:"scan" json:"scan"`
	Elevation       ElevationCfg  `yaml:"elevation" json:"elevation"`
	Safety          SafetyCfg     `yaml:"safety" json:"safety"`
	Prometheus      PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	API             APICfg        `yaml:"api" json:"api"`
	Logging         LoggingCfg    `yaml:"logging" json:"logging"`
	DatabasePath    string        `yaml:"database_path" json:"database_path"` // Empty disables deletion history
	LockFile        string        `yaml:"lock_file" json:"lock_file"`         // Empty disables the cross-process batch lock
	IntervalMinutes int           `yaml:"interval_minutes" json:"interval_minutes"`
	NFSTimeout      int           `yaml:"nfs_timeout_seconds" json:"nfs_timeout_seconds"`
	DryRun          bool          `yaml:"dry_run" json:"dry_run"`
}

var (
	errInvalidPath     = errors.New("path must be absolute")
	errNegativeRate    = errors.New("max_dirs_per_second cannot be negative")
	errInvalidLevel    = errors.New("unknown logging level")
	errInvalidAPIRate  = errors.New("api rate_limit cannot be negative")
	errNoScanPaths     = errors.New("configuration must specify scan_paths")
	errInvalidInterval = errors.New("interval_minutes must be positive")
)

// Default returns a validated configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	// Defaults never fail validation.
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Scan.IncludeHidden == nil {
		includeHidden := true
		c.Scan.IncludeHidden = &includeHidden
	}
	if c.Scan.MaxDirsPerSecond < 0 {
		return errNegativeRate
	}
	if len(c.Scan.BundleExtensions) == 0 {
		c.Scan.BundleExtensions = []string{
			".app", ".bundle", ".framework", ".pkg", ".plugin",
			".kext", ".xcodeproj", ".xcworkspace", ".photoslibrary",
		}
	}

	if c.Elevation.TimeoutSeconds <= 0 {
		c.Elevation.TimeoutSeconds = 120
	}

	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:8087"
	}
	if c.API.RateLimit < 0 {
		return errInvalidAPIRate
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 20
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 40
	}

	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", errInvalidLevel, c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 30
	}

	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 60
	}
	if c.NFSTimeout <= 0 {
		c.NFSTimeout = 5
	}

	cleaned := make([]string, 0, len(c.ScanPaths))
	for _, p := range c.ScanPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, cp)
	}
	c.ScanPaths = cleaned

	for i, p := range c.Safety.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths: %w", err)
		}
		c.Safety.ProtectedPaths[i] = cp
	}

	for _, p := range []*string{&c.Logging.File, &c.DatabasePath, &c.LockFile} {
		if *p == "" {
			continue
		}
		cp, err := cleanAbsolute(*p)
		if err != nil {
			return err
		}
		*p = cp
	}

	return nil
}

// RequireScanPaths is used by unattended modes that have no root on the command line.
func (c *Config) RequireScanPaths() error {
	if len(c.ScanPaths) == 0 {
		return errNoScanPaths
	}
	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

func (c *Config) IncludeHidden() bool {
	return c.Scan.IncludeHidden == nil || *c.Scan.IncludeHidden
}

// SetInterval overrides the configured interval, e.g. from a command-line flag.
func (c *Config) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errInvalidInterval
	}
	c.IntervalMinutes = int(d / time.Minute)
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 1
	}
	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) ElevationTimeout() time.Duration {
	return time.Duration(c.Elevation.TimeoutSeconds) * time.Second
}

func (c *Config) NFSTimeoutDuration() time.Duration {
	return time.Duration(c.NFSTimeout) * time.Second
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
