package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Target modes
const (
	ModeDelete = "delete" // remove the directory and everything in it
	ModeClean  = "clean"  // remove everything in the directory, keep the directory
)

// Backend types
const (
	BackendLocal = "local"
	BackendSFTP  = "sftp"
)

type Target struct {
	Path         string `yaml:"path" json:"path"`
	Mode         string `yaml:"mode" json:"mode"`                   // delete | clean (default delete)
	PruneParents bool   `yaml:"prune_parents" json:"prune_parents"` // Remove ancestors left empty, up to the allowed root
}

type SFTPCfg struct {
	Address               string `yaml:"address" json:"address"`
	User                  string `yaml:"user" json:"user"`
	Password              string `yaml:"password" json:"-"`
	PrivateKeyPath        string `yaml:"private_key_path" json:"private_key_path"`
	KnownHostsPath        string `yaml:"known_hosts_path" json:"known_hosts_path"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key" json:"insecure_ignore_host_key"`
	TimeoutSeconds        int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type BackendCfg struct {
	Type string  `yaml:"type" json:"type"` // local | sftp
	SFTP SFTPCfg `yaml:"sftp" json:"sftp"`
}

type ConcurrencyCfg struct {
	MaxInFlight int `yaml:"max_in_flight" json:"max_in_flight"` // Concurrent filesystem calls; 0 = default (64), negative = unbounded
}

type RateLimitCfg struct {
	OpsPerSecond float64 `yaml:"ops_per_second" json:"ops_per_second"` // 0 = unlimited
	Burst        int     `yaml:"burst" json:"burst"`
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
	Compress     *bool  `yaml:"compress" json:"compress"`           // gzip rotated logs (default true)
}

type Config struct {
	Targets         []Target       `yaml:"targets" json:"targets"`
	AllowedRoots    []string       `yaml:"allowed_roots" json:"allowed_roots"`
	ProtectedPaths  []string       `yaml:"protected_paths" json:"protected_paths"`
	IntervalMinutes int            `yaml:"interval_minutes" json:"interval_minutes"` // 0 = single run
	Backend         BackendCfg     `yaml:"backend" json:"backend"`
	Concurrency     ConcurrencyCfg `yaml:"concurrency" json:"concurrency"`
	RateLimit       RateLimitCfg   `yaml:"rate_limit" json:"rate_limit"`
	Prometheus      PrometheusCfg  `yaml:"prometheus" json:"prometheus"`
	Logging         LoggingCfg     `yaml:"logging" json:"logging"`
	DatabasePath    string         `yaml:"database_path" json:"database_path"` // SQLite sweep history; empty disables
}

var (
	errNoTargets        = errors.New("configuration must specify at least one target")
	errInvalidPath      = errors.New("path must be absolute")
	errInvalidMode      = errors.New("mode must be delete or clean")
	errInvalidBackend   = errors.New("backend type must be local or sftp")
	errSFTPAddress      = errors.New("sftp backend requires address and user")
	errNegativeRate     = errors.New("rate_limit.ops_per_second cannot be negative")
	errNegativeInterval = errors.New("interval_minutes cannot be negative")
)

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

// Default returns a configuration for ad-hoc use on the local filesystem with
// no targets. Callers supply paths directly.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.Type == "" {
		c.Backend.Type = BackendLocal
	}
	if c.Backend.SFTP.TimeoutSeconds <= 0 {
		c.Backend.SFTP.TimeoutSeconds = 10
	}
	if c.Concurrency.MaxInFlight == 0 {
		c.Concurrency.MaxInFlight = 64
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "/var/log/dirsweep"
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}
	if c.Logging.Compress == nil {
		compress := true
		c.Logging.Compress = &compress
	}
}

func (c *Config) validateAndDefault() error {
	if len(c.Targets) == 0 {
		return errNoTargets
	}
	if c.IntervalMinutes < 0 {
		return errNegativeInterval
	}
	if c.RateLimit.OpsPerSecond < 0 {
		return errNegativeRate
	}

	c.applyDefaults()

	switch c.Backend.Type {
	case BackendLocal:
	case BackendSFTP:
		if c.Backend.SFTP.Address == "" || c.Backend.SFTP.User == "" {
			return errSFTPAddress
		}
	default:
		return fmt.Errorf("%w: %q", errInvalidBackend, c.Backend.Type)
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		cp, err := cleanAbsolute(t.Path)
		if err != nil {
			return err
		}
		t.Path = cp

		t.Mode = strings.ToLower(strings.TrimSpace(t.Mode))
		if t.Mode == "" {
			t.Mode = ModeDelete
		}
		if t.Mode != ModeDelete && t.Mode != ModeClean {
			return fmt.Errorf("target %s: %w", t.Path, errInvalidMode)
		}
	}

	cleaned := make([]string, 0, len(c.AllowedRoots))
	for _, p := range c.AllowedRoots {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, cp)
	}
	// Each target may be swept inside its own parent unless roots are explicit
	if len(cleaned) == 0 {
		for _, t := range c.Targets {
			cleaned = append(cleaned, filepath.Dir(t.Path))
		}
	}
	c.AllowedRoots = cleaned

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

// Interval returns the time between sweeps; zero means a single run
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}

// SFTPTimeout returns the SSH dial timeout
func (c *Config) SFTPTimeout() time.Duration {
	return time.Duration(c.Backend.SFTP.TimeoutSeconds) * time.Second
}
