// Package config loads the YAML configuration file and applies environment
// overrides on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/caffeinepub/ofs/internal/filesize"
)

// EnvPrefix is the prefix of every environment override, e.g.
// OFS_SERVER_PORT or OFS_AUTH_JWTSECRET.
const EnvPrefix = "ofs"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Sessions SessionsConfig `yaml:"sessions"`
	Limits   LimitsConfig   `yaml:"limits"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	// Origin is the public base URL baked into locator deep links.
	Origin       string `yaml:"origin"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
}

// StorageConfig contains file and ledger storage settings.
type StorageConfig struct {
	DataDirectory      string `yaml:"data_directory"`
	UploadsDirectory   string `yaml:"uploads_directory"`
	DownloadsDirectory string `yaml:"downloads_directory"`
	LedgerPath         string `yaml:"ledger_path"`
}

// SessionsConfig contains transfer-session lifecycle settings.
type SessionsConfig struct {
	DefaultExpirySeconds   int  `yaml:"default_expiry_seconds"`
	CleanupIntervalMinutes int  `yaml:"cleanup_interval_minutes"`
	SessionMaxAgeMinutes   int  `yaml:"session_max_age_minutes"`
	MaxSessions            int  `yaml:"max_sessions"`
	SingleRedemption       bool `yaml:"single_redemption"`
}

// LimitsConfig contains file size thresholds.
type LimitsConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	WarnBytes      int64 `yaml:"warn_bytes"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	RequireAuth bool   `yaml:"require_auth"`
	JWTSecret   string `yaml:"jwt_secret"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			Origin:       "http://localhost:8090",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			BodyLimit:    "64M",
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			UploadsDirectory:   "./data/uploads",
			DownloadsDirectory: "./data/downloads",
			LedgerPath:         "./data/transfers.duckdb",
		},
		Sessions: SessionsConfig{
			DefaultExpirySeconds:   300,
			CleanupIntervalMinutes: 5,
			SessionMaxAgeMinutes:   30,
			MaxSessions:            1000,
			SingleRedemption:       true,
		},
		Limits: LimitsConfig{
			MaxUploadBytes: filesize.MaxBytes,
			WarnBytes:      filesize.WarnBytes,
		},
		Auth: AuthConfig{
			RequireAuth: false,
			JWTSecret:   "",
		},
	}
}

// Load reads the YAML file at configPath, then applies OFS_* environment
// overrides. A missing file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
			cfg.resolvePaths(filepath.Dir(configPath))
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

// Addr returns the server bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// DefaultExpiry returns the default session lifetime.
func (c *Config) DefaultExpiry() time.Duration {
	return time.Duration(c.Sessions.DefaultExpirySeconds) * time.Second
}

// SizePolicy returns the configured upload size thresholds.
func (c *Config) SizePolicy() filesize.Policy {
	return filesize.Policy{
		MaxBytes:  c.Limits.MaxUploadBytes,
		WarnBytes: c.Limits.WarnBytes,
	}
}

// CleanupInterval returns how often terminal sessions are swept.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Sessions.CleanupIntervalMinutes) * time.Minute
}

// SessionMaxAge returns how long a terminal session record is retained.
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Sessions.SessionMaxAgeMinutes) * time.Minute
}

// EnsureDirectories creates the storage directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.DownloadsDirectory,
		filepath.Dir(c.Storage.LedgerPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// resolvePaths converts relative storage paths to absolute, based on the
// config file's own directory.
func (c *Config) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.DownloadsDirectory)
	resolve(&c.Storage.LedgerPath)
}
