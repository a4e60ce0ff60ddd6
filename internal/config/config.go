// Package config loads the TOML configuration file, applying defaults for
// everything the operator leaves out.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/mailbridge/internal/graph"
	"github.com/custodia-labs/mailbridge/internal/logger"
)

// DefaultDirName is the per-user state directory under the home directory.
const DefaultDirName = ".mailbridge"

// Config is the full application configuration.
type Config struct {
	// DatabasePath is the sqlite database file.
	DatabasePath string `toml:"database_path"`

	// BaseURL anchors unsubscribe links and the open-tracking pixel in
	// outbound mail.
	BaseURL string `toml:"base_url"`

	// TrackOpens injects the open-tracking pixel when a body asks for one.
	TrackOpens bool `toml:"track_opens"`

	// AdminUsers are the operating-system user names holding the
	// administrator role. Empty grants it to everyone.
	AdminUsers []string `toml:"admin_users"`

	Graph    GraphConfig    `toml:"graph"`
	Schedule ScheduleConfig `toml:"schedule"`
	Log      logger.Config  `toml:"log"`
}

// GraphConfig tunes the Graph client.
type GraphConfig struct {
	// BaseURL overrides the public Graph endpoint, mainly for tests.
	BaseURL string `toml:"base_url"`

	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int     `toml:"burst_size"`
}

// ScheduleConfig holds cron expressions for the background jobs. Empty
// fields use the built-in cadence.
type ScheduleConfig struct {
	Sync            string `toml:"sync"`
	Queue           string `toml:"queue"`
	TokenRefresh    string `toml:"token_refresh"`
	LogRetention    string `toml:"log_retention"`
	CredentialCheck string `toml:"credential_check"`
}

// RateLimit returns the Graph rate limit, falling back to the default.
func (g GraphConfig) RateLimit() graph.RateLimitConfig {
	if g.RequestsPerSecond <= 0 {
		return graph.DefaultRateLimit
	}
	burst := g.BurstSize
	if burst <= 0 {
		burst = int(g.RequestsPerSecond) + 5
	}
	return graph.RateLimitConfig{RequestsPerSecond: g.RequestsPerSecond, BurstSize: burst}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, "config.toml"), nil
}

// Default returns the configuration used when no file exists.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, DefaultDirName)
	return &Config{
		DatabasePath: filepath.Join(dir, "mailbridge.db"),
		TrackOpens:   true,
		Log: logger.Config{
			Level:      "info",
			LogFile:    filepath.Join(dir, "logs", "mailbridge.log"),
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}, nil
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
