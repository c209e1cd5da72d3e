// Package config loads and validates the custodix configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level custodix configuration.
type Config struct {
	Version   string          `yaml:"version"`
	LogLevel  string          `yaml:"log_level"`
	Store     StoreConfig     `yaml:"store"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Cache     CacheConfig     `yaml:"cache"`
	Sync      SyncConfig      `yaml:"sync"`
	Detection DetectionConfig `yaml:"detection"`
}

// StoreConfig locates the secondary store database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig configures the contract bridge connection.
type LedgerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BridgeURL      string `yaml:"bridge_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CacheConfig configures the sync-status cache.
type CacheConfig struct {
	Backend   string `yaml:"backend"` // memory, redis
	RedisAddr string `yaml:"redis_addr,omitempty"`
	TTLHours  int    `yaml:"ttl_hours"`
}

// SyncConfig tunes reconciliation batches.
type SyncConfig struct {
	DelayMs int `yaml:"delay_ms"` // pause between ledger registrations
}

// DetectionConfig holds the anomaly thresholds. Defaults preserve the
// standard rule behavior.
type DetectionConfig struct {
	WindowSize        int `yaml:"window_size"`
	RapidRun          int `yaml:"rapid_run"`
	RapidDeltaSeconds int `yaml:"rapid_delta_seconds"`
	ModificationLimit int `yaml:"modification_limit"`
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Version:  "1",
		LogLevel: "info",
		Store: StoreConfig{
			Path: "custodix.db",
		},
		Ledger: LedgerConfig{
			Enabled:        false,
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTLHours: 7 * 24,
		},
		Sync: SyncConfig{
			DelayMs: 500,
		},
		Detection: DetectionConfig{
			WindowSize:        5,
			RapidRun:          3,
			RapidDeltaSeconds: 300,
			ModificationLimit: 3,
		},
	}
}

// Load reads and parses a custodix config file, applying defaults first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Zero-value defaults after unmarshal
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 7 * 24
	}
	if cfg.Sync.DelayMs == 0 {
		cfg.Sync.DelayMs = 500
	}

	return cfg, nil
}

// Save writes the config to a YAML file at the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the config is consistent.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Ledger.Enabled && c.Ledger.BridgeURL == "" {
		return fmt.Errorf("ledger.bridge_url is required when ledger is enabled")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
		// valid
	default:
		return fmt.Errorf("invalid cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must not be negative")
	}
	if c.Sync.DelayMs < 0 {
		return fmt.Errorf("sync.delay_ms must not be negative")
	}
	if c.Detection.WindowSize < 2 {
		return fmt.Errorf("detection.window_size must be at least 2")
	}
	if c.Detection.RapidRun < 2 {
		return fmt.Errorf("detection.rapid_run must be at least 2")
	}
	if c.Detection.RapidDeltaSeconds <= 0 {
		return fmt.Errorf("detection.rapid_delta_seconds must be positive")
	}
	if c.Detection.ModificationLimit < 1 {
		return fmt.Errorf("detection.modification_limit must be at least 1")
	}
	return nil
}

// CacheTTL returns the sync cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// SyncDelay returns the inter-registration delay as a duration.
func (c *Config) SyncDelay() time.Duration {
	return time.Duration(c.Sync.DelayMs) * time.Millisecond
}

// Watch reloads the config whenever path changes and hands each valid new
// config to onReload. Invalid rewrites are logged and skipped, keeping the
// last good config active. The returned stop function ends the watch.
func Watch(path string, logger *slog.Logger, onReload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				if err := cfg.Validate(); err != nil {
					logger.Warn("reloaded config invalid, keeping previous", "path", path, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
