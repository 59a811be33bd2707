// Package config loads chatsync settings from a YAML file, a .env file and
// CHATSYNC_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL          = "http://127.0.0.1:8000/api"
	DefaultRequestTimeout   = 10 * time.Second
	DefaultReconnectBackoff = 3 * time.Second
	DefaultTypingExpiry     = 3 * time.Second
	DefaultTypingSweep      = time.Second
	DefaultTypingThrottle   = 2 * time.Second
	DefaultCacheTTL         = 30 * time.Second
	DefaultRelayAddress     = ":8000"
	DefaultAccessTTL        = 15 * time.Minute
	DefaultRefreshTTL       = 7 * 24 * time.Hour
	DefaultMaxUploadSize    = 10 << 20
	DefaultValkeyPrefix     = "chatsync:"
	DefaultAllowedOrigin    = "http://127.0.0.1:5173"
)

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Client.BaseURL, "CHATSYNC_BASE_URL")
	set(&cfg.Client.WebsocketURL, "CHATSYNC_WS_URL")
	set(&cfg.Storage.Mode, "CHATSYNC_STORAGE_MODE")
	set(&cfg.Storage.Path, "CHATSYNC_STORAGE_PATH")
	set(&cfg.Logging.Level, "CHATSYNC_LOG_LEVEL")
	set(&cfg.Logging.Format, "CHATSYNC_LOG_FORMAT")
	set(&cfg.Relay.Address, "CHATSYNC_RELAY_ADDR")
	set(&cfg.Relay.JWTSecret, "CHATSYNC_JWT_SECRET")
	set(&cfg.Relay.Valkey.Address, "CHATSYNC_VALKEY_ADDR")
	if v := os.Getenv("CHATSYNC_ALLOWED_ORIGINS"); v != "" {
		cfg.Relay.AllowedOrigins = strings.Split(v, ",")
	}
}

func defaultDuration(d *Duration, def time.Duration) {
	if *d <= 0 {
		*d = Duration(def)
	}
}

// ValidateConfig fills defaults and rejects settings the client cannot run
// with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.Client.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("client.base_url must be an absolute http(s) url, got %q", cfg.Client.BaseURL)
	}
	cfg.Client.BaseURL = strings.TrimRight(cfg.Client.BaseURL, "/")
	defaultDuration(&cfg.Client.RequestTimeout, DefaultRequestTimeout)

	defaultDuration(&cfg.Sync.ReconnectBackoff, DefaultReconnectBackoff)
	defaultDuration(&cfg.Sync.TypingExpiry, DefaultTypingExpiry)
	defaultDuration(&cfg.Sync.TypingSweep, DefaultTypingSweep)
	defaultDuration(&cfg.Sync.TypingThrottle, DefaultTypingThrottle)
	defaultDuration(&cfg.Sync.CacheTTL, DefaultCacheTTL)

	switch cfg.Storage.Mode {
	case "":
		cfg.Storage.Mode = "memory"
	case "memory":
	case "pebble":
		if cfg.Storage.Path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.path is empty and no user config dir: %w", err)
			}
			cfg.Storage.Path = filepath.Join(dir, "chatsync", "state")
		}
	default:
		return fmt.Errorf("storage.mode must be memory or pebble, got %q", cfg.Storage.Mode)
	}

	if cfg.Relay.Address == "" {
		cfg.Relay.Address = DefaultRelayAddress
	}
	if cfg.Relay.JWTSecret == "" {
		cfg.Relay.JWTSecret = "chatsync-dev-secret"
	}
	defaultDuration(&cfg.Relay.AccessTTL, DefaultAccessTTL)
	defaultDuration(&cfg.Relay.RefreshTTL, DefaultRefreshTTL)
	if cfg.Relay.MaxUploadSize <= 0 {
		cfg.Relay.MaxUploadSize = DefaultMaxUploadSize
	}
	if len(cfg.Relay.AllowedOrigins) == 0 {
		cfg.Relay.AllowedOrigins = []string{DefaultAllowedOrigin}
	}
	if cfg.Relay.Valkey.Prefix == "" {
		cfg.Relay.Valkey.Prefix = DefaultValkeyPrefix
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text":
		cfg.Logging.Format = "text"
	case "json":
		cfg.Logging.Format = "json"
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}
