package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the full chatsync configuration. The relay section is only read
// by `chatsync relay`.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Sync    SyncConfig    `yaml:"sync"`
	Storage StorageConfig `yaml:"storage"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

type ClientConfig struct {
	BaseURL        string   `yaml:"base_url"`
	WebsocketURL   string   `yaml:"websocket_url"` // derived from base_url when empty
	RequestTimeout Duration `yaml:"request_timeout"`
}

// SyncConfig tunes the live channels and the local cache.
type SyncConfig struct {
	ReconnectBackoff Duration `yaml:"reconnect_backoff"`
	TypingExpiry     Duration `yaml:"typing_expiry"`
	TypingSweep      Duration `yaml:"typing_sweep"`
	TypingThrottle   Duration `yaml:"typing_throttle"`
	CacheTTL         Duration `yaml:"cache_ttl"`
}

type StorageConfig struct {
	Mode string `yaml:"mode"` // "memory" or "pebble"
	Path string `yaml:"path"`
}

type RelayConfig struct {
	Address        string    `yaml:"address"`
	JWTSecret      string    `yaml:"jwt_secret"`
	AccessTTL      Duration  `yaml:"access_ttl"`
	RefreshTTL     Duration  `yaml:"refresh_ttl"`
	AllowedOrigins []string  `yaml:"allowed_origins"`
	MaxUploadSize  SizeBytes `yaml:"max_upload_size"`
	Valkey         struct {
		Address string `yaml:"address"`
		Prefix  string `yaml:"prefix"`
	} `yaml:"valkey"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Duration accepts strings like "3s" or plain numbers of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// SizeBytes accepts "10MB"-style strings or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }
