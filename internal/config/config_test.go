package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.Client.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Sync.ReconnectBackoff.Duration())
	assert.Equal(t, 3*time.Second, cfg.Sync.TypingExpiry.Duration())
	assert.Equal(t, time.Second, cfg.Sync.TypingSweep.Duration())
	assert.Equal(t, 30*time.Second, cfg.Sync.CacheTTL.Duration())
	assert.Equal(t, "memory", cfg.Storage.Mode)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  base_url: https://chat.example.com/api/
  request_timeout: 5
sync:
  reconnect_backoff: 1500ms
storage:
  mode: pebble
  path: /tmp/chatsync-test
relay:
  max_upload_size: 2MB
logging:
  format: json
`), 0o600))
	t.Setenv("CHATSYNC_LOG_LEVEL", "debug")
	t.Setenv("CHATSYNC_ALLOWED_ORIGINS", "http://a,http://b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/api", cfg.Client.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Client.RequestTimeout.Duration())
	assert.Equal(t, 1500*time.Millisecond, cfg.Sync.ReconnectBackoff.Duration())
	assert.Equal(t, 3*time.Second, cfg.Sync.TypingExpiry.Duration())
	assert.Equal(t, "/tmp/chatsync-test", cfg.Storage.Path)
	assert.Equal(t, int64(2_000_000), cfg.Relay.MaxUploadSize.Int64())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Relay.AllowedOrigins)
}

func TestValidateRejects(t *testing.T) {
	assert.Error(t, ValidateConfig(nil))
	assert.Error(t, ValidateConfig(&Config{Client: ClientConfig{BaseURL: "ftp://x"}}))
	assert.Error(t, ValidateConfig(&Config{Storage: StorageConfig{Mode: "sqlite"}}))
	assert.Error(t, ValidateConfig(&Config{Logging: LoggingConfig{Format: "xml"}}))
}
