package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, time.RFC3339, cfg.Logging.TimeFormat)

	assert.Equal(t, ByteSize(defaultReadChunkSize), cfg.Engine.ReadChunkSize)
	assert.Equal(t, defaultBufferPoolDepth, cfg.Engine.BufferPoolDepth)
	assert.Equal(t, defaultQueueDepth, cfg.Engine.QueueDepth)
	assert.Equal(t, defaultCodecPoolDepth, cfg.Engine.CodecPoolDepth)
	assert.Equal(t, Duration(defaultEOSGracePeriod), cfg.Engine.EOSGracePeriod)
	assert.Equal(t, defaultHousekeepingCron, cfg.Engine.HousekeepingCron)

	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, defaultHTTPPort, cfg.HTTP.Port)

	assert.False(t, cfg.RemotePlug.Enabled)
	assert.Equal(t, "none", cfg.RemotePlug.Compression)

	assert.Equal(t, defaultStatsInterval, cfg.Metrics.SampleInterval)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
engine:
  queue_depth: 16
  codec_pool_depth: 4

http:
  host: "0.0.0.0"
  port: 9999

logging:
  level: "debug"
  format: "text"

remote_plugin:
  enabled: true
  compression: "brotli"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 16, cfg.Engine.QueueDepth)
	assert.Equal(t, 4, cfg.Engine.CodecPoolDepth)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.RemotePlug.Enabled)
	assert.Equal(t, "brotli", cfg.RemotePlug.Compression)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HISTREAMER_HTTP_PORT", "3000")
	t.Setenv("HISTREAMER_ENGINE_QUEUE_DEPTH", "32")
	t.Setenv("HISTREAMER_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, 32, cfg.Engine.QueueDepth)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
http:
  port: 8080
logging:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	t.Setenv("HISTREAMER_HTTP_PORT", "9000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func validConfig() *Config {
	return &Config{
		Logging:    LoggingConfig{Level: "info", Format: "json"},
		Engine:     EngineConfig{QueueDepth: 8, BufferPoolDepth: 4, CodecPoolDepth: 8},
		HTTP:       HTTPConfig{Enabled: true, Host: "127.0.0.1", Port: 8080},
		RemotePlug: RemotePluginConfig{Compression: "none"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too high", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.HTTP.Port = tt.port
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "http.port")
		})
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "invalid"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_InvalidQueueDepth(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.QueueDepth = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "engine.queue_depth")
}

func TestValidate_InvalidCompression(t *testing.T) {
	cfg := validConfig()
	cfg.RemotePlug.Compression = "lzma"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "remote_plugin.compression")
}

func TestHTTPConfig_Address(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"localhost", "127.0.0.1", 8080, "127.0.0.1:8080"},
		{"all interfaces", "0.0.0.0", 3000, "0.0.0.0:3000"},
		{"hostname", "example.com", 443, "example.com:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &HTTPConfig{Host: tt.host, Port: tt.port}
			assert.Equal(t, tt.expected, cfg.Address())
		})
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidContent := `
http:
  port: "not a number"
  invalid yaml structure
`
	err := os.WriteFile(configPath, []byte(invalidContent), 0o600)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
