// Package config provides configuration management for histreamer using
// Viper. It supports configuration from files, environment variables,
// and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultHTTPPort          = 9330
	defaultHTTPTimeout       = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadChunkSize     = 32 * 1024
	defaultBufferPoolDepth   = 4
	defaultQueueDepth        = 8
	defaultCodecPoolDepth    = 8
	defaultCodecBufCap       = 1 << 20
	defaultEOSGracePeriod    = 60 * time.Millisecond
	defaultStatsInterval     = 2 * time.Second
	defaultBackpressurePoll  = 50 * time.Millisecond
	defaultRemotePluginPort  = 9331
	defaultHousekeepingCron  = "@every 5s"
)

// Config holds all configuration for the engine process.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Engine     EngineConfig     `mapstructure:"engine"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	RemotePlug RemotePluginConfig `mapstructure:"remote_plugin"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// EngineConfig holds pipeline-core tuning (spec.md §4.1, §4.5): buffer
// pool sizing, inter-filter queue depths, and the sink EOS grace period.
type EngineConfig struct {
	ReadChunkSize      ByteSize `mapstructure:"read_chunk_size"`
	BufferPoolDepth    int      `mapstructure:"buffer_pool_depth"`
	QueueDepth         int      `mapstructure:"queue_depth"`
	CodecPoolDepth     int      `mapstructure:"codec_pool_depth"`
	CodecBufferSize    ByteSize `mapstructure:"codec_buffer_size"`
	EOSGracePeriod     Duration `mapstructure:"eos_grace_period"`
	BackpressurePoll   Duration `mapstructure:"backpressure_poll"`
	HousekeepingCron   string   `mapstructure:"housekeeping_cron"`
}

// HTTPConfig holds the pipeline-graph introspection/events server
// configuration (SPEC_FULL.md domain stack: chi + huma + websocket).
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RemotePluginConfig holds the gRPC remote-plugin transport
// configuration (SPEC_FULL.md domain stack: plugins negotiated and driven over a
// process boundary, with codec-config bytes compressed in transit).
type RemotePluginConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ListenAddr  string `mapstructure:"listen_addr"`
	Compression string `mapstructure:"compression"` // none, brotli, xz, bzip2
}

// MetricsConfig holds the engine stats sampler configuration
// (SPEC_FULL.md domain stack: gopsutil-backed process stats).
// SampleInterval is the ticker interval of StatsSampler.Run.
type MetricsConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with HISTREAMER_, using underscores for nesting, e.g.
// HISTREAMER_ENGINE_QUEUE_DEPTH=16.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/histreamer")
		v.AddConfigPath("$HOME/.histreamer")
	}

	v.SetEnvPrefix("HISTREAMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("engine.read_chunk_size", int64(defaultReadChunkSize))
	v.SetDefault("engine.buffer_pool_depth", defaultBufferPoolDepth)
	v.SetDefault("engine.queue_depth", defaultQueueDepth)
	v.SetDefault("engine.codec_pool_depth", defaultCodecPoolDepth)
	v.SetDefault("engine.codec_buffer_size", int64(defaultCodecBufCap))
	v.SetDefault("engine.eos_grace_period", defaultEOSGracePeriod)
	v.SetDefault("engine.backpressure_poll", defaultBackpressurePoll)
	v.SetDefault("engine.housekeeping_cron", defaultHousekeepingCron)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", defaultHTTPPort)
	v.SetDefault("http.read_timeout", defaultHTTPTimeout)
	v.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("remote_plugin.enabled", false)
	v.SetDefault("remote_plugin.listen_addr", fmt.Sprintf("127.0.0.1:%d", defaultRemotePluginPort))
	v.SetDefault("remote_plugin.compression", "none")

	v.SetDefault("metrics.sample_interval", defaultStatsInterval)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Engine.QueueDepth < 1 {
		return fmt.Errorf("engine.queue_depth must be at least 1")
	}
	if c.Engine.BufferPoolDepth < 1 {
		return fmt.Errorf("engine.buffer_pool_depth must be at least 1")
	}
	if c.Engine.CodecPoolDepth < 1 {
		return fmt.Errorf("engine.codec_pool_depth must be at least 1")
	}

	const maxPort = 65535
	if c.HTTP.Enabled && (c.HTTP.Port < 1 || c.HTTP.Port > maxPort) {
		return fmt.Errorf("http.port must be between 1 and %d", maxPort)
	}

	validCompression := map[string]bool{"none": true, "brotli": true, "xz": true, "bzip2": true}
	if !validCompression[c.RemotePlug.Compression] {
		return fmt.Errorf("remote_plugin.compression must be one of: none, brotli, xz, bzip2")
	}

	return nil
}

// Address returns the introspection server address in host:port format.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
