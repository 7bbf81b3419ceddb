package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Chunk size units
const (
	ChunkUnitMilliseconds = "milliseconds"
	ChunkUnitSamples      = "samples"
)

const (
	// DefaultSampleRate is used when the capture section omits sample_rate
	DefaultSampleRate = 48000

	// FallbackChunkSamples is the internal chunk size used for aggregate
	// collection when streaming is disabled (chunk_size unset).
	FallbackChunkSamples = 4096
)

// Config represents the complete service configuration
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// CaptureConfig contains audio capture and chunking parameters. It is
// validated once at session construction and immutable afterwards.
type CaptureConfig struct {
	SampleRate  int    `yaml:"sample_rate"`   // Hz
	ChunkSize   int    `yaml:"chunk_size"`    // 0 = unset (streaming disabled)
	ChunkUnit   string `yaml:"chunk_unit"`    // "milliseconds" or "samples"
	DrainOnStop bool   `yaml:"drain_on_stop"` // flush the sub-chunk remainder as a final short chunk
	Device      string `yaml:"device"`        // empty = default input device
}

// BridgeConfig contains host bridge transport configuration
type BridgeConfig struct {
	Address   string `yaml:"address"`
	Port      int    `yaml:"port"`
	QueueSize int    `yaml:"queue_size"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in defaults for omitted fields. Explicitly invalid
// values (negative sample rate, unknown unit) are left for Validate.
func (c *Config) applyDefaults() {
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = DefaultSampleRate
	}
	if c.Capture.ChunkUnit == "" {
		c.Capture.ChunkUnit = ChunkUnitMilliseconds
	}
	if c.Bridge.Address == "" {
		c.Bridge.Address = "0.0.0.0"
	}
	if c.Bridge.Port == 0 {
		c.Bridge.Port = 8090
	}
	if c.Bridge.QueueSize == 0 {
		c.Bridge.QueueSize = 256
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Bridge.Validate(); err != nil {
		return fmt.Errorf("bridge config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration. It fails fast, before any
// capture resource is touched.
func (cc *CaptureConfig) Validate() error {
	if cc.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be a positive integer, got %d", cc.SampleRate)
	}

	if cc.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be unset (0) or a positive integer, got %d", cc.ChunkSize)
	}

	if cc.ChunkUnit != ChunkUnitMilliseconds && cc.ChunkUnit != ChunkUnitSamples {
		return fmt.Errorf("chunk_unit must be %q or %q, got %q",
			ChunkUnitMilliseconds, ChunkUnitSamples, cc.ChunkUnit)
	}

	if cc.ChunkSize > 0 && cc.EffectiveChunkSamples() < 1 {
		return fmt.Errorf("chunk_size %d %s is below one sample at %d Hz",
			cc.ChunkSize, cc.ChunkUnit, cc.SampleRate)
	}

	return nil
}

// Validate validates bridge configuration
func (b *BridgeConfig) Validate() error {
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", b.Port)
	}

	if b.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if b.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", b.QueueSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// StreamingEnabled reports whether per-chunk streaming is configured.
// When disabled, capture still runs and chunks of FallbackChunkSamples are
// produced internally for aggregate collection.
func (cc *CaptureConfig) StreamingEnabled() bool {
	return cc.ChunkSize > 0
}

// EffectiveChunkSamples returns the chunk length in samples. For the
// milliseconds unit this is floor(chunk_size * sample_rate / 1000).
func (cc *CaptureConfig) EffectiveChunkSamples() int {
	if cc.ChunkSize <= 0 {
		return FallbackChunkSamples
	}

	switch cc.ChunkUnit {
	case ChunkUnitSamples:
		return cc.ChunkSize
	default:
		return cc.ChunkSize * cc.SampleRate / 1000
	}
}
