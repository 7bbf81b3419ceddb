package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCaptureConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config CaptureConfig
		valid  bool
	}{
		{
			name: "valid streaming config",
			config: CaptureConfig{
				SampleRate: 16000,
				ChunkSize:  480,
				ChunkUnit:  ChunkUnitSamples,
			},
			valid: true,
		},
		{
			name: "valid milliseconds config",
			config: CaptureConfig{
				SampleRate: 48000,
				ChunkSize:  30,
				ChunkUnit:  ChunkUnitMilliseconds,
			},
			valid: true,
		},
		{
			name: "chunk size unset",
			config: CaptureConfig{
				SampleRate: 48000,
				ChunkSize:  0,
				ChunkUnit:  ChunkUnitMilliseconds,
			},
			valid: true,
		},
		{
			name: "negative sample rate",
			config: CaptureConfig{
				SampleRate: -1,
				ChunkSize:  480,
				ChunkUnit:  ChunkUnitSamples,
			},
			valid: false,
		},
		{
			name: "zero sample rate",
			config: CaptureConfig{
				SampleRate: 0,
				ChunkSize:  480,
				ChunkUnit:  ChunkUnitSamples,
			},
			valid: false,
		},
		{
			name: "negative chunk size",
			config: CaptureConfig{
				SampleRate: 16000,
				ChunkSize:  -480,
				ChunkUnit:  ChunkUnitSamples,
			},
			valid: false,
		},
		{
			name: "unknown chunk unit",
			config: CaptureConfig{
				SampleRate: 16000,
				ChunkSize:  480,
				ChunkUnit:  "frames",
			},
			valid: false,
		},
		{
			name: "chunk below one sample",
			config: CaptureConfig{
				SampleRate: 16000,
				ChunkSize:  1, // 1ms at 16kHz is 16 samples; 1ms at 100Hz would floor to 0
				ChunkUnit:  ChunkUnitMilliseconds,
			},
			valid: true,
		},
		{
			name: "chunk floors to zero samples",
			config: CaptureConfig{
				SampleRate: 100,
				ChunkSize:  1,
				ChunkUnit:  ChunkUnitMilliseconds,
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestEffectiveChunkSamples(t *testing.T) {
	tests := []struct {
		name   string
		config CaptureConfig
		want   int
	}{
		{
			name:   "milliseconds conversion",
			config: CaptureConfig{SampleRate: 16000, ChunkSize: 30, ChunkUnit: ChunkUnitMilliseconds},
			want:   480,
		},
		{
			name:   "milliseconds conversion floors",
			config: CaptureConfig{SampleRate: 44100, ChunkSize: 23, ChunkUnit: ChunkUnitMilliseconds},
			want:   1014, // floor(23 * 44100 / 1000) = floor(1014.3)
		},
		{
			name:   "samples unit passes through",
			config: CaptureConfig{SampleRate: 16000, ChunkSize: 480, ChunkUnit: ChunkUnitSamples},
			want:   480,
		},
		{
			name:   "unset falls back to internal size",
			config: CaptureConfig{SampleRate: 48000, ChunkSize: 0, ChunkUnit: ChunkUnitMilliseconds},
			want:   FallbackChunkSamples,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.EffectiveChunkSamples(); got != tt.want {
				t.Errorf("Expected %d samples, got %d", tt.want, got)
			}
		})
	}
}

func TestStreamingEnabled(t *testing.T) {
	enabled := CaptureConfig{SampleRate: 48000, ChunkSize: 20, ChunkUnit: ChunkUnitMilliseconds}
	if !enabled.StreamingEnabled() {
		t.Error("Expected streaming to be enabled with chunk_size set")
	}

	disabled := CaptureConfig{SampleRate: 48000, ChunkSize: 0, ChunkUnit: ChunkUnitMilliseconds}
	if disabled.StreamingEnabled() {
		t.Error("Expected streaming to be disabled with chunk_size unset")
	}
}

func TestBridgeConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config BridgeConfig
		valid  bool
	}{
		{
			name:   "valid config",
			config: BridgeConfig{Address: "0.0.0.0", Port: 8090, QueueSize: 256},
			valid:  true,
		},
		{
			name:   "port too low",
			config: BridgeConfig{Address: "0.0.0.0", Port: 0, QueueSize: 256},
			valid:  false,
		},
		{
			name:   "port too high",
			config: BridgeConfig{Address: "0.0.0.0", Port: 70000, QueueSize: 256},
			valid:  false,
		},
		{
			name:   "empty address",
			config: BridgeConfig{Address: "", Port: 8090, QueueSize: 256},
			valid:  false,
		},
		{
			name:   "zero queue size",
			config: BridgeConfig{Address: "0.0.0.0", Port: 8090, QueueSize: 0},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name:   "valid json to stdout",
			config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			valid:  true,
		},
		{
			name:   "valid text to stderr",
			config: LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			valid:  true,
		},
		{
			name:   "invalid log level",
			config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"},
			valid:  false,
		},
		{
			name:   "invalid format",
			config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
capture:
  sample_rate: 16000
  chunk_size: 30
  chunk_unit: milliseconds
bridge:
  address: 127.0.0.1
  port: 9001
  queue_size: 128
http:
  enabled: true
  address: 127.0.0.1
  port: 9002
logging:
  level: debug
  format: json
  output: stdout
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Capture.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.Capture.SampleRate)
	}
	if got := cfg.Capture.EffectiveChunkSamples(); got != 480 {
		t.Errorf("Expected effective chunk size 480, got %d", got)
	}
	if cfg.Bridge.Port != 9001 {
		t.Errorf("Expected bridge port 9001, got %d", cfg.Bridge.Port)
	}
	if !cfg.HTTP.Enabled {
		t.Error("Expected HTTP to be enabled")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	content := `
capture:
  chunk_size: 0
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Capture.SampleRate != DefaultSampleRate {
		t.Errorf("Expected default sample rate %d, got %d", DefaultSampleRate, cfg.Capture.SampleRate)
	}
	if cfg.Capture.ChunkUnit != ChunkUnitMilliseconds {
		t.Errorf("Expected default chunk unit %q, got %q", ChunkUnitMilliseconds, cfg.Capture.ChunkUnit)
	}
	if cfg.Capture.StreamingEnabled() {
		t.Error("Expected streaming disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("capture: [not a mapping"), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}

	invalid := `
capture:
  sample_rate: -1
`
	path2 := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(path2, []byte(invalid), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if _, err := Load(path2); err == nil {
		t.Error("Expected validation error for negative sample rate")
	}
}
