package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sonacove/livebridge/pkg/wire"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := Config{Model: "models/test", ResponseModality: ModalityAudio}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ToolTimeout != defaultToolTimeout {
		t.Fatalf("tool timeout = %s", cfg.ToolTimeout)
	}
	if cfg.Realtime.Handling != wire.StartOfActivityInterrupts {
		t.Fatalf("handling = %q", cfg.Realtime.Handling)
	}
	if cfg.InputFormat.SampleRate != 16000 || cfg.OutputFormat.SampleRate != 24000 {
		t.Fatalf("formats = %+v / %+v", cfg.InputFormat, cfg.OutputFormat)
	}
}

func TestConfigCompressionTargetDefaultsToHalfTrigger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "models/test"
	cfg.Compression = &CompressionConfig{TriggerTokens: 4000}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Compression.TargetTokens != 2000 {
		t.Fatalf("target tokens = %d", cfg.Compression.TargetTokens)
	}
}

func TestConfigEventBufferFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "models/test"
	cfg.EventBuffer = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.EventBuffer != minEventBuffer {
		t.Fatalf("event buffer = %d, want %d", cfg.EventBuffer, minEventBuffer)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Config)
		param string
	}{
		{"missing model", func(c *Config) { c.Model = "" }, "model"},
		{"missing modality", func(c *Config) { c.ResponseModality = "" }, "response_modality"},
		{"bad modality", func(c *Config) { c.ResponseModality = "VIDEO" }, "response_modality"},
		{"bad handling", func(c *Config) { c.Realtime.Handling = "SOMETIMES" }, "realtime.handling"},
		{"zero trigger", func(c *Config) { c.Compression = &CompressionConfig{} }, "compression.trigger_tokens"},
		{"target above trigger", func(c *Config) {
			c.Compression = &CompressionConfig{TriggerTokens: 100, TargetTokens: 200}
		}, "compression.target_tokens"},
		{"inverted thresholds", func(c *Config) {
			c.Realtime.Detection.StartThreshold = 0.01
			c.Realtime.Detection.EndThreshold = 0.05
		}, "realtime.detection.end_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Model = "models/test"
			tc.mut(&cfg)
			err := cfg.Validate()
			se, ok := err.(*Error)
			if !ok || se.Type != ErrInvalidConfig {
				t.Fatalf("error = %v", err)
			}
			if se.Param != tc.param {
				t.Fatalf("param = %q, want %q", se.Param, tc.param)
			}
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	body := `
model: models/test-live
response_modality: AUDIO
voice: Puck
tool_timeout_ms: 5000
realtime:
  detection:
    automatic: true
    silence_duration_ms: 500
compression:
  trigger_tokens: 4000
  target_tokens: 2000
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Model != "models/test-live" || cfg.Voice != "Puck" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ToolTimeout != 5*time.Second {
		t.Fatalf("tool timeout = %s", cfg.ToolTimeout)
	}
	if cfg.Realtime.Detection.SilenceDurationMs != 500 {
		t.Fatalf("silence duration = %d", cfg.Realtime.Detection.SilenceDurationMs)
	}
	if cfg.Compression == nil || cfg.Compression.TriggerTokens != 4000 {
		t.Fatalf("compression = %+v", cfg.Compression)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	body := `{"model":"models/test-live","response_modality":"TEXT","drain_grace_ms":2500}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ResponseModality != ModalityText {
		t.Fatalf("modality = %q", cfg.ResponseModality)
	}
	if cfg.DrainGrace != 2500*time.Millisecond {
		t.Fatalf("drain grace = %s", cfg.DrainGrace)
	}
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv("LIVEBRIDGE_CONFIG", "")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ResponseModality != ModalityAudio {
		t.Fatalf("default modality = %q", cfg.ResponseModality)
	}
}
