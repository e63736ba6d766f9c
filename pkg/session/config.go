package session

import (
	"time"

	"github.com/sonacove/livebridge/pkg/wire"
)

// Modality selects the response stream type. Exactly one per session.
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityAudio Modality = "AUDIO"
)

// Config describes one session. Model and ResponseModality are
// required; everything else has a usable default.
type Config struct {
	// Model is the backend model identifier, e.g.
	// "models/gemini-2.0-flash-live-001".
	Model string `yaml:"model" json:"model"`

	// ResponseModality is TEXT or AUDIO.
	ResponseModality Modality `yaml:"response_modality" json:"response_modality"`

	// Voice selects the synthesized voice for audio responses.
	Voice string `yaml:"voice" json:"voice"`

	// SystemInstruction is prepended to the session context.
	SystemInstruction string `yaml:"system_instruction" json:"system_instruction"`

	// Realtime controls activity detection for streamed input.
	Realtime RealtimeConfig `yaml:"realtime" json:"realtime"`

	// ResumptionHandle resumes a previous session when non-empty. The
	// session always requests resumability.
	ResumptionHandle string `yaml:"resumption_handle" json:"resumption_handle"`

	// Compression opts in to server-side context window compression.
	Compression *CompressionConfig `yaml:"compression" json:"compression"`

	// TranscribeInput and TranscribeOutput enable audio transcription
	// streams for the respective direction.
	TranscribeInput  bool `yaml:"transcribe_input" json:"transcribe_input"`
	TranscribeOutput bool `yaml:"transcribe_output" json:"transcribe_output"`

	// ToolTimeout bounds each function call execution. File configs
	// set it via tool_timeout_ms.
	ToolTimeout time.Duration `yaml:"-" json:"-"`

	// DrainGrace bounds how long a Draining session waits for in-flight
	// work after a GoAway with no time estimate. File configs set it
	// via drain_grace_ms.
	DrainGrace time.Duration `yaml:"-" json:"-"`

	// ToolTimeoutMs and DrainGraceMs are the file-config forms of the
	// duration fields above. Non-zero values win over the duration
	// fields after loading.
	ToolTimeoutMs int `yaml:"tool_timeout_ms" json:"tool_timeout_ms"`
	DrainGraceMs  int `yaml:"drain_grace_ms" json:"drain_grace_ms"`

	// EventBuffer sizes the outbound event channel.
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`

	// PlaybackBufferMs bounds the playback queue in milliseconds of
	// audio. Oldest chunks are dropped on overflow.
	PlaybackBufferMs int `yaml:"playback_buffer_ms" json:"playback_buffer_ms"`

	// InputFormat and OutputFormat describe the PCM streams. Defaults
	// are 16 kHz mono in, 24 kHz mono out.
	InputFormat  AudioFormat `yaml:"input_format" json:"input_format"`
	OutputFormat AudioFormat `yaml:"output_format" json:"output_format"`
}

// CompressionConfig mirrors the server-side sliding window settings.
type CompressionConfig struct {
	TriggerTokens int64 `yaml:"trigger_tokens" json:"trigger_tokens"`
	TargetTokens  int64 `yaml:"target_tokens" json:"target_tokens"`
}

// RealtimeConfig controls the input stream manager.
type RealtimeConfig struct {
	// Detection configures automatic speech detection. When Automatic
	// is false the caller must signal ActivityStart and ActivityEnd
	// explicitly.
	Detection ActivityDetectionConfig `yaml:"detection" json:"detection"`

	// Handling selects whether new activity interrupts generation.
	Handling wire.ActivityHandling `yaml:"handling" json:"handling"`

	// Coverage selects whether silence between activity windows is
	// attributed to the turn.
	Coverage wire.TurnCoverage `yaml:"coverage" json:"coverage"`
}

// ActivityDetectionConfig tunes energy-based speech detection.
type ActivityDetectionConfig struct {
	Automatic bool `yaml:"automatic" json:"automatic"`

	// StartThreshold is the RMS energy (0..1) that opens an activity
	// window.
	StartThreshold float64 `yaml:"start_threshold" json:"start_threshold"`

	// EndThreshold is the RMS energy below which audio counts as
	// silence. Must not exceed StartThreshold.
	EndThreshold float64 `yaml:"end_threshold" json:"end_threshold"`

	// PrefixPaddingMs of audio preceding detected speech is included
	// in the activity window.
	PrefixPaddingMs int `yaml:"prefix_padding_ms" json:"prefix_padding_ms"`

	// SilenceDurationMs of continuous silence closes the window.
	SilenceDurationMs int `yaml:"silence_duration_ms" json:"silence_duration_ms"`
}

const (
	defaultToolTimeout      = 30 * time.Second
	defaultDrainGrace       = 10 * time.Second
	defaultEventBuffer      = 256
	minEventBuffer          = 4
	defaultPlaybackBufferMs = 30_000

	defaultStartThreshold    = 0.02
	defaultEndThreshold      = 0.015
	defaultPrefixPaddingMs   = 300
	defaultSilenceDurationMs = 800
)

// DefaultConfig returns a Config with the model unset and every other
// field at its default.
func DefaultConfig() Config {
	return Config{
		ResponseModality: ModalityAudio,
		Realtime: RealtimeConfig{
			Detection: ActivityDetectionConfig{
				Automatic:         true,
				StartThreshold:    defaultStartThreshold,
				EndThreshold:      defaultEndThreshold,
				PrefixPaddingMs:   defaultPrefixPaddingMs,
				SilenceDurationMs: defaultSilenceDurationMs,
			},
			Handling: wire.StartOfActivityInterrupts,
			Coverage: wire.TurnIncludesOnlyActivity,
		},
		ToolTimeout:      defaultToolTimeout,
		DrainGrace:       defaultDrainGrace,
		EventBuffer:      defaultEventBuffer,
		PlaybackBufferMs: defaultPlaybackBufferMs,
		InputFormat:      AudioFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
		OutputFormat:     AudioFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16},
	}
}

// Validate checks the configuration and fills defaults for zero-value
// fields. It mutates the receiver.
func (c *Config) Validate() error {
	if c.Model == "" {
		return NewInvalidConfigError("model is required", "model")
	}
	switch c.ResponseModality {
	case ModalityText, ModalityAudio:
	case "":
		return NewInvalidConfigError("response modality is required", "response_modality")
	default:
		return NewInvalidConfigError("response modality must be TEXT or AUDIO", "response_modality")
	}
	switch c.Realtime.Handling {
	case "", wire.StartOfActivityInterrupts, wire.NoInterruption:
	default:
		return NewInvalidConfigError("unsupported activity handling", "realtime.handling")
	}
	switch c.Realtime.Coverage {
	case "", wire.TurnIncludesOnlyActivity, wire.TurnIncludesAllInput:
	default:
		return NewInvalidConfigError("unsupported turn coverage", "realtime.coverage")
	}
	if c.Compression != nil {
		if c.Compression.TriggerTokens <= 0 {
			return NewInvalidConfigError("trigger_tokens must be positive", "compression.trigger_tokens")
		}
		if c.Compression.TargetTokens == 0 {
			c.Compression.TargetTokens = c.Compression.TriggerTokens / 2
		}
		if c.Compression.TargetTokens > c.Compression.TriggerTokens {
			return NewInvalidConfigError("target_tokens must not exceed trigger_tokens", "compression.target_tokens")
		}
	}

	d := &c.Realtime.Detection
	if d.Automatic {
		if d.StartThreshold == 0 {
			d.StartThreshold = defaultStartThreshold
		}
		if d.EndThreshold == 0 {
			d.EndThreshold = defaultEndThreshold
		}
		if d.EndThreshold > d.StartThreshold {
			return NewInvalidConfigError("end_threshold must not exceed start_threshold",
				"realtime.detection.end_threshold")
		}
		if d.PrefixPaddingMs == 0 {
			d.PrefixPaddingMs = defaultPrefixPaddingMs
		}
		if d.SilenceDurationMs == 0 {
			d.SilenceDurationMs = defaultSilenceDurationMs
		}
	}

	if c.Realtime.Handling == "" {
		c.Realtime.Handling = wire.StartOfActivityInterrupts
	}
	if c.Realtime.Coverage == "" {
		c.Realtime.Coverage = wire.TurnIncludesOnlyActivity
	}
	if c.ToolTimeoutMs > 0 {
		c.ToolTimeout = time.Duration(c.ToolTimeoutMs) * time.Millisecond
	}
	if c.DrainGraceMs > 0 {
		c.DrainGrace = time.Duration(c.DrainGraceMs) * time.Millisecond
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = defaultToolTimeout
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = defaultDrainGrace
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	// Start emits the handshake state transitions before a consumer can
	// attach; a buffer smaller than that would wedge it.
	if c.EventBuffer < minEventBuffer {
		c.EventBuffer = minEventBuffer
	}
	if c.PlaybackBufferMs <= 0 {
		c.PlaybackBufferMs = defaultPlaybackBufferMs
	}
	if c.InputFormat.SampleRate == 0 {
		c.InputFormat = AudioFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	}
	if c.OutputFormat.SampleRate == 0 {
		c.OutputFormat = AudioFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	}
	return nil
}

// setupMessage builds the wire setup payload for this config.
func (c *Config) setupMessage(declarations []wire.FunctionDeclaration) *wire.Setup {
	setup := &wire.Setup{
		Model: c.Model,
		GenerationConfig: &wire.GenerationConfig{
			ResponseModalities: []string{string(c.ResponseModality)},
		},
		SessionResumption: &wire.SessionResumption{Handle: c.ResumptionHandle},
	}
	if c.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &wire.SpeechConfig{VoiceName: c.Voice}
	}
	if c.SystemInstruction != "" {
		setup.SystemInstruction = &wire.Content{
			Parts: []wire.Part{{Text: c.SystemInstruction}},
		}
	}
	if len(declarations) > 0 {
		setup.Tools = []wire.Tool{{FunctionDeclarations: declarations}}
	}
	// Activity boundaries are always decided engine-side, either by the
	// energy detector or by explicit caller signals, so server VAD is
	// disabled in both modes.
	setup.RealtimeInputConfig = &wire.RealtimeInputConfig{
		AutomaticActivityDetection: &wire.AutomaticActivityDetection{Disabled: true},
		ActivityHandling:           c.Realtime.Handling,
		TurnCoverage:               c.Realtime.Coverage,
	}
	if c.Compression != nil {
		setup.ContextWindowCompression = &wire.ContextWindowCompression{
			TriggerTokens: c.Compression.TriggerTokens,
			SlidingWindow: &wire.SlidingWindow{TargetTokens: c.Compression.TargetTokens},
		}
	}
	if c.TranscribeInput {
		setup.InputAudioTranscription = &wire.AudioTranscription{}
	}
	if c.TranscribeOutput {
		setup.OutputAudioTranscription = &wire.AudioTranscription{}
	}
	return setup
}
