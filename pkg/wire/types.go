// Package wire defines the JSON message types exchanged over a live
// session transport. Client and server messages are single-variant
// unions: exactly one payload field must be populated per message.
package wire

import "encoding/json"

// ClientMessage is the union of all messages a client may send.
// Exactly one field must be non-nil.
type ClientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	ClientContent *ClientContent `json:"clientContent,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// ServerMessage is the union of all messages a server may send.
// Exactly one variant field must be non-nil. UsageMetadata is not a
// variant: it may accompany any message, most commonly ServerContent.
type ServerMessage struct {
	SetupComplete           *SetupComplete           `json:"setupComplete,omitempty"`
	ServerContent           *ServerContent           `json:"serverContent,omitempty"`
	ToolCall                *ToolCall                `json:"toolCall,omitempty"`
	ToolCallCancellation    *ToolCallCancellation    `json:"toolCallCancellation,omitempty"`
	GoAway                  *GoAway                  `json:"goAway,omitempty"`
	SessionResumptionUpdate *SessionResumptionUpdate `json:"sessionResumptionUpdate,omitempty"`

	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Setup is the first client message on a connection. It fixes the
// model, generation parameters, and tool surface for the session.
type Setup struct {
	Model                    string                    `json:"model"`
	GenerationConfig         *GenerationConfig         `json:"generationConfig,omitempty"`
	SystemInstruction        *Content                  `json:"systemInstruction,omitempty"`
	Tools                    []Tool                    `json:"tools,omitempty"`
	RealtimeInputConfig      *RealtimeInputConfig      `json:"realtimeInputConfig,omitempty"`
	SessionResumption        *SessionResumption        `json:"sessionResumption,omitempty"`
	ContextWindowCompression *ContextWindowCompression `json:"contextWindowCompression,omitempty"`
	InputAudioTranscription  *AudioTranscription       `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *AudioTranscription       `json:"outputAudioTranscription,omitempty"`
	Proactivity              *Proactivity              `json:"proactivity,omitempty"`
}

// Proactivity lets the model decide not to respond to irrelevant input.
type Proactivity struct {
	ProactiveAudio bool `json:"proactiveAudio,omitempty"`
}

// GenerationConfig controls how the server generates responses.
// ResponseModalities must contain exactly one entry, TEXT or AUDIO.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
	Temperature        *float64      `json:"temperature,omitempty"`
	MaxOutputTokens    int           `json:"maxOutputTokens,omitempty"`
	MediaResolution    string        `json:"mediaResolution,omitempty"`
}

// SpeechConfig selects the synthesized voice for audio responses.
type SpeechConfig struct {
	VoiceName    string `json:"voiceName,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Tool carries the function declarations exposed to the model.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is a JSON-Schema-style parameter description.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// ActivityHandling selects how user activity affects in-flight generation.
type ActivityHandling string

const (
	// StartOfActivityInterrupts aborts the current model turn when new
	// user activity begins. This is the default.
	StartOfActivityInterrupts ActivityHandling = "START_OF_ACTIVITY_INTERRUPTS"
	// NoInterruption lets the current model turn finish; new activity
	// is queued behind it.
	NoInterruption ActivityHandling = "NO_INTERRUPTION"
)

// TurnCoverage selects which realtime input is attributed to a turn.
type TurnCoverage string

const (
	// TurnIncludesOnlyActivity attributes only frames inside an
	// activity window to the turn. This is the default.
	TurnIncludesOnlyActivity TurnCoverage = "TURN_INCLUDES_ONLY_ACTIVITY"
	// TurnIncludesAllInput attributes every frame, including silence
	// between windows, to the turn.
	TurnIncludesAllInput TurnCoverage = "TURN_INCLUDES_ALL_INPUT"
)

// RealtimeInputConfig controls activity detection for realtime streams.
type RealtimeInputConfig struct {
	AutomaticActivityDetection *AutomaticActivityDetection `json:"automaticActivityDetection,omitempty"`
	ActivityHandling           ActivityHandling            `json:"activityHandling,omitempty"`
	TurnCoverage               TurnCoverage                `json:"turnCoverage,omitempty"`
}

// AutomaticActivityDetection tunes server-side voice activity detection.
// Disabled switches the session to explicit activity signaling.
type AutomaticActivityDetection struct {
	Disabled          bool `json:"disabled,omitempty"`
	PrefixPaddingMs   int  `json:"prefixPaddingMs,omitempty"`
	SilenceDurationMs int  `json:"silenceDurationMs,omitempty"`
}

// SessionResumption requests a resumable session. A non-empty Handle
// resumes a prior session instead of starting fresh.
type SessionResumption struct {
	Handle string `json:"handle,omitempty"`
}

// ContextWindowCompression opts in to server-side history compression.
type ContextWindowCompression struct {
	TriggerTokens int64          `json:"triggerTokens,omitempty"`
	SlidingWindow *SlidingWindow `json:"slidingWindow,omitempty"`
}

// SlidingWindow sets the token budget compression shrinks history to.
type SlidingWindow struct {
	TargetTokens int64 `json:"targetTokens,omitempty"`
}

// AudioTranscription enables transcription for one audio direction.
type AudioTranscription struct{}

// ClientContent carries discrete, complete conversational turns.
// TurnComplete signals the model may start generating.
type ClientContent struct {
	Turns        []Content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete,omitempty"`
}

// Content is one conversational turn: a role plus ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is one piece of a turn: text or inline binary data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob is binary payload with a MIME descriptor. Data is base64 on
// the wire; encoding/json handles that transparently.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// RealtimeInput carries one realtime frame or activity signal.
// Exactly one field must be populated.
type RealtimeInput struct {
	Audio          *Blob          `json:"audio,omitempty"`
	Video          *Blob          `json:"video,omitempty"`
	Text           string         `json:"text,omitempty"`
	ActivityStart  *ActivityStart `json:"activityStart,omitempty"`
	ActivityEnd    *ActivityEnd   `json:"activityEnd,omitempty"`
	AudioStreamEnd bool           `json:"audioStreamEnd,omitempty"`
}

// ActivityStart marks the explicit beginning of user activity.
type ActivityStart struct{}

// ActivityEnd marks the explicit end of user activity.
type ActivityEnd struct{}

// ToolResponse returns results for previously issued function calls.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses,omitempty"`
}

// FunctionResponse is the result of one function call, matched by ID.
type FunctionResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// SetupComplete acknowledges Setup; the session is live after it.
type SetupComplete struct{}

// ServerContent streams model output and turn lifecycle flags.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription is an incremental speech-to-text fragment.
type Transcription struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// ToolCall requests execution of one or more functions.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// FunctionCall identifies one function invocation. ID is unique per
// session and is how the response is matched back.
type FunctionCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolCallCancellation withdraws previously issued function calls.
type ToolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}

// GoAway warns that the server will close the connection soon.
// timeLeft is carried in milliseconds.
type GoAway struct {
	TimeLeftMs int64 `json:"timeLeft,omitempty"`
}

// SessionResumptionUpdate delivers the latest resumption handle.
type SessionResumptionUpdate struct {
	NewHandle string `json:"newHandle,omitempty"`
	Resumable bool   `json:"resumable,omitempty"`
}

// UsageMetadata reports cumulative token consumption for the session.
type UsageMetadata struct {
	PromptTokenCount        int64 `json:"promptTokenCount,omitempty"`
	CachedContentTokenCount int64 `json:"cachedContentTokenCount,omitempty"`
	ResponseTokenCount      int64 `json:"responseTokenCount,omitempty"`
	ToolUsePromptTokenCount int64 `json:"toolUsePromptTokenCount,omitempty"`
	ThoughtsTokenCount      int64 `json:"thoughtsTokenCount,omitempty"`
	TotalTokenCount         int64 `json:"totalTokenCount,omitempty"`
}
