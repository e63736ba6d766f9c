package session

import "time"

// Event is the interface for all session output events. Events are
// delivered in order on the session's Events channel.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted on every state transition.
type StateChangedEvent struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TextDeltaEvent carries an incremental text fragment of a model turn.
type TextDeltaEvent struct {
	Turn int    `json:"turn"`
	Text string `json:"text"`
}

func (e *TextDeltaEvent) EventType() string { return "text.delta" }

// AudioChunkEvent carries one PCM audio chunk of a model turn.
type AudioChunkEvent struct {
	Turn     int    `json:"turn"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

func (e *AudioChunkEvent) EventType() string { return "audio.chunk" }

// TranscriptKind distinguishes input and output transcription.
type TranscriptKind string

const (
	TranscriptInput  TranscriptKind = "input"
	TranscriptOutput TranscriptKind = "output"
)

// TranscriptEvent carries an incremental transcription fragment.
type TranscriptEvent struct {
	Turn     int            `json:"turn"`
	Kind     TranscriptKind `json:"kind"`
	Text     string         `json:"text"`
	Finished bool           `json:"finished,omitempty"`
}

func (e *TranscriptEvent) EventType() string { return "transcript.delta" }

// GenerationCompleteEvent signals the model finished producing content
// for the turn. Delivery to the consumer may still be in progress.
type GenerationCompleteEvent struct {
	Turn int `json:"turn"`
}

func (e *GenerationCompleteEvent) EventType() string { return "generation.complete" }

// TurnCompleteEvent signals the turn is fully delivered. Transcript
// holds the accumulated output transcription for the turn, when
// transcription is enabled.
type TurnCompleteEvent struct {
	Turn       int    `json:"turn"`
	Transcript string `json:"transcript,omitempty"`
}

func (e *TurnCompleteEvent) EventType() string { return "turn.complete" }

// InterruptedEvent signals the turn was aborted by user activity.
// Consumers must flush any locally buffered audio for the turn.
type InterruptedEvent struct {
	Turn int `json:"turn"`
}

func (e *InterruptedEvent) EventType() string { return "turn.interrupted" }

// ActivityEvent reports an engine-detected activity boundary.
type ActivityEvent struct {
	Start bool `json:"start"`
}

func (e *ActivityEvent) EventType() string {
	if e.Start {
		return "activity.start"
	}
	return "activity.end"
}

// ToolCallEvent reports that a function call was dispatched.
type ToolCallEvent struct {
	Turn int    `json:"turn"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *ToolCallEvent) EventType() string { return "tool.call" }

// ToolResponsesSentEvent reports which call IDs were answered.
type ToolResponsesSentEvent struct {
	IDs []string `json:"ids"`
}

func (e *ToolResponsesSentEvent) EventType() string { return "tool.responses_sent" }

// ToolCallsCancelledEvent reports server-withdrawn call IDs.
type ToolCallsCancelledEvent struct {
	IDs []string `json:"ids"`
}

func (e *ToolCallsCancelledEvent) EventType() string { return "tool.calls_cancelled" }

// UsageEvent reports updated cumulative token usage.
type UsageEvent struct {
	Usage Usage `json:"usage"`
}

func (e *UsageEvent) EventType() string { return "usage.updated" }

// CompressionEvent signals context window compression activated.
type CompressionEvent struct {
	Compression Compression `json:"compression"`
}

func (e *CompressionEvent) EventType() string { return "compression.activated" }

// ResumptionUpdateEvent delivers a fresh resumption handle.
type ResumptionUpdateEvent struct {
	Handle    string `json:"handle"`
	Resumable bool   `json:"resumable"`
}

func (e *ResumptionUpdateEvent) EventType() string { return "resumption.updated" }

// GoAwayEvent warns that the server will close the connection.
type GoAwayEvent struct {
	TimeLeft time.Duration `json:"time_left"`
}

func (e *GoAwayEvent) EventType() string { return "session.goaway" }

// ErrorEvent surfaces a non-fatal session error.
type ErrorEvent struct {
	Err *Error `json:"error"`
}

func (e *ErrorEvent) EventType() string { return "session.error" }

// ClosedEvent is the last event on the channel. Err is nil for an
// orderly shutdown.
type ClosedEvent struct {
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

func (e *ClosedEvent) EventType() string { return "session.closed" }
