package wire

import (
	"encoding/json"
	"fmt"
)

// DecodeError describes why a message was rejected. Code is a stable
// machine-readable identifier; Param names the offending field when
// one can be identified.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param %q)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badMessage(param, format string, args ...any) *DecodeError {
	return &DecodeError{
		Code:    "malformed_message",
		Message: fmt.Sprintf(format, args...),
		Param:   param,
	}
}

// DecodeClientMessage parses and validates one client frame.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, badMessage("", "invalid JSON: %v", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeClientMessage validates and serializes one client frame.
func EncodeClientMessage(msg *ClientMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Validate enforces the exactly-one-of union and per-variant rules.
func (m *ClientMessage) Validate() error {
	set := 0
	if m.Setup != nil {
		set++
	}
	if m.ClientContent != nil {
		set++
	}
	if m.RealtimeInput != nil {
		set++
	}
	if m.ToolResponse != nil {
		set++
	}
	if set == 0 {
		return badMessage("", "message has no payload")
	}
	if set > 1 {
		return badMessage("", "message has %d payloads, want exactly one", set)
	}
	switch {
	case m.Setup != nil:
		return m.Setup.validate()
	case m.ClientContent != nil:
		return m.ClientContent.validate()
	case m.RealtimeInput != nil:
		return m.RealtimeInput.validate()
	case m.ToolResponse != nil:
		return m.ToolResponse.validate()
	}
	return nil
}

func (s *Setup) validate() error {
	if s.Model == "" {
		return badMessage("setup.model", "model is required")
	}
	if gc := s.GenerationConfig; gc != nil && len(gc.ResponseModalities) > 0 {
		if len(gc.ResponseModalities) != 1 {
			return badMessage("setup.generationConfig.responseModalities",
				"exactly one response modality is required, got %d", len(gc.ResponseModalities))
		}
		switch gc.ResponseModalities[0] {
		case "TEXT", "AUDIO":
		default:
			return badMessage("setup.generationConfig.responseModalities",
				"unsupported modality %q", gc.ResponseModalities[0])
		}
	}
	if ric := s.RealtimeInputConfig; ric != nil {
		switch ric.ActivityHandling {
		case "", StartOfActivityInterrupts, NoInterruption:
		default:
			return badMessage("setup.realtimeInputConfig.activityHandling",
				"unsupported activity handling %q", ric.ActivityHandling)
		}
		switch ric.TurnCoverage {
		case "", TurnIncludesOnlyActivity, TurnIncludesAllInput:
		default:
			return badMessage("setup.realtimeInputConfig.turnCoverage",
				"unsupported turn coverage %q", ric.TurnCoverage)
		}
	}
	if cwc := s.ContextWindowCompression; cwc != nil {
		if cwc.TriggerTokens <= 0 {
			return badMessage("setup.contextWindowCompression.triggerTokens",
				"triggerTokens must be positive")
		}
		if cwc.SlidingWindow != nil && cwc.SlidingWindow.TargetTokens > cwc.TriggerTokens {
			return badMessage("setup.contextWindowCompression.slidingWindow.targetTokens",
				"targetTokens must not exceed triggerTokens")
		}
	}
	return nil
}

func (c *ClientContent) validate() error {
	if len(c.Turns) == 0 && !c.TurnComplete {
		return badMessage("clientContent", "empty client content")
	}
	for i, t := range c.Turns {
		if t.Role != "user" && t.Role != "model" {
			return badMessage(fmt.Sprintf("clientContent.turns[%d].role", i),
				"role must be user or model, got %q", t.Role)
		}
	}
	return nil
}

func (r *RealtimeInput) validate() error {
	set := 0
	if r.Audio != nil {
		set++
	}
	if r.Video != nil {
		set++
	}
	if r.Text != "" {
		set++
	}
	if r.ActivityStart != nil {
		set++
	}
	if r.ActivityEnd != nil {
		set++
	}
	if r.AudioStreamEnd {
		set++
	}
	if set == 0 {
		return badMessage("realtimeInput", "empty realtime input")
	}
	if set > 1 {
		return badMessage("realtimeInput", "realtime input has %d payloads, want exactly one", set)
	}
	if r.Audio != nil && r.Audio.MIMEType == "" {
		return badMessage("realtimeInput.audio.mimeType", "mimeType is required")
	}
	if r.Video != nil && r.Video.MIMEType == "" {
		return badMessage("realtimeInput.video.mimeType", "mimeType is required")
	}
	return nil
}

func (t *ToolResponse) validate() error {
	if len(t.FunctionResponses) == 0 {
		return badMessage("toolResponse.functionResponses", "at least one function response is required")
	}
	for i, fr := range t.FunctionResponses {
		if fr.ID == "" {
			return badMessage(fmt.Sprintf("toolResponse.functionResponses[%d].id", i),
				"id is required")
		}
	}
	return nil
}

// DecodeServerMessage parses and validates one server frame.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, badMessage("", "invalid JSON: %v", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeServerMessage validates and serializes one server frame.
func EncodeServerMessage(msg *ServerMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Validate enforces the exactly-one-variant rule. UsageMetadata does
// not count as a variant.
func (m *ServerMessage) Validate() error {
	set := 0
	if m.SetupComplete != nil {
		set++
	}
	if m.ServerContent != nil {
		set++
	}
	if m.ToolCall != nil {
		set++
	}
	if m.ToolCallCancellation != nil {
		set++
	}
	if m.GoAway != nil {
		set++
	}
	if m.SessionResumptionUpdate != nil {
		set++
	}
	if set == 0 {
		return badMessage("", "server message has no variant")
	}
	if set > 1 {
		return badMessage("", "server message has %d variants, want exactly one", set)
	}
	if m.ToolCall != nil {
		for i, fc := range m.ToolCall.FunctionCalls {
			if fc.ID == "" {
				return badMessage(fmt.Sprintf("toolCall.functionCalls[%d].id", i), "id is required")
			}
			if fc.Name == "" {
				return badMessage(fmt.Sprintf("toolCall.functionCalls[%d].name", i), "name is required")
			}
		}
	}
	if m.ToolCallCancellation != nil && len(m.ToolCallCancellation.IDs) == 0 {
		return badMessage("toolCallCancellation.ids", "at least one id is required")
	}
	return nil
}
