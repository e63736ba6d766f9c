package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeClientMessageVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want func(*ClientMessage) bool
	}{
		{
			name: "setup",
			raw:  `{"setup":{"model":"models/gemini-live","generationConfig":{"responseModalities":["AUDIO"]}}}`,
			want: func(m *ClientMessage) bool { return m.Setup != nil && m.Setup.Model == "models/gemini-live" },
		},
		{
			name: "clientContent",
			raw:  `{"clientContent":{"turns":[{"role":"user","parts":[{"text":"hi"}]}],"turnComplete":true}}`,
			want: func(m *ClientMessage) bool {
				return m.ClientContent != nil && m.ClientContent.TurnComplete &&
					m.ClientContent.Turns[0].Parts[0].Text == "hi"
			},
		},
		{
			name: "realtimeInput audio",
			raw:  `{"realtimeInput":{"audio":{"mimeType":"audio/pcm;rate=16000","data":"AAAA"}}}`,
			want: func(m *ClientMessage) bool {
				return m.RealtimeInput != nil && m.RealtimeInput.Audio != nil &&
					m.RealtimeInput.Audio.MIMEType == "audio/pcm;rate=16000"
			},
		},
		{
			name: "realtimeInput activityStart",
			raw:  `{"realtimeInput":{"activityStart":{}}}`,
			want: func(m *ClientMessage) bool {
				return m.RealtimeInput != nil && m.RealtimeInput.ActivityStart != nil
			},
		},
		{
			name: "realtimeInput audioStreamEnd",
			raw:  `{"realtimeInput":{"audioStreamEnd":true}}`,
			want: func(m *ClientMessage) bool {
				return m.RealtimeInput != nil && m.RealtimeInput.AudioStreamEnd
			},
		},
		{
			name: "toolResponse",
			raw:  `{"toolResponse":{"functionResponses":[{"id":"fc-1","name":"get_time","response":{"result":"noon"}}]}}`,
			want: func(m *ClientMessage) bool {
				return m.ToolResponse != nil && m.ToolResponse.FunctionResponses[0].ID == "fc-1"
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !tc.want(msg) {
				t.Fatalf("decoded message does not match: %+v", msg)
			}
		})
	}
}

func TestDecodeClientMessageRejects(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		param string
	}{
		{"invalid json", `{`, ""},
		{"no payload", `{}`, ""},
		{"two payloads", `{"setup":{"model":"m"},"clientContent":{"turnComplete":true}}`, ""},
		{"setup without model", `{"setup":{}}`, "setup.model"},
		{"two modalities", `{"setup":{"model":"m","generationConfig":{"responseModalities":["TEXT","AUDIO"]}}}`,
			"setup.generationConfig.responseModalities"},
		{"bad modality", `{"setup":{"model":"m","generationConfig":{"responseModalities":["VIDEO"]}}}`,
			"setup.generationConfig.responseModalities"},
		{"bad role", `{"clientContent":{"turns":[{"role":"system"}]}}`, "clientContent.turns[0].role"},
		{"empty realtime input", `{"realtimeInput":{}}`, "realtimeInput"},
		{"two realtime payloads", `{"realtimeInput":{"text":"hi","audioStreamEnd":true}}`, "realtimeInput"},
		{"audio without mime", `{"realtimeInput":{"audio":{"mimeType":"","data":"AAAA"}}}`, "realtimeInput.audio.mimeType"},
		{"tool response without id", `{"toolResponse":{"functionResponses":[{"id":""}]}}`,
			"toolResponse.functionResponses[0].id"},
		{"empty tool response", `{"toolResponse":{}}`, "toolResponse.functionResponses"},
		{"compression zero trigger", `{"setup":{"model":"m","contextWindowCompression":{"triggerTokens":0}}}`,
			"setup.contextWindowCompression.triggerTokens"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected decode error")
			}
			de, ok := err.(*DecodeError)
			if !ok {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if de.Code != "malformed_message" {
				t.Fatalf("code = %q, want malformed_message", de.Code)
			}
			if de.Param != tc.param {
				t.Fatalf("param = %q, want %q", de.Param, tc.param)
			}
		})
	}
}

func TestDecodeServerMessageVariants(t *testing.T) {
	raw := `{"serverContent":{"modelTurn":{"role":"model","parts":[{"text":"hello"}]},` +
		`"turnComplete":true},"usageMetadata":{"promptTokenCount":10,"totalTokenCount":42}}`
	msg, err := DecodeServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ServerContent == nil || !msg.ServerContent.TurnComplete {
		t.Fatalf("server content missing: %+v", msg)
	}
	if msg.UsageMetadata == nil || msg.UsageMetadata.TotalTokenCount != 42 {
		t.Fatalf("usage metadata missing: %+v", msg.UsageMetadata)
	}

	raw = `{"toolCall":{"functionCalls":[{"id":"fc-1","name":"lookup","args":{"q":"go"}}]}}`
	msg, err = DecodeServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ToolCall == nil || msg.ToolCall.FunctionCalls[0].Name != "lookup" {
		t.Fatalf("tool call missing: %+v", msg)
	}

	raw = `{"goAway":{"timeLeft":5000}}`
	msg, err = DecodeServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.GoAway == nil || msg.GoAway.TimeLeftMs != 5000 {
		t.Fatalf("goAway missing: %+v", msg)
	}
}

func TestDecodeServerMessageRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no variant", `{}`},
		{"usage only", `{"usageMetadata":{"totalTokenCount":1}}`},
		{"two variants", `{"setupComplete":{},"goAway":{"timeLeft":1}}`},
		{"call without id", `{"toolCall":{"functionCalls":[{"id":"","name":"x"}]}}`},
		{"call without name", `{"toolCall":{"functionCalls":[{"id":"fc-1","name":""}]}}`},
		{"empty cancellation", `{"toolCallCancellation":{"ids":[]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeServerMessage([]byte(tc.raw)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestEncodeClientMessageOmitsEmpty(t *testing.T) {
	data, err := EncodeClientMessage(&ClientMessage{
		RealtimeInput: &RealtimeInput{
			Audio: &Blob{MIMEType: "audio/pcm;rate=16000", Data: []byte{0, 0}},
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(data)
	for _, absent := range []string{"setup", "clientContent", "toolResponse", "activityStart"} {
		if strings.Contains(s, absent) {
			t.Fatalf("encoded frame contains %q: %s", absent, s)
		}
	}
	if !strings.Contains(s, `"mimeType":"audio/pcm;rate=16000"`) {
		t.Fatalf("mime descriptor missing: %s", s)
	}
}

func TestEncodeRejectsInvalidUnion(t *testing.T) {
	_, err := EncodeClientMessage(&ClientMessage{})
	if err == nil {
		t.Fatal("expected error for empty message")
	}
	_, err = EncodeClientMessage(&ClientMessage{
		Setup:        &Setup{Model: "m"},
		ToolResponse: &ToolResponse{FunctionResponses: []FunctionResponse{{ID: "fc-1"}}},
	})
	if err == nil {
		t.Fatal("expected error for double payload")
	}
	_, err = EncodeServerMessage(&ServerMessage{UsageMetadata: &UsageMetadata{TotalTokenCount: 1}})
	if err == nil {
		t.Fatal("expected error for usage-only server message")
	}
}

func TestClientMessageRoundTrip(t *testing.T) {
	orig := &ClientMessage{
		Setup: &Setup{
			Model:            "models/gemini-live",
			GenerationConfig: &GenerationConfig{ResponseModalities: []string{"TEXT"}},
			Tools: []Tool{{FunctionDeclarations: []FunctionDeclaration{{
				Name: "get_time",
				Parameters: &Schema{
					Type:       "object",
					Properties: map[string]*Schema{"zone": {Type: "string"}},
					Required:   []string{"zone"},
				},
			}}}},
			SessionResumption: &SessionResumption{Handle: "h-1"},
			ContextWindowCompression: &ContextWindowCompression{
				TriggerTokens: 1000,
				SlidingWindow: &SlidingWindow{TargetTokens: 500},
			},
		},
	}
	data, err := EncodeClientMessage(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeClientMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b1, _ := json.Marshal(orig)
	b2, _ := json.Marshal(back)
	if string(b1) != string(b2) {
		t.Fatalf("round trip mismatch:\n%s\n%s", b1, b2)
	}
}
