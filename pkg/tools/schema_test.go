package tools

import (
	"encoding/json"
	"testing"

	"github.com/sonacove/livebridge/pkg/wire"
)

func TestValidateArgs(t *testing.T) {
	schema := &wire.Schema{
		Type: "object",
		Properties: map[string]*wire.Schema{
			"query": {Type: "string"},
			"limit": {Type: "integer"},
			"unit":  {Type: "string", Enum: []string{"ms", "s"}},
			"tags":  {Type: "array", Items: &wire.Schema{Type: "string"}},
			"exact": {Type: "boolean"},
		},
		Required: []string{"query"},
	}

	valid := []string{
		`{"query":"go"}`,
		`{"query":"go","limit":5,"unit":"ms","tags":["a","b"],"exact":true}`,
	}
	for _, raw := range valid {
		if err := ValidateArgs(schema, json.RawMessage(raw)); err != nil {
			t.Fatalf("ValidateArgs(%s) = %v", raw, err)
		}
	}

	invalid := []string{
		`{}`,
		`{"query":7}`,
		`{"query":"go","limit":1.5}`,
		`{"query":"go","unit":"h"}`,
		`{"query":"go","tags":["a",3]}`,
		`{"query":"go","exact":"yes"}`,
		`[1,2]`,
		`not json`,
	}
	for _, raw := range invalid {
		if err := ValidateArgs(schema, json.RawMessage(raw)); err == nil {
			t.Fatalf("ValidateArgs(%s) accepted invalid arguments", raw)
		}
	}
}

func TestValidateArgsUppercaseTypeNames(t *testing.T) {
	schema := &wire.Schema{
		Type: "OBJECT",
		Properties: map[string]*wire.Schema{
			"query": {Type: "STRING"},
			"limit": {Type: "INTEGER"},
			"exact": {Type: "BOOLEAN"},
		},
		Required: []string{"query"},
	}

	if err := ValidateArgs(schema, json.RawMessage(`{"query":"go","limit":5,"exact":true}`)); err != nil {
		t.Fatalf("uppercase schema rejected valid args: %v", err)
	}
	if err := ValidateArgs(schema, json.RawMessage(`{"query":7}`)); err == nil {
		t.Fatal("uppercase schema accepted invalid args")
	}
}

func TestValidateArgsNilSchemaAndEmptyArgs(t *testing.T) {
	if err := ValidateArgs(nil, json.RawMessage(`whatever`)); err != nil {
		t.Fatalf("nil schema rejected: %v", err)
	}
	if err := ValidateArgs(&wire.Schema{Type: "object"}, nil); err != nil {
		t.Fatalf("empty args rejected for object schema: %v", err)
	}
}
