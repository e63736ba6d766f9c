package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sonacove/livebridge/pkg/wire"
)

// ValidateArgs checks a raw argument object against a declared
// parameter schema. A nil schema accepts anything.
func ValidateArgs(schema *wire.Schema, args json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var value any
	if len(args) == 0 {
		value = map[string]any{}
	} else if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return validateValue(schema, value, "$")
}

func validateValue(schema *wire.Schema, value any, path string) error {
	// Declarations use uppercase type names (OBJECT, STRING), plain
	// JSON Schema uses lowercase. Accept both.
	switch strings.ToLower(schema.Type) {
	case "", "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %s", path, jsonTypeName(value))
		}
		for _, req := range schema.Required {
			if _, present := obj[req]; !present {
				return fmt.Errorf("%s: missing required property %q", path, req)
			}
		}
		for name, prop := range schema.Properties {
			v, present := obj[name]
			if !present {
				continue
			}
			if err := validateValue(prop, v, path+"."+name); err != nil {
				return err
			}
		}
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %s", path, jsonTypeName(value))
		}
		if len(schema.Enum) > 0 && !containsString(schema.Enum, s) {
			return fmt.Errorf("%s: value %q is not one of the allowed values", path, s)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %s", path, jsonTypeName(value))
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("%s: expected integer, got %s", path, jsonTypeName(value))
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %s", path, jsonTypeName(value))
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %s", path, jsonTypeName(value))
		}
		if schema.Items != nil {
			for i, item := range arr {
				if err := validateValue(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	default:
		return fmt.Errorf("%s: unsupported schema type %q", path, schema.Type)
	}
	return nil
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
