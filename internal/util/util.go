// Package util holds small helpers shared across the runtime.
package util

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for memory items, tasks and
// documents.
func NewID() string { return uuid.NewString() }

// ValidationError names the argument field that failed validation and why.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Message)
}

// ValidateParameters validates parameters against a minimal JSON-Schema-like
// map (type, properties, required). Extra fields are allowed.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, fieldName := range requiredFields(schema) {
		if _, exists := params[fieldName]; !exists {
			return &ValidationError{Field: fieldName, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propMap, ok := properties[fieldName].(map[string]any)
		if !ok {
			continue
		}
		expectedType, _ := propMap["type"].(string)
		if expectedType != "" && !isValidType(value, expectedType) {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}
	}
	return nil
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

// typeCheck maps JSON schema type names onto Go-side predicates. JSON
// numbers decode as float64, so "integer" accepts float64 as well.
var typeCheck = map[string]func(any) bool{
	"string": func(v any) bool {
		_, ok := v.(string)
		return ok
	},
	"number": func(v any) bool {
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	},
	"integer": func(v any) bool {
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	},
	"boolean": func(v any) bool {
		_, ok := v.(bool)
		return ok
	},
	"array": func(v any) bool {
		_, ok := v.([]any)
		return ok
	},
	"object": func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	},
}

func isValidType(value any, expectedType string) bool {
	check, ok := typeCheck[expectedType]
	if !ok {
		return true
	}
	return check(value)
}
