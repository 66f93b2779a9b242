// Package tool implements the function calling subsystem that lets the
// agent invoke structured capabilities with schema validated arguments. The
// built-in tools expose memory search and memory writes to the model, both
// bound to the agent's namespace.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/memorymesh/internal/util"
)

// Error codes categorizing tool failures. Functions may return a *ToolError
// carrying their own code; it is forwarded unchanged.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// Tool is a callable capability exposed to the model. The name and
// description guide tool selection; the parameter schema drives both the
// function call declaration and argument validation.
//
// Implementations must be safe for concurrent use, as one tool instance
// serves every turn of an agent.
type Tool interface {
	// Name returns the unique tool identifier, snake_case by convention.
	Name() string

	// Description returns the natural language summary shown to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Execute runs the tool with already-parsed arguments. Arguments are
	// validated against the tool's schema before execution.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError reports a schema mismatch in tool arguments.
type ValidationError = util.ValidationError

// ToolError is the uniform failure shape of tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
}

// NewToolError builds a ToolError without details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
