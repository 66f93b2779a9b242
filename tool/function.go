package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/memorymesh/internal/util"
)

// FunctionTool exposes a plain Go function as a Tool. Arguments are
// validated against the declared schema before the function runs, and any
// failure is normalized into a *ToolError so callers can branch on codes
// instead of error strings.
//
// A FunctionTool holds no mutable state after construction.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool builds a FunctionTool from a name, a description shown to
// the model, a JSON schema for the arguments and the implementation. The
// schema follows the usual object shape:
//
//	map[string]any{
//	  "type": "object",
//	  "properties": map[string]any{
//	    "query": map[string]any{"type": "string"},
//	  },
//	  "required": []string{"query"},
//	}
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Execute implements Tool. A schema mismatch yields CodeValidationError,
// a plain error from the function yields CodeExecutionError, and a
// *ToolError from the function passes through untouched.
func (t *FunctionTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidationError,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err == nil {
		return result, nil
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return nil, toolErr
	}
	return nil, NewToolError(t.name, err.Error(), CodeExecutionError)
}

var _ Tool = (*FunctionTool)(nil)
