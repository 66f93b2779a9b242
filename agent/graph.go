package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/memory"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/tool"
)

// Graph event kinds mirroring the two node types of the react loop.
const (
	EventAgent = "agent"
	EventTools = "tools"
)

// GraphEvent is one step of a graph run. Output carries the final assistant
// text when the step produced one; status-only steps leave it empty.
type GraphEvent struct {
	Kind   string
	Output string
}

// graph is the memoized react loop: build prompt, call the model, dispatch
// tool calls, repeat until the model answers in plain text or the recursion
// limit is hit. One graph instance serves all turns of an agent; per-turn
// state lives in the checkpoint.
type graph struct {
	llm            model.Model
	mgr            *memory.Manager
	tools          map[string]tool.Tool
	recursionLimit int
	logger         logging.Logger
}

func newGraph(llm model.Model, mgr *memory.Manager, tools map[string]tool.Tool, recursionLimit int, logger logging.Logger) *graph {
	return &graph{
		llm:            llm,
		mgr:            mgr,
		tools:          tools,
		recursionLimit: recursionLimit,
		logger:         logger,
	}
}

func (g *graph) toolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(g.tools))
	for _, t := range g.tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// run executes one turn against the given checkpoint handle. The prior
// transcript is loaded, the user prompt appended, and the finished turn
// written back. Each step is reported through emit before the next model
// call; emit returning an error aborts the run.
func (g *graph) run(ctx context.Context, handle core.CheckpointHandle, threadID, prompt string, emit func(ev GraphEvent) error) error {
	cp, err := handle.Get(ctx, threadID)
	if err != nil {
		return fmt.Errorf("%w: load transcript: %v", core.ErrCheckpoint, err)
	}
	if cp == nil {
		cp = core.NewCheckpoint(threadID)
	}

	transcript := append(append([]core.Message(nil), cp.Messages...), core.UserMessage(prompt))

	// Tool plumbing stays inside the turn; only finished text survives
	// into the checkpoint.
	working := toModelMessages(g.mgr.BuildPrompt(ctx, transcript))
	defs := g.toolDefinitions()

	for step := 0; step < g.recursionLimit; step++ {
		resp, err := g.llm.Generate(ctx, model.Request{Messages: working, Tools: defs})
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrModelCall, err)
		}

		if len(resp.ToolCalls) == 0 {
			if err := emit(GraphEvent{Kind: EventAgent, Output: resp.Content}); err != nil {
				return err
			}

			transcript = append(transcript, core.AssistantMessage(resp.Content))
			cp.Messages = transcript
			if err := handle.Put(ctx, cp); err != nil {
				return fmt.Errorf("%w: save transcript: %v", core.ErrCheckpoint, err)
			}
			return nil
		}

		if err := emit(GraphEvent{Kind: EventAgent}); err != nil {
			return err
		}

		working = append(working, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		working = append(working, g.dispatch(ctx, resp.ToolCalls)...)

		if err := emit(GraphEvent{Kind: EventTools}); err != nil {
			return err
		}
	}

	return fmt.Errorf("recursion limit of %d exceeded for thread %s", g.recursionLimit, threadID)
}

// dispatch executes the requested tool calls and returns their result
// messages. A failing tool answers its call with the error text so the
// model can react instead of the turn aborting.
func (g *graph) dispatch(ctx context.Context, calls []model.ToolCall) []model.Message {
	results := make([]model.Message, 0, len(calls))
	for _, call := range calls {
		results = append(results, model.Message{
			Role:       model.RoleTool,
			Content:    g.callTool(ctx, call),
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return results
}

func (g *graph) callTool(ctx context.Context, call model.ToolCall) string {
	t, ok := g.tools[call.Name]
	if !ok {
		g.logger.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("unknown tool: %s", call.Name)
	}

	args, err := parseToolArguments(call.Arguments)
	if err != nil {
		g.logger.Warn("tool arguments unparseable", "tool", call.Name, "error", err)
		return fmt.Sprintf("invalid arguments: %v", err)
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		g.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("tool failed: %v", err)
	}
	return fmt.Sprintf("%v", result)
}

// parseToolArguments decodes a tool call's JSON argument string. An empty
// string counts as no arguments.
func parseToolArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func toModelMessages(messages []core.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, model.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}
