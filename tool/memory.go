package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/memory"
)

// NewMemorySearchTool exposes namespace-scoped similarity search to the
// model. Results are returned as a JSON list of rendered memories with
// scores.
func NewMemorySearchTool(mgr *memory.Manager) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural language query to search memories with",
			},
		},
		"required": []string{"query"},
	}

	return NewFunctionTool(
		"search_memory",
		"Search the agent's long-term memory for information relevant to a query",
		parameters,
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			results, err := mgr.RetrieveContext(ctx, []core.Message{core.UserMessage(query)})
			if err != nil {
				return nil, fmt.Errorf("search memory: %w", err)
			}

			type entry struct {
				Memory string  `json:"memory"`
				Score  float32 `json:"score"`
			}
			entries := make([]entry, 0, len(results))
			for _, r := range results {
				entries = append(entries, entry{Memory: r.Item.Text(), Score: r.Score})
			}

			payload, err := json.Marshal(entries)
			if err != nil {
				return nil, fmt.Errorf("encode results: %w", err)
			}
			return string(payload), nil
		},
	)
}

// NewMemoryManageTool lets the model write a memory directly into the
// agent's namespace, bypassing extraction. The item is stored under the
// manager's configured store type as plain content.
func NewMemoryManageTool(mgr *memory.Manager) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The memory content to store",
			},
		},
		"required": []string{"content"},
	}

	return NewFunctionTool(
		"manage_memory",
		"Store an important piece of information in the agent's long-term memory",
		parameters,
		func(ctx context.Context, args map[string]any) (any, error) {
			content, _ := args["content"].(string)

			item := core.MemoryItem{
				Kind:    mgr.StoreType(),
				Content: content,
			}
			if err := mgr.Store(ctx, []core.MemoryItem{item}); err != nil {
				return nil, fmt.Errorf("store memory: %w", err)
			}
			return "memory stored", nil
		},
	)
}
