package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/internal/util"
	"github.com/hupe1980/memorymesh/model"
)

// Extraction instructions per store type. The wording is load-bearing: it
// shapes what the model extracts, so it stays stable across releases.
const (
	episodicInstructions = "Extract examples of successful explanations, " +
		"capturing the full chain of reasoning. " +
		"Be concise in your explanations and precise in the " +
		"logic of your reasoning."

	userInstructions = "Extract user profile information"

	semanticInstructions = "Extract user preferences and any other useful information"
)

// JSON shapes the model is asked to emit, one per store type.
const (
	episodicSchema = `[{"observation": "string", "thoughts": "string", "action": "string", "result": "string"}]`
	userSchema     = `[{"name": "string", "summary": "string", "preferences": ["string"]}]`
	semanticSchema = `[{"subject": "string", "predicate": "string", "object": "string"}]`
)

func instructionsFor(t core.StoreType) string {
	switch t {
	case core.StoreTypeEpisodic:
		return episodicInstructions
	case core.StoreTypeUser:
		return userInstructions
	default:
		return semanticInstructions
	}
}

func schemaFor(t core.StoreType) string {
	switch t {
	case core.StoreTypeEpisodic:
		return episodicSchema
	case core.StoreTypeUser:
		return userSchema
	default:
		return semanticSchema
	}
}

// extract asks the model to pull memory items out of the transcript. Each
// extracted item gets a fresh ID and the manager's namespace stamped on.
func (m *Manager) extract(ctx context.Context, messages []core.Message) ([]core.MemoryItem, error) {
	instructions := fmt.Sprintf(
		"%s\n\nRespond with a JSON array matching this shape, and nothing else:\n%s\n\nReturn an empty array if there is nothing to extract.",
		instructionsFor(m.storeType), schemaFor(m.storeType))

	req := model.Request{
		Instructions: instructions,
		Messages:     toModelMessages(messages),
	}

	resp, err := m.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: extraction call: %v", core.ErrConsolidation, err)
	}

	items, err := m.parseItems(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConsolidation, err)
	}
	return items, nil
}

func (m *Manager) parseItems(content string) ([]core.MemoryItem, error) {
	raw, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newItem := func() core.MemoryItem {
		return core.MemoryItem{
			ID:        util.NewID(),
			Namespace: m.namespace,
			Kind:      m.storeType,
			CreatedAt: now,
		}
	}

	switch m.storeType {
	case core.StoreTypeEpisodic:
		var episodes []core.Episode
		if err := json.Unmarshal(raw, &episodes); err != nil {
			return nil, fmt.Errorf("parse episodes: %w", err)
		}
		items := make([]core.MemoryItem, 0, len(episodes))
		for i := range episodes {
			item := newItem()
			item.Episode = &episodes[i]
			items = append(items, item)
		}
		return items, nil

	case core.StoreTypeUser:
		var profiles []core.Profile
		if err := json.Unmarshal(raw, &profiles); err != nil {
			return nil, fmt.Errorf("parse profiles: %w", err)
		}
		items := make([]core.MemoryItem, 0, len(profiles))
		for i := range profiles {
			item := newItem()
			item.Profile = &profiles[i]
			items = append(items, item)
		}
		return items, nil

	default:
		var triples []core.Triple
		if err := json.Unmarshal(raw, &triples); err != nil {
			return nil, fmt.Errorf("parse triples: %w", err)
		}
		items := make([]core.MemoryItem, 0, len(triples))
		for i := range triples {
			item := newItem()
			item.Triple = &triples[i]
			items = append(items, item)
		}
		return items, nil
	}
}

// extractJSONArray pulls the first JSON array out of a model response,
// tolerating fenced code blocks and surrounding prose.
func extractJSONArray(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	if fenced, ok := stripCodeFence(s); ok {
		s = fenced
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in model response")
	}
	return []byte(s[start : end+1]), nil
}

func stripCodeFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i != -1 {
		// Drop the language tag line.
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s), true
}

func toModelMessages(messages []core.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, model.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}
