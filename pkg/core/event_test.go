package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventDerivesKindFromPayload(t *testing.T) {
	e := NewEvent("sess-1", LoopPrimary, AssistantTextPayload{Text: "hello"})

	assert.Equal(t, KindAssistantText, e.Kind)
	assert.Equal(t, "sess-1", e.SessionID)
	assert.Equal(t, LoopPrimary, e.LoopType)
	assert.False(t, e.Timestamp.IsZero())
}

func TestMetadataAccessors(t *testing.T) {
	e := NewEvent("sess-1", LoopSkill, SessionEndPayload{Success: true})

	_, ok := e.Meta("decision")
	assert.False(t, ok)

	e.SetMeta("decision", "deny")
	v, ok := e.Meta("decision")
	require.True(t, ok)
	assert.Equal(t, "deny", v)
}

func TestEventJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{"assistant text", AssistantTextPayload{Text: "a reusable pattern"}},
		{"tool invocation", ToolInvocationPayload{InvocationID: "inv-1", Tool: "Write", Input: map[string]any{"path": "runbook.md"}}},
		{"tool result", ToolResultPayload{InvocationID: "inv-1", Tool: "Write", Output: "ok", IsError: false}},
		{"subagent completion", SubagentCompletionPayload{AgentName: "skill-reflector"}},
		{"session end", SessionEndPayload{Success: true}},
		{"error", ErrorPayload{Message: "connection reset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := NewEvent("sess-1", LoopSkill, tt.payload)
			original.SetMeta("note", "x")

			data, err := json.Marshal(original)
			require.NoError(t, err)

			var restored Event
			require.NoError(t, json.Unmarshal(data, &restored))

			assert.Equal(t, original.Kind, restored.Kind)
			assert.Equal(t, original.SessionID, restored.SessionID)
			assert.Equal(t, original.LoopType, restored.LoopType)
			assert.Equal(t, original.Metadata, restored.Metadata)
			assert.Equal(t, original.Kind, restored.Payload.Kind())
		})
	}
}

func TestUnmarshalRejectsUnknownKind(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"kind":"mystery","payload":{}}`), &e)
	assert.Error(t, err)
}
