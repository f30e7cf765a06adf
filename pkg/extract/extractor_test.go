package extract

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/hooks"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

func skillEvent(payload core.Payload, at time.Time) core.Event {
	e := core.NewEvent("skill-1", core.LoopSkill, payload)
	e.Timestamp = at
	return e
}

func TestSummarizePairsInvocationsWithResults(t *testing.T) {
	base := time.Now()
	events := []core.Event{
		skillEvent(core.ToolInvocationPayload{InvocationID: "inv-1", Tool: "Read", Input: map[string]any{"path": "a.md"}}, base),
		skillEvent(core.ToolResultPayload{InvocationID: "inv-1", Tool: "Read", Output: "contents"}, base.Add(time.Second)),
		skillEvent(core.ToolInvocationPayload{InvocationID: "inv-2", Tool: "Bash", Input: map[string]any{"command": "ls"}}, base.Add(2*time.Second)),
		skillEvent(core.SessionEndPayload{Success: true}, base.Add(3*time.Second)),
	}

	summary := NewExtractor().Summarize(events)

	require.Len(t, summary.ToolCalls, 2)
	assert.True(t, summary.ToolCalls[0].Success)
	assert.Equal(t, "contents", summary.ToolCalls[0].OutputSummary)
	assert.Equal(t, time.Second, summary.ToolCalls[0].Duration)

	// inv-2 never got a result before SessionEnd.
	assert.False(t, summary.ToolCalls[1].Success)
	assert.Empty(t, summary.ToolCalls[1].OutputSummary)

	assert.True(t, summary.Success)
	assert.Equal(t, 3*time.Second, summary.Duration)
}

func TestSummarizeClarificationHeuristic(t *testing.T) {
	events := []core.Event{
		skillEvent(core.AssistantTextPayload{Text: "Should I retry on 429? I will assume yes."}, time.Now()),
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	}

	summary := NewExtractor().Summarize(events)
	require.Len(t, summary.Clarifications, 1)
	assert.Equal(t, "Should I retry on 429?", summary.Clarifications[0])
}

func TestSummarizeCollectsReferences(t *testing.T) {
	events := []core.Event{
		skillEvent(core.AssistantTextPayload{Text: "Documented at https://example.com/runbook."}, time.Now()),
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	}

	summary := NewExtractor().Summarize(events)
	assert.Equal(t, []string{"https://example.com/runbook"}, summary.References)
}

func TestSummarizeArtifactToolProducesSnippets(t *testing.T) {
	events := []core.Event{
		skillEvent(core.ToolInvocationPayload{
			InvocationID: "inv-1",
			Tool:         "Write",
			Input:        map[string]any{"path": "runbook.md", "content": "step one\nstep two"},
		}, time.Now()),
		skillEvent(core.ToolResultPayload{InvocationID: "inv-1", Tool: "Write", Output: "written"}, time.Now()),
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	}

	summary := NewExtractor().Summarize(events)
	require.Len(t, summary.RunbookSnippets, 1)
	assert.Equal(t, "step one\nstep two", summary.RunbookSnippets[0])
}

func TestSummarizeUnconfirmedArtifactWriteYieldsNoSnippet(t *testing.T) {
	events := []core.Event{
		skillEvent(core.ToolInvocationPayload{
			InvocationID: "inv-1",
			Tool:         "Write",
			Input:        map[string]any{"path": "/etc/passwd", "content": "oops"},
		}, time.Now()),
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	}

	summary := NewExtractor().Summarize(events)
	assert.Empty(t, summary.RunbookSnippets)
}

func TestSummarizeReflectionAnnotations(t *testing.T) {
	e := skillEvent(core.ToolResultPayload{InvocationID: "inv-1", Tool: "Bash", Output: "boom", IsError: true}, time.Now())
	e.SetMeta(hooks.ReflectionKey("Bash"), "avoid rerunning the failed Bash call")

	summary := NewExtractor().Summarize([]core.Event{e, skillEvent(core.SessionEndPayload{Success: true}, time.Now())})
	require.Len(t, summary.ReflectionNotes, 1)
	assert.Contains(t, summary.ReflectionNotes[0], "avoid")
}

func TestSummarizeDurationZeroForSingleEvent(t *testing.T) {
	summary := NewExtractor().Summarize([]core.Event{
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	})
	assert.Equal(t, time.Duration(0), summary.Duration)
}

func TestSummarizeErrorEventMarksFailure(t *testing.T) {
	base := time.Now()
	summary := NewExtractor().Summarize([]core.Event{
		skillEvent(core.AssistantTextPayload{Text: "working"}, base),
		skillEvent(core.ErrorPayload{Message: "connection reset"}, base.Add(time.Second)),
	})
	assert.False(t, summary.Success)
}

func TestTruncationLimits(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	events := []core.Event{
		skillEvent(core.ToolInvocationPayload{InvocationID: "inv-1", Tool: "Read", Input: map[string]any{"blob": string(long)}}, time.Now()),
		skillEvent(core.ToolResultPayload{InvocationID: "inv-1", Tool: "Read", Output: string(long)}, time.Now()),
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	}

	summary := NewExtractor().Summarize(events)
	require.Len(t, summary.ToolCalls, 1)
	assert.LessOrEqual(t, len(summary.ToolCalls[0].InputSummary), 100)
	assert.LessOrEqual(t, len(summary.ToolCalls[0].OutputSummary), 100)
}

func TestTruncationKeepsRuneBoundaries(t *testing.T) {
	// 3-byte runes that do not divide evenly into the 100-byte limit.
	long := strings.Repeat("日", 60)

	events := []core.Event{
		skillEvent(core.ToolInvocationPayload{InvocationID: "inv-1", Tool: "Read", Input: map[string]any{"blob": long}}, time.Now()),
		skillEvent(core.ToolResultPayload{InvocationID: "inv-1", Tool: "Read", Output: long}, time.Now()),
		skillEvent(core.SessionEndPayload{Success: true}, time.Now()),
	}

	summary := NewExtractor().Summarize(events)
	require.Len(t, summary.ToolCalls, 1)
	assert.True(t, utf8.ValidString(summary.ToolCalls[0].InputSummary))
	assert.True(t, utf8.ValidString(summary.ToolCalls[0].OutputSummary))
	assert.LessOrEqual(t, len(summary.ToolCalls[0].OutputSummary), 100)
}

func TestToDeltas(t *testing.T) {
	summary := SkillSessionSummary{
		Clarifications:  []string{"Should deploys pause on weekends?"},
		References:      []string{"https://example.com/doc"},
		RunbookSnippets: []string{"snippet one", "snippet two"},
		ReflectionNotes: []string{"avoid writing outside the workspace", "everything went fine"},
		Duration:        2 * time.Second,
		Success:         true,
	}

	deltas := NewExtractor().ToDeltas(summary, 3)

	var skills, constraints, references, clarifications []playbook.Delta
	for _, d := range deltas {
		switch d.Type {
		case playbook.TypeSkill:
			skills = append(skills, d)
		case playbook.TypeConstraint:
			constraints = append(constraints, d)
		case playbook.TypeReference:
			references = append(references, d)
		case playbook.TypeClarification:
			clarifications = append(clarifications, d)
		}
	}

	require.Len(t, skills, 2)
	assert.Equal(t, "skill_3_0", skills[0].Name)
	assert.Equal(t, "skill_3_1", skills[1].Name)
	assert.Equal(t, "true", skills[0].Metadata["session_success"])

	require.Len(t, constraints, 1)
	assert.Contains(t, constraints[0].Payload, "avoid")

	assert.Len(t, references, 1)
	assert.Len(t, clarifications, 1)
}

func TestBrief(t *testing.T) {
	summary := SkillSessionSummary{
		ToolCalls:       []ToolCallSummary{{Tool: "Read"}},
		RunbookSnippets: []string{"s"},
		Success:         false,
	}
	assert.Equal(t, "skill session: 1 tools, 1 snippets, incomplete", summary.Brief())
}
