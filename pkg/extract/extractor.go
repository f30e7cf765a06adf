package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/hooks"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

const summaryLimit = 100

// Extractor turns skill-session event segments into summaries and
// proposed deltas. ArtifactTool names the "write artifact" tool whose
// payloads become runbook snippets.
type Extractor struct {
	ArtifactTool string
}

// NewExtractor creates an extractor with the default artifact tool.
func NewExtractor() *Extractor {
	return &Extractor{ArtifactTool: "Write"}
}

// Summarize aggregates one skill segment into a SkillSessionSummary.
// Invocations and results are paired by invocation id; an invocation
// with no matching result before SessionEnd keeps success=false and an
// empty output. Assistant fragments containing a question mark are
// classified as clarifications; this is a documented heuristic, not
// semantic parsing, and misfires on literal question marks in code or
// URLs.
func (x *Extractor) Summarize(events []core.Event) SkillSessionSummary {
	summary := SkillSessionSummary{}

	var first, last time.Time
	// Invocation id to index into summary.ToolCalls.
	open := make(map[string]int)
	started := make(map[string]time.Time)
	// Artifact content is staged at invocation time but only becomes a
	// snippet once a successful result confirms the write ran.
	pendingSnippets := make(map[string]string)

	for _, e := range events {
		if !e.Timestamp.IsZero() {
			if first.IsZero() {
				first = e.Timestamp
			}
			last = e.Timestamp
		}

		switch p := e.Payload.(type) {
		case core.AssistantTextPayload:
			summary.Clarifications = append(summary.Clarifications, splitClarifications(p.Text)...)
			summary.References = append(summary.References, extractReferences(p.Text)...)

		case core.ToolInvocationPayload:
			call := ToolCallSummary{
				Tool:         p.Tool,
				InputSummary: truncate(fmt.Sprintf("%v", p.Input), summaryLimit),
			}
			summary.ToolCalls = append(summary.ToolCalls, call)
			open[p.InvocationID] = len(summary.ToolCalls) - 1
			started[p.InvocationID] = e.Timestamp

			if p.Tool == x.ArtifactTool {
				if content, ok := p.Input["content"].(string); ok && content != "" {
					pendingSnippets[p.InvocationID] = content
				}
			}

		case core.ToolResultPayload:
			if idx, ok := open[p.InvocationID]; ok {
				call := &summary.ToolCalls[idx]
				call.OutputSummary = truncate(p.Output, summaryLimit)
				call.Success = !p.IsError
				if startedAt, ok := started[p.InvocationID]; ok && !startedAt.IsZero() {
					call.Duration = e.Timestamp.Sub(startedAt)
				}
				delete(open, p.InvocationID)
			}
			if content, ok := pendingSnippets[p.InvocationID]; ok && !p.IsError {
				summary.RunbookSnippets = append(summary.RunbookSnippets, content)
				delete(pendingSnippets, p.InvocationID)
			}

		case core.SubagentCompletionPayload:
			// Completion details live in hook annotations below.

		case core.SessionEndPayload:
			summary.Success = p.Success

		case core.ErrorPayload:
			// A transport failure ends the segment unsuccessfully.
			summary.Success = false
		}

		for key, value := range e.Metadata {
			if hooks.IsReflectionKey(key) {
				summary.ReflectionNotes = append(summary.ReflectionNotes, value)
			}
		}
	}

	if !first.IsZero() && !last.IsZero() && len(events) >= 2 {
		summary.Duration = last.Sub(first)
	}

	return summary
}

// ToDeltas derives proposed playbook deltas from a summary. Skill names
// are generated as skill_{version}_{index}, unique within one batch.
// Reflection notes that read like guardrails become constraint deltas.
func (x *Extractor) ToDeltas(summary SkillSessionSummary, version int) []playbook.Delta {
	var deltas []playbook.Delta

	for _, clarification := range summary.Clarifications {
		deltas = append(deltas, playbook.Delta{
			Type:    playbook.TypeClarification,
			Payload: clarification,
		})
	}

	for _, reference := range summary.References {
		deltas = append(deltas, playbook.Delta{
			Type:    playbook.TypeReference,
			Payload: reference,
		})
	}

	for index, snippet := range summary.RunbookSnippets {
		deltas = append(deltas, playbook.Delta{
			Type:    playbook.TypeSkill,
			Name:    fmt.Sprintf("skill_%d_%d", version, index),
			Payload: snippet,
			Metadata: map[string]string{
				"tool_calls":      fmt.Sprintf("%d", len(summary.ToolCalls)),
				"duration":        summary.Duration.String(),
				"session_success": fmt.Sprintf("%t", summary.Success),
			},
		})
	}

	for _, note := range summary.ReflectionNotes {
		lowered := strings.ToLower(note)
		if strings.Contains(lowered, "limit") || strings.Contains(lowered, "avoid") || strings.Contains(lowered, "prevent") {
			deltas = append(deltas, playbook.Delta{
				Type:    playbook.TypeConstraint,
				Payload: note,
			})
		}
	}

	return deltas
}

// splitClarifications returns the question fragments of a text, one per
// question mark.
func splitClarifications(text string) []string {
	if !strings.Contains(text, "?") {
		return nil
	}

	var out []string
	for _, segment := range strings.Split(text, "?") {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			out = append(out, segment+"?")
		}
	}
	// The trailing fragment after the last question mark is not a
	// question.
	if !strings.HasSuffix(strings.TrimSpace(text), "?") && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}

// extractReferences pulls URL-shaped tokens out of assistant text.
func extractReferences(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, ".,;:()[]")
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			out = append(out, field)
		}
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune, so the
// summary stays valid UTF-8 in metadata and JSONL export.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
