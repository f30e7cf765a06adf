// Package extract reduces a completed skill session's event segment
// into structured proposed knowledge deltas.
package extract

import (
	"fmt"
	"time"
)

// ToolCallSummary is the digest of one tool invocation within a skill
// session. Input and output are truncated for context economy.
type ToolCallSummary struct {
	Tool          string
	InputSummary  string
	OutputSummary string
	Success       bool
	Duration      time.Duration
}

// SkillSessionSummary is an ephemeral aggregate over one skill segment.
// It is built once after the segment's SessionEnd, consumed by the
// delta derivation, then discarded.
type SkillSessionSummary struct {
	Clarifications  []string
	References      []string
	ToolCalls       []ToolCallSummary
	RunbookSnippets []string
	ReflectionNotes []string
	Duration        time.Duration
	Success         bool
}

// Brief returns a concise textual summary for logging and prompts.
func (s SkillSessionSummary) Brief() string {
	status := "success"
	if !s.Success {
		status = "incomplete"
	}
	return fmt.Sprintf("skill session: %d tools, %d snippets, %s",
		len(s.ToolCalls), len(s.RunbookSnippets), status)
}
