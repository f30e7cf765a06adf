// Package ace implements a dual-loop task engine that curates a durable
// playbook of reusable knowledge while tasks run.
//
// A primary session streams events from an external reasoning engine.
// When the escalation policy detects generalizable work, a nested skill
// session distills it; the resulting deltas are validated and merged
// into the versioned playbook, and a merge summary is injected back
// into the primary exchange before it resumes.
//
// Key Components:
//
//   - Core: the event model, the append-only Trajectory spanning both
//     loops, the SessionDriver streaming contract, and the isolated
//     SessionContext each driver is bound to.
//
//   - Hooks: the ordered matcher chains evaluated at pre-tool,
//     post-tool, and subagent-stop phases. A pre-tool deny vetoes the
//     invocation; annotate-only phases enrich event metadata.
//
//   - Extract: reduces a completed skill segment into a session summary
//     and derives candidate playbook deltas from it.
//
//   - Playbook: the versioned, append-only knowledge ledger with
//     per-delta validation, file and SQLite persistence, and prompt
//     context snapshots.
//
//   - Curator: the state machine driving primary sessions, depth-1
//     skill escalation, and merge-then-resume reconciliation.
//
//   - LLMs: session drivers, including the Anthropic streaming binding
//     and a scripted replay driver for tests.
//
// The ace binary under cmd/ace wires these together behind a small CLI.
package ace
