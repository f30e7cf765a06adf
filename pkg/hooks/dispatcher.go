// Package hooks implements the ordered interceptor chain evaluated at
// defined phases of event processing. Matchers are pure decision
// functions combined by a fold: pre-tool dispatch short-circuits on the
// first deny, annotate-only phases run every matcher.
package hooks

import (
	"github.com/XiaoConstantine/ace-go/pkg/core"
)

// Phase identifies when in event processing a matcher runs.
type Phase string

const (
	PreTool      Phase = "pre_tool"
	PostTool     Phase = "post_tool"
	SubagentStop Phase = "subagent_stop"
)

// PhaseFor maps an event kind to its dispatch phase. Kinds with no
// hook phase return false.
func PhaseFor(kind core.EventKind) (Phase, bool) {
	switch kind {
	case core.KindToolInvocation:
		return PreTool, true
	case core.KindToolResult:
		return PostTool, true
	case core.KindSubagentCompletion:
		return SubagentStop, true
	case core.KindAssistantText, core.KindSessionEnd, core.KindError:
		return "", false
	default:
		return "", false
	}
}

// Action is the outcome class of a matcher decision.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Decision is the result of evaluating one matcher, or of folding a
// whole chain.
type Decision struct {
	Action      Action
	Reason      string
	Annotations map[string]string
}

// Allow passes the event through unchanged.
func Allow() Decision {
	return Decision{Action: ActionAllow}
}

// Deny vetoes the event with a reason. Only meaningful at PreTool.
func Deny(reason string) Decision {
	return Decision{Action: ActionDeny, Reason: reason}
}

// Annotate allows the event and attaches metadata annotations.
func Annotate(annotations map[string]string) Decision {
	return Decision{Action: ActionAllow, Annotations: annotations}
}

// Matcher is a predicate plus handler registered for one phase.
// A nil Match runs the handler for every event of the phase.
type Matcher struct {
	Name   string
	Match  func(e core.Event) bool
	Handle func(e core.Event) Decision
}

// Dispatcher holds the per-phase matcher chains. Matchers run in
// registration order. The dispatcher only annotates events; it never
// mutates playbook state.
type Dispatcher struct {
	matchers map[Phase][]Matcher
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		matchers: make(map[Phase][]Matcher),
	}
}

// Register appends a matcher to the chain for a phase.
func (d *Dispatcher) Register(phase Phase, m Matcher) *Dispatcher {
	d.matchers[phase] = append(d.matchers[phase], m)
	return d
}

// Dispatch folds the phase's chain over the event. For PreTool the
// first deny wins: remaining matchers are skipped, and the veto is
// recorded on the event as metadata {decision: deny, reason}. For the
// annotate-only phases every matcher runs and later annotations win on
// key collision. Accumulated annotations are written to the event's
// metadata before it is appended to the trajectory.
func (d *Dispatcher) Dispatch(phase Phase, e *core.Event) Decision {
	folded := Decision{Action: ActionAllow, Annotations: make(map[string]string)}

	for _, m := range d.matchers[phase] {
		if m.Match != nil && !m.Match(*e) {
			continue
		}

		decision := m.Handle(*e)
		for k, v := range decision.Annotations {
			folded.Annotations[k] = v
		}

		if phase == PreTool && decision.Action == ActionDeny {
			folded.Action = ActionDeny
			folded.Reason = decision.Reason
			break
		}
	}

	for k, v := range folded.Annotations {
		e.SetMeta(k, v)
	}
	if folded.Action == ActionDeny {
		e.SetMeta("decision", "deny")
		e.SetMeta("reason", folded.Reason)
	}

	return folded
}
