package curator

import (
	"fmt"
	"strings"

	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

// DefaultKeywords are the lexical generalization markers that trigger
// escalation when they appear in assistant text.
var DefaultKeywords = []string{"reusable", "pattern", "skill", "generalize", "template"}

// DefaultRepeatThreshold is how many identical consecutive tool
// invocations indicate the session is stuck in a loop worth distilling.
const DefaultRepeatThreshold = 3

// EscalationPolicy decides when a primary session should spawn a nested
// skill session. It is a pure function of the recent event window and
// the playbook; evaluating it never mutates either.
type EscalationPolicy struct {
	Keywords        []string
	RepeatThreshold int
}

// NewEscalationPolicy creates a policy with the default keyword set and
// repeat threshold.
func NewEscalationPolicy() *EscalationPolicy {
	return &EscalationPolicy{
		Keywords:        DefaultKeywords,
		RepeatThreshold: DefaultRepeatThreshold,
	}
}

// ShouldEscalate reports whether the recent window warrants a skill
// session. Three triggers exist: a generalization keyword in the latest
// assistant text, an estimated context cost at or over the playbook's
// token budget, and a run of identical consecutive tool invocations.
// The result is a single escalation even when several triggers fire on
// the same event.
func (p *EscalationPolicy) ShouldEscalate(recent []core.Event, pb *playbook.Playbook) bool {
	if len(recent) == 0 || pb == nil {
		return false
	}

	return p.keywordTrigger(recent) ||
		p.budgetTrigger(recent, pb) ||
		p.repetitionTrigger(recent)
}

func (p *EscalationPolicy) keywordTrigger(recent []core.Event) bool {
	last := recent[len(recent)-1]
	text, ok := last.Payload.(core.AssistantTextPayload)
	if !ok {
		return false
	}

	lowered := strings.ToLower(text.Text)
	for _, keyword := range p.Keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// budgetTrigger fires on the cost of not-yet-merged work only. The
// merged ledger never counts: once accepted, its cost is already paid,
// and counting it would make every event escalate once the ledger
// fills.
func (p *EscalationPolicy) budgetTrigger(recent []core.Event, pb *playbook.Playbook) bool {
	pending := EstimatePendingTokens(recent)
	return pending > 0 && pending >= pb.TokenBudget
}

func (p *EscalationPolicy) repetitionTrigger(recent []core.Event) bool {
	threshold := p.RepeatThreshold
	if threshold <= 0 {
		threshold = DefaultRepeatThreshold
	}

	run := 0
	var previous string
	for _, e := range recent {
		inv, ok := e.Payload.(core.ToolInvocationPayload)
		if !ok {
			continue
		}

		fingerprint := inv.Tool + "\x00" + fmt.Sprintf("%v", inv.Input)
		if fingerprint == previous {
			run++
		} else {
			previous = fingerprint
			run = 1
		}
		if run >= threshold {
			return true
		}
	}
	return false
}

// EstimatePendingTokens approximates the context cost of the recent
// window at four characters per token, counting the textual bodies of
// each event.
func EstimatePendingTokens(recent []core.Event) int {
	chars := 0
	for _, e := range recent {
		switch p := e.Payload.(type) {
		case core.AssistantTextPayload:
			chars += len(p.Text)
		case core.ToolInvocationPayload:
			chars += len(fmt.Sprintf("%v", p.Input))
		case core.ToolResultPayload:
			chars += len(p.Output)
		case core.SubagentCompletionPayload, core.SessionEndPayload, core.ErrorPayload:
		}
	}
	return chars / 4
}
