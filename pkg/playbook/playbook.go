// Package playbook maintains the durable, versioned, append-only ledger
// of accepted knowledge items produced by skill sessions.
package playbook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

// ItemType enumerates the accepted knowledge kinds.
type ItemType string

const (
	TypeSkill         ItemType = "skill"
	TypeConstraint    ItemType = "constraint"
	TypeReference     ItemType = "reference"
	TypeClarification ItemType = "clarification"
)

// DefaultTokenBudget is used when loading a playbook with no persisted
// budget and when constructing a fresh one without an explicit value.
const DefaultTokenBudget = 2000

// Item is one accepted knowledge entry. Items are never removed or
// mutated after acceptance.
type Item struct {
	ID             string            `json:"id"`
	Type           ItemType          `json:"type"`
	Name           string            `json:"name,omitempty"`
	Payload        string            `json:"payload"`
	Accepted       bool              `json:"accepted"`
	CreatedAt      time.Time         `json:"created_at"`
	VersionCreated int               `json:"version_created"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Delta is a candidate item proposed by the delta extractor. It becomes
// an Item only after passing structural validation.
type Delta struct {
	Type     ItemType          `json:"type" validate:"required,oneof=skill constraint reference clarification"`
	Name     string            `json:"name,omitempty"`
	Payload  string            `json:"payload" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Playbook is the versioned ledger plus its token budget. Version
// starts at 1 and increments by exactly 1 per merge batch, regardless
// of how many deltas the batch accepted.
type Playbook struct {
	Items       []Item    `json:"items"`
	Version     int       `json:"version"`
	TokenBudget int       `json:"token_budget"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New creates an empty playbook at version 1.
func New(tokenBudget int) *Playbook {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &Playbook{
		Items:       []Item{},
		Version:     1,
		TokenBudget: tokenBudget,
		UpdatedAt:   time.Now(),
	}
}

// SkillNames returns the set of accepted skill names.
func (p *Playbook) SkillNames() map[string]bool {
	names := make(map[string]bool)
	for _, item := range p.Items {
		if item.Type == TypeSkill && item.Name != "" {
			names[item.Name] = true
		}
	}
	return names
}

// ToContext snapshots the playbook for prompt injection.
func (p *Playbook) ToContext() core.KnowledgeContext {
	ctx := core.KnowledgeContext{Version: p.Version}
	for _, item := range p.Items {
		switch item.Type {
		case TypeSkill:
			if item.Name != "" {
				ctx.ExistingSkills = append(ctx.ExistingSkills, item.Name)
			}
		case TypeConstraint:
			ctx.Constraints = append(ctx.Constraints, item.Payload)
		case TypeReference:
			ctx.References = append(ctx.References, item.Payload)
		case TypeClarification:
			// Clarifications inform extraction, not prompt injection.
		}
	}
	return ctx
}

// EstimateTokens approximates the ledger's context cost at four
// characters per token.
func (p *Playbook) EstimateTokens() int {
	total := 0
	for _, item := range p.Items {
		total += len(item.Payload) / 4
	}
	return total
}

// ValidateAndMerge validates each delta independently and appends the
// accepted ones as Items sharing one batch timestamp. A rejected delta
// never aborts the batch and never touches Items. After the whole batch
// is processed the version increments by exactly 1, even when zero
// deltas were accepted.
func (p *Playbook) ValidateAndMerge(deltas []Delta) []Item {
	logger := logging.GetLogger()
	batchTime := time.Now()
	existingSkills := p.SkillNames()

	accepted := make([]Item, 0, len(deltas))
	for _, delta := range deltas {
		if err := validateDelta(delta, existingSkills); err != nil {
			logger.Warn(context.Background(), "rejected delta: %v", err)
			continue
		}

		item := Item{
			ID:             uuid.NewString(),
			Type:           delta.Type,
			Name:           delta.Name,
			Payload:        delta.Payload,
			Accepted:       true,
			CreatedAt:      batchTime,
			VersionCreated: p.Version,
			Metadata:       delta.Metadata,
		}
		p.Items = append(p.Items, item)
		accepted = append(accepted, item)

		if delta.Type == TypeSkill {
			existingSkills[delta.Name] = true
		}
	}

	p.Version++
	return accepted
}
