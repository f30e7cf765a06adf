package playbook

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlaybookDefaults(t *testing.T) {
	p := New(0)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, DefaultTokenBudget, p.TokenBudget)
	assert.Empty(t, p.Items)
}

func TestValidateAndMergeAcceptsBatch(t *testing.T) {
	p := New(2000)

	accepted := p.ValidateAndMerge([]Delta{
		{Type: TypeSkill, Name: "skill_1_0", Payload: "runbook one"},
		{Type: TypeSkill, Name: "skill_1_1", Payload: "runbook two"},
		{Type: TypeClarification, Payload: "Which region should deploys target"},
	})

	require.Len(t, accepted, 3)
	assert.Equal(t, 2, p.Version)
	assert.Len(t, p.Items, 3)

	for _, item := range accepted {
		assert.True(t, item.Accepted)
		assert.Equal(t, 1, item.VersionCreated)
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, accepted[0].CreatedAt, item.CreatedAt)
	}
}

func TestVersionIncrementsOnEmptyBatch(t *testing.T) {
	p := New(2000)
	accepted := p.ValidateAndMerge(nil)

	assert.Empty(t, accepted)
	assert.Equal(t, 2, p.Version)
	assert.Empty(t, p.Items)
}

func TestRejectedDeltaDoesNotAbortBatch(t *testing.T) {
	p := New(2000)

	accepted := p.ValidateAndMerge([]Delta{
		{Type: TypeReference, Payload: "not-a-url"},
		{Type: TypeConstraint, Payload: "avoid shelling out for file reads"},
	})

	require.Len(t, accepted, 1)
	assert.Equal(t, TypeConstraint, accepted[0].Type)
	assert.Len(t, p.Items, 1)
	assert.Equal(t, 2, p.Version)
}

func TestDuplicateSkillNameRejected(t *testing.T) {
	p := New(2000)
	p.ValidateAndMerge([]Delta{{Type: TypeSkill, Name: "skill_1_0", Payload: "original"}})
	before := len(p.Items)

	accepted := p.ValidateAndMerge([]Delta{{Type: TypeSkill, Name: "skill_1_0", Payload: "imposter"}})

	assert.Empty(t, accepted)
	assert.Len(t, p.Items, before)
	assert.Equal(t, 3, p.Version)
}

func TestDuplicateWithinOneBatchRejected(t *testing.T) {
	p := New(2000)

	accepted := p.ValidateAndMerge([]Delta{
		{Type: TypeSkill, Name: "skill_1_0", Payload: "first"},
		{Type: TypeSkill, Name: "skill_1_0", Payload: "second"},
	})

	require.Len(t, accepted, 1)
	assert.Equal(t, "first", accepted[0].Payload)
}

func TestDeltaValidationRules(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		valid bool
	}{
		{"unknown type", Delta{Type: "wisdom", Payload: "x"}, false},
		{"empty payload", Delta{Type: TypeClarification, Payload: ""}, false},
		{"reference without scheme", Delta{Type: TypeReference, Payload: "example.com/doc"}, false},
		{"reference with scheme", Delta{Type: TypeReference, Payload: "https://example.com/doc"}, true},
		{"reference with custom scheme", Delta{Type: TypeReference, Payload: "s3://bucket/key"}, true},
		{"skill without name", Delta{Type: TypeSkill, Payload: "code"}, false},
		{"constraint", Delta{Type: TypeConstraint, Payload: "avoid x"}, true},
		{"clarification", Delta{Type: TypeClarification, Payload: "why?"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDelta(tt.delta, map[string]bool{})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestToContext(t *testing.T) {
	p := New(2000)
	p.ValidateAndMerge([]Delta{
		{Type: TypeSkill, Name: "skill_1_0", Payload: "runbook"},
		{Type: TypeConstraint, Payload: "avoid destructive commands"},
		{Type: TypeReference, Payload: "https://example.com/doc"},
		{Type: TypeClarification, Payload: "Is staging shared?"},
	})

	ctx := p.ToContext()
	assert.Equal(t, []string{"skill_1_0"}, ctx.ExistingSkills)
	assert.Equal(t, []string{"avoid destructive commands"}, ctx.Constraints)
	assert.Equal(t, []string{"https://example.com/doc"}, ctx.References)
	assert.Equal(t, 2, ctx.Version)
}

func TestEstimateTokens(t *testing.T) {
	p := New(2000)
	p.ValidateAndMerge([]Delta{{Type: TypeConstraint, Payload: "abcdefgh"}})
	assert.Equal(t, 2, p.EstimateTokens())
}

func TestSkillScenarioFromEmptyPlaybook(t *testing.T) {
	// Empty playbook at version 1, one skill session yielding two
	// runbook snippets and one clarification.
	p := New(2000)

	deltas := []Delta{
		{Type: TypeSkill, Name: fmt.Sprintf("skill_%d_0", p.Version), Payload: "snippet one"},
		{Type: TypeSkill, Name: fmt.Sprintf("skill_%d_1", p.Version), Payload: "snippet two"},
		{Type: TypeClarification, Payload: "Should retries back off exponentially?"},
	}

	accepted := p.ValidateAndMerge(deltas)
	require.Len(t, accepted, 3)
	assert.Equal(t, 2, p.Version)
}
