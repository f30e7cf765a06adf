package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/XiaoConstantine/ace-go/pkg/core"
)

func TestWriteContextSummarySortsAgents(t *testing.T) {
	sc := &core.SessionContext{
		Root: "/work/project",
		Agents: map[string]core.AgentDefinition{
			"zeta-reviewer":   {Name: "zeta-reviewer"},
			"alpha-reflector": {Name: "alpha-reflector"},
			"mid-summarizer":  {Name: "mid-summarizer"},
		},
		Commands: []string{"deploy"},
	}

	var b strings.Builder
	writeContextSummary(&b, sc)

	out := b.String()
	assert.Contains(t, out, "agents: 3")
	assert.Less(t, strings.Index(out, "alpha-reflector"), strings.Index(out, "mid-summarizer"))
	assert.Less(t, strings.Index(out, "mid-summarizer"), strings.Index(out, "zeta-reviewer"))
	assert.Contains(t, out, "commands: 1")
}
