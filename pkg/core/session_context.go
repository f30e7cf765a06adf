package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// AgentDefinition is a reusable behavior definition resolved from a
// session root's agents directory.
type AgentDefinition struct {
	Name        string
	Description string
	Prompt      string
	Tools       []string
	Model       string
}

// KnowledgeContext is the playbook-derived context injected into a
// session prompt.
type KnowledgeContext struct {
	ExistingSkills []string
	Constraints    []string
	References     []string
	Version        int
}

// SessionContext binds a driver to one isolated configuration context:
// a working root, its resolved agent definitions and command macros,
// and the knowledge context to inject into the opening prompt.
type SessionContext struct {
	Root      string
	Agents    map[string]AgentDefinition
	Commands  []string
	Knowledge KnowledgeContext
}

// ResolveSessionContext resolves the reusable-behavior assets under
// root. It fails with a ConfigurationFailed error when the root does
// not exist; a root without agent definitions resolves to an empty
// asset set, which callers may still reject.
func ResolveSessionContext(root string, knowledge KnowledgeContext) (*SessionContext, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.WithFields(
			errors.New(errors.ConfigurationFailed, "session root not found"),
			errors.Fields{"root": root},
		)
	}

	assetRoot := resolveAssetRoot(root)

	agents, err := loadAgentDefinitions(filepath.Join(assetRoot, "agents"))
	if err != nil {
		return nil, err
	}

	commands, err := loadCommandMacros(filepath.Join(assetRoot, "commands"))
	if err != nil {
		return nil, err
	}

	return &SessionContext{
		Root:      root,
		Agents:    agents,
		Commands:  commands,
		Knowledge: knowledge,
	}, nil
}

// EnrichPrompt appends the knowledge context to an outbound prompt so
// the session can reuse accepted skills instead of rediscovering them.
func (sc *SessionContext) EnrichPrompt(prompt string) string {
	k := sc.Knowledge
	if len(k.ExistingSkills) == 0 && len(k.Constraints) == 0 && len(k.References) == 0 {
		return prompt
	}

	parts := []string{prompt, "", "## Context from Playbook"}

	if len(k.ExistingSkills) > 0 {
		parts = append(parts, "Existing skills: "+strings.Join(k.ExistingSkills, ", "))
	}
	if len(k.Constraints) > 0 {
		parts = append(parts, "Constraints:")
		for _, c := range k.Constraints {
			parts = append(parts, "- "+c)
		}
	}
	if len(k.References) > 0 {
		parts = append(parts, "References:")
		for _, r := range k.References {
			parts = append(parts, "- "+r)
		}
	}

	return strings.Join(parts, "\n")
}

// resolveAssetRoot returns the directory that directly contains the
// agents and commands subdirectories.
func resolveAssetRoot(root string) string {
	if dirExists(filepath.Join(root, "agents")) && dirExists(filepath.Join(root, "commands")) {
		return root
	}
	if hidden := filepath.Join(root, ".ace"); dirExists(hidden) {
		return hidden
	}
	return root
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func loadAgentDefinitions(dir string) (map[string]AgentDefinition, error) {
	agents := make(map[string]AgentDefinition)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return agents, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationFailed, "failed to read agents directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.ConfigurationFailed, "failed to read agent definition"),
				errors.Fields{"path": path},
			)
		}

		name := strings.TrimSuffix(entry.Name(), ".md")
		def := parseAgentMarkdown(string(data))
		def.Name = name
		agents[name] = def
	}

	return agents, nil
}

// parseAgentMarkdown extracts the sections of a markdown agent
// definition. Unknown sections are ignored.
func parseAgentMarkdown(content string) AgentDefinition {
	var description, prompt []string
	var tools []string
	model := "sonnet"
	section := ""

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "## Description"):
			section = "description"
			continue
		case strings.HasPrefix(line, "## Prompt"):
			section = "prompt"
			continue
		case strings.HasPrefix(line, "## Tools"):
			section = "tools"
			continue
		case strings.HasPrefix(line, "## Model"):
			section = "model"
			continue
		case strings.HasPrefix(line, "#"):
			section = ""
			continue
		}

		if line == "" {
			continue
		}

		switch section {
		case "description":
			description = append(description, line)
		case "prompt":
			prompt = append(prompt, line)
		case "tools":
			if strings.HasPrefix(line, "-") {
				tools = append(tools, strings.TrimSpace(line[1:]))
			}
		case "model":
			model = line
		}
	}

	return AgentDefinition{
		Description: strings.Join(description, " "),
		Prompt:      strings.Join(prompt, " "),
		Tools:       tools,
		Model:       model,
	}
}

func loadCommandMacros(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationFailed, "failed to read commands directory")
	}

	var commands []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		commands = append(commands, strings.TrimSuffix(entry.Name(), ".md"))
	}
	sort.Strings(commands)
	return commands, nil
}
