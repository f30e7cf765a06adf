package hooks

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/XiaoConstantine/ace-go/pkg/core"
)

// Default veto patterns, matching the forbidden targets a skill session
// must never touch.
var (
	DefaultForbiddenPaths       = []string{"/etc/", "/sys/", "~/.ssh/"}
	DefaultDestructiveFragments = []string{"rm -rf", "dd if=", "> /dev/"}
)

// ForbiddenPathMatcher vetoes write-tool invocations targeting any of
// the given path fragments.
func ForbiddenPathMatcher(writeTool string, fragments []string) Matcher {
	return Matcher{
		Name: "forbidden_path",
		Match: func(e core.Event) bool {
			p, ok := e.Payload.(core.ToolInvocationPayload)
			return ok && p.Tool == writeTool
		},
		Handle: func(e core.Event) Decision {
			p := e.Payload.(core.ToolInvocationPayload)
			path, _ := p.Input["path"].(string)
			for _, fragment := range fragments {
				if strings.Contains(path, fragment) {
					return Deny(fmt.Sprintf("path matches forbidden pattern: %s", fragment))
				}
			}
			return Allow()
		},
	}
}

// DestructiveCommandMatcher vetoes shell-tool invocations whose command
// contains a known destructive fragment.
func DestructiveCommandMatcher(shellTool string, fragments []string) Matcher {
	return Matcher{
		Name: "destructive_command",
		Match: func(e core.Event) bool {
			p, ok := e.Payload.(core.ToolInvocationPayload)
			return ok && p.Tool == shellTool
		},
		Handle: func(e core.Event) Decision {
			p := e.Payload.(core.ToolInvocationPayload)
			command, _ := p.Input["command"].(string)
			for _, fragment := range fragments {
				if strings.Contains(command, fragment) {
					return Deny(fmt.Sprintf("command contains destructive pattern: %s", fragment))
				}
			}
			return Allow()
		},
	}
}

// ResultCaptureMatcher annotates every tool result with its tool name
// and capture time, for later inspection of the transcript.
func ResultCaptureMatcher() Matcher {
	return Matcher{
		Name: "result_capture",
		Handle: func(e core.Event) Decision {
			p, ok := e.Payload.(core.ToolResultPayload)
			if !ok {
				return Allow()
			}
			return Annotate(map[string]string{
				"captured_tool": p.Tool,
				"captured_at":   time.Now().Format(time.RFC3339),
			})
		},
	}
}

// ReflectionMatcher turns failed tool results into reflection notes.
// The delta extractor picks annotations under the reflection key prefix
// up as reflection-note deltas.
func ReflectionMatcher() Matcher {
	return Matcher{
		Name: "reflection",
		Handle: func(e core.Event) Decision {
			p, ok := e.Payload.(core.ToolResultPayload)
			if !ok || !p.IsError {
				return Allow()
			}
			return Annotate(map[string]string{
				ReflectionKey(p.Tool): fmt.Sprintf("avoid repeating the failed %s call: %s", p.Tool, truncate(p.Output, 80)),
			})
		},
	}
}

// SubagentRecorderMatcher annotates subagent completions with the agent
// name and completion time.
func SubagentRecorderMatcher() Matcher {
	return Matcher{
		Name: "subagent_recorder",
		Handle: func(e core.Event) Decision {
			p, ok := e.Payload.(core.SubagentCompletionPayload)
			if !ok {
				return Allow()
			}
			return Annotate(map[string]string{
				"subagent":     p.AgentName,
				"completed_at": time.Now().Format(time.RFC3339),
			})
		},
	}
}

const reflectionPrefix = "reflection."

// ReflectionKey builds the annotation key under which reflection notes
// are stored.
func ReflectionKey(suffix string) string {
	return reflectionPrefix + suffix
}

// IsReflectionKey reports whether a metadata key carries a reflection
// note.
func IsReflectionKey(key string) bool {
	return strings.HasPrefix(key, reflectionPrefix)
}

// DefaultSkillDispatcher builds the stock hook set for skill sessions:
// path and command vetoes at pre-tool, result capture and reflection at
// post-tool, and the subagent recorder at subagent-stop.
func DefaultSkillDispatcher(writeTool, shellTool string) *Dispatcher {
	return NewDispatcher().
		Register(PreTool, ForbiddenPathMatcher(writeTool, DefaultForbiddenPaths)).
		Register(PreTool, DestructiveCommandMatcher(shellTool, DefaultDestructiveFragments)).
		Register(PostTool, ResultCaptureMatcher()).
		Register(PostTool, ReflectionMatcher()).
		Register(SubagentStop, SubagentRecorderMatcher())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
