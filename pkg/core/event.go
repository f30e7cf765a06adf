package core

import (
	"encoding/json"
	"time"
)

// LoopType distinguishes primary task-session events from nested
// skill-session events.
type LoopType string

const (
	LoopPrimary LoopType = "primary"
	LoopSkill   LoopType = "skill"
)

// EventKind enumerates every moment a session can produce. The set is
// closed: consumers switch exhaustively over it.
type EventKind string

const (
	KindAssistantText      EventKind = "assistant_text"
	KindToolInvocation     EventKind = "tool_invocation"
	KindToolResult         EventKind = "tool_result"
	KindSubagentCompletion EventKind = "subagent_completion"
	KindSessionEnd         EventKind = "session_end"
	KindError              EventKind = "error"
)

// Payload is the kind-specific body of an Event. Exactly one concrete
// payload type exists per EventKind.
type Payload interface {
	Kind() EventKind
}

// AssistantTextPayload carries a text fragment produced by the engine.
type AssistantTextPayload struct {
	Text string `json:"text"`
}

func (AssistantTextPayload) Kind() EventKind { return KindAssistantText }

// ToolInvocationPayload records a tool call request before execution.
type ToolInvocationPayload struct {
	InvocationID string         `json:"invocation_id"`
	Tool         string         `json:"tool"`
	Input        map[string]any `json:"input,omitempty"`
}

func (ToolInvocationPayload) Kind() EventKind { return KindToolInvocation }

// ToolResultPayload records the outcome of a tool invocation, paired to
// its request by InvocationID.
type ToolResultPayload struct {
	InvocationID string `json:"invocation_id"`
	Tool         string `json:"tool"`
	Output       string `json:"output"`
	IsError      bool   `json:"is_error"`
}

func (ToolResultPayload) Kind() EventKind { return KindToolResult }

// SubagentCompletionPayload marks the end of a delegated sub-agent run.
type SubagentCompletionPayload struct {
	AgentName string `json:"agent_name"`
}

func (SubagentCompletionPayload) Kind() EventKind { return KindSubagentCompletion }

// SessionEndPayload terminates every well-formed event sequence.
type SessionEndPayload struct {
	Success bool `json:"success"`
}

func (SessionEndPayload) Kind() EventKind { return KindSessionEnd }

// ErrorPayload surfaces a mid-stream transport failure as a terminal
// event, preserving the partial history gathered so far.
type ErrorPayload struct {
	Message string `json:"message"`
}

func (ErrorPayload) Kind() EventKind { return KindError }

// Event is a tagged record of one moment in a session. Once appended to
// a Trajectory it is immutable; Metadata is written only by hook
// dispatch, which runs before the append.
type Event struct {
	Kind      EventKind         `json:"kind"`
	SessionID string            `json:"session_id"`
	LoopType  LoopType          `json:"loop_type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   Payload           `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent builds an event stamped with the current time. The kind is
// derived from the payload so the two can never disagree.
func NewEvent(sessionID string, loop LoopType, payload Payload) Event {
	return Event{
		Kind:      payload.Kind(),
		SessionID: sessionID,
		LoopType:  loop,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// SetMeta writes a metadata annotation, allocating the map on first use.
func (e *Event) SetMeta(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// Meta reads a metadata annotation, tolerating a nil map.
func (e *Event) Meta(key string) (string, bool) {
	if e.Metadata == nil {
		return "", false
	}
	v, ok := e.Metadata[key]
	return v, ok
}

// eventRecord is the wire form used for JSONL export and re-import.
type eventRecord struct {
	Kind      EventKind         `json:"kind"`
	SessionID string            `json:"session_id"`
	LoopType  LoopType          `json:"loop_type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON flattens the payload union into a plain JSON object.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventRecord{
		Kind:      e.Kind,
		SessionID: e.SessionID,
		LoopType:  e.LoopType,
		Timestamp: e.Timestamp,
		Payload:   payload,
		Metadata:  e.Metadata,
	})
}

// UnmarshalJSON restores the concrete payload type from the kind tag.
func (e *Event) UnmarshalJSON(data []byte) error {
	var record eventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}

	var payload Payload
	switch record.Kind {
	case KindAssistantText:
		payload = &AssistantTextPayload{}
	case KindToolInvocation:
		payload = &ToolInvocationPayload{}
	case KindToolResult:
		payload = &ToolResultPayload{}
	case KindSubagentCompletion:
		payload = &SubagentCompletionPayload{}
	case KindSessionEnd:
		payload = &SessionEndPayload{}
	case KindError:
		payload = &ErrorPayload{}
	default:
		return &json.UnsupportedValueError{Str: string(record.Kind)}
	}

	if err := json.Unmarshal(record.Payload, payload); err != nil {
		return err
	}

	e.Kind = record.Kind
	e.SessionID = record.SessionID
	e.LoopType = record.LoopType
	e.Timestamp = record.Timestamp
	e.Metadata = record.Metadata

	switch p := payload.(type) {
	case *AssistantTextPayload:
		e.Payload = *p
	case *ToolInvocationPayload:
		e.Payload = *p
	case *ToolResultPayload:
		e.Payload = *p
	case *SubagentCompletionPayload:
		e.Payload = *p
	case *SessionEndPayload:
		e.Payload = *p
	case *ErrorPayload:
		e.Payload = *p
	}

	return nil
}
