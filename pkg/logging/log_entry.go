package logging

// LogEntry represents a structured log record emitted while driving a
// task or skill session.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Session-specific fields
	SessionID string // Session the entry was emitted from, if any
	LoopType  string // "primary" or "skill" when known

	// General structured data
	Fields map[string]interface{}
}
