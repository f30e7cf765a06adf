package core

import (
	"context"
)

// EventStream carries the lazy, finite event sequence of one session.
// The channel is closed after the terminal event (SessionEnd or Error)
// has been delivered. Cancel aborts the underlying exchange; emission
// stops without retry.
type EventStream struct {
	Events <-chan Event // Channel receiving session events
	Cancel func()       // Function to cancel the stream
}

// SessionDriver drives one streaming exchange with the external
// reasoning engine, bound at construction to one isolated session
// context. A driver is single-use: once its stream is drained it is
// discarded by the caller.
type SessionDriver interface {
	// Start begins the exchange and returns the event stream. The
	// sequence always terminates with a SessionEnd event; a mid-stream
	// transport failure is surfaced as a terminal Error event instead
	// of an error return.
	Start(ctx context.Context, prompt string) (*EventStream, error)

	// SessionID identifies the exchange for trajectory attribution.
	SessionID() string
}

// Injector is optionally implemented by drivers that can accept a
// follow-up note between turns of an exchange, e.g. a merge summary
// after a nested skill session completes.
type Injector interface {
	Inject(ctx context.Context, note string) error
}

// DriverFactory constructs a driver bound to the given context for one
// loop. Construction fails with a ConfigurationFailed error when the
// context's assets cannot be resolved.
type DriverFactory func(sc *SessionContext, loop LoopType) (SessionDriver, error)
