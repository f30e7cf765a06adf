package core

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
)

// Trajectory is the append-only ordered log spanning a primary session
// and any nested skill sessions. Because nested sessions run to
// completion before the primary resumes, skill events always form
// contiguous blocks between two primary events.
type Trajectory struct {
	ID        string
	CreatedAt time.Time

	events []Event
}

// NewTrajectory creates an empty trajectory with a fresh id.
func NewTrajectory() *Trajectory {
	return &Trajectory{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

// Append adds an event to the end of the log.
func (t *Trajectory) Append(e Event) {
	t.events = append(t.events, e)
}

// Len returns the number of recorded events.
func (t *Trajectory) Len() int {
	return len(t.events)
}

// Events returns a copy of the full event log in emission order.
func (t *Trajectory) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Filter returns the events recorded under the given loop type.
func (t *Trajectory) Filter(loop LoopType) []Event {
	var out []Event
	for _, e := range t.events {
		if e.LoopType == loop {
			out = append(out, e)
		}
	}
	return out
}

// SkillSegments extracts each contiguous block of skill-loop events.
// One segment corresponds to one completed (or cancelled) skill session.
func (t *Trajectory) SkillSegments() [][]Event {
	var segments [][]Event
	var current []Event

	for _, e := range t.events {
		if e.LoopType == LoopSkill {
			current = append(current, e)
		} else if len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
	}

	if len(current) > 0 {
		segments = append(segments, current)
	}

	return segments
}

// ExportJSONL writes the trajectory as line-delimited JSON, one event
// per line in emission order. This is the durable transcript form.
func (t *Trajectory) ExportJSONL(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, e := range t.events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return bw.Flush()
}
