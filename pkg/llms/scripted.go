package llms

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/ace-go/pkg/core"
)

// ScriptedDriver replays a fixed payload sequence as a session. It
// backs deterministic tests and transcript replay; no engine is
// involved.
type ScriptedDriver struct {
	mu       sync.Mutex
	id       string
	loop     core.LoopType
	payloads []core.Payload
	prompts  []string
	injected []string
	startErr error
}

var _ core.SessionDriver = (*ScriptedDriver)(nil)
var _ core.Injector = (*ScriptedDriver)(nil)

// NewScriptedDriver creates a driver that emits the given payloads in
// order. Callers are responsible for ending the script with a
// SessionEnd or Error payload.
func NewScriptedDriver(loop core.LoopType, payloads ...core.Payload) *ScriptedDriver {
	return &ScriptedDriver{
		id:       uuid.NewString(),
		loop:     loop,
		payloads: payloads,
	}
}

// FailStart makes the next Start call return the given error instead of
// a stream.
func (d *ScriptedDriver) FailStart(err error) *ScriptedDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startErr = err
	return d
}

func (d *ScriptedDriver) SessionID() string {
	return d.id
}

// Start emits the scripted payloads on a fresh stream. Cancellation
// stops emission; the channel closes without a terminal event, the same
// shape a cancelled live exchange produces.
func (d *ScriptedDriver) Start(ctx context.Context, prompt string) (*core.EventStream, error) {
	d.mu.Lock()
	d.prompts = append(d.prompts, prompt)
	err := d.startErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan core.Event, len(d.payloads))

	go func() {
		defer close(ch)
		for _, p := range d.payloads {
			select {
			case <-streamCtx.Done():
				return
			case ch <- core.NewEvent(d.id, d.loop, p):
			}
		}
	}()

	return &core.EventStream{Events: ch, Cancel: cancel}, nil
}

// Inject records the note so tests can assert on merge summaries
// flowing back into the exchange.
func (d *ScriptedDriver) Inject(ctx context.Context, note string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected = append(d.injected, note)
	return nil
}

// Injected returns the notes received so far.
func (d *ScriptedDriver) Injected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.injected))
	copy(out, d.injected)
	return out
}

// Prompts returns the opening prompts passed to Start.
func (d *ScriptedDriver) Prompts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.prompts))
	copy(out, d.prompts)
	return out
}
