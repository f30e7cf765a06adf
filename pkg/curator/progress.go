package curator

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
)

const defaultProgressBuffer = 64

// ProgressSink forwards human-readable status lines to a consumer in
// emission order. Reports are serialized through a bounded channel and
// delivered by a single goroutine, so the consumer callback needs no
// locking of its own.
type ProgressSink struct {
	mu     sync.RWMutex
	ch     chan string
	wg     conc.WaitGroup
	closed bool
}

// NewProgressSink starts the forwarding goroutine. A nil consumer
// yields a sink that discards every report.
func NewProgressSink(consumer func(string)) *ProgressSink {
	s := &ProgressSink{
		ch: make(chan string, defaultProgressBuffer),
	}
	s.wg.Go(func() {
		for line := range s.ch {
			if consumer != nil {
				consumer(line)
			}
		}
	})
	return s
}

// Report queues a status line. It blocks when the buffer is full rather
// than dropping or reordering reports. Reports after Close are dropped.
// The read lock is held across the send so Close cannot close the
// channel between the check and the send.
func (s *ProgressSink) Report(format string, args ...any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.ch <- fmt.Sprintf(format, args...)
}

// Close drains pending reports and stops the forwarding goroutine.
// Safe to call more than once; safe to race with Report.
func (s *ProgressSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
}
