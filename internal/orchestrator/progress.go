package orchestrator

import (
	"fmt"
	"sync"
)

// ProgressEvent is one lifecycle change of a stage or sub-step.
type ProgressEvent struct {
	Stage  string
	Status Status
}

// ProgressReporter delivers events to a ProgressFunc from its own goroutine
// so a slow or panicking callback never stalls the workflow. The queue is
// unbounded: Emit never blocks and no event is dropped.
type ProgressReporter struct {
	fn ProgressFunc

	mu     sync.Mutex
	queue  []ProgressEvent
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewProgressReporter starts a reporter. A nil fn yields a reporter that
// discards everything.
func NewProgressReporter(fn ProgressFunc) *ProgressReporter {
	pr := &ProgressReporter{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go pr.dispatch()
	return pr
}

func (pr *ProgressReporter) dispatch() {
	defer close(pr.done)
	for {
		pr.mu.Lock()
		batch := pr.queue
		pr.queue = nil
		closed := pr.closed
		pr.mu.Unlock()

		for _, ev := range batch {
			pr.deliver(ev)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-pr.wake
	}
}

func (pr *ProgressReporter) deliver(ev ProgressEvent) {
	if pr.fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	pr.fn(ev.Stage, ev.Status)
}

func (pr *ProgressReporter) signal() {
	select {
	case pr.wake <- struct{}{}:
	default:
	}
}

// Emit queues an event without blocking. Events after Close are ignored.
func (pr *ProgressReporter) Emit(stage string, status Status) {
	pr.mu.Lock()
	if pr.closed {
		pr.mu.Unlock()
		return
	}
	pr.queue = append(pr.queue, ProgressEvent{Stage: stage, Status: status})
	pr.mu.Unlock()
	pr.signal()
}

// Func returns Emit as a ProgressFunc.
func (pr *ProgressReporter) Func() ProgressFunc {
	return pr.Emit
}

// Close stops accepting events and waits until queued ones are delivered.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	pr.closed = true
	pr.mu.Unlock()
	pr.signal()
	<-pr.done
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case StatusPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Stage)
	case StatusInProgress:
		return fmt.Sprintf("  ● %s...", event.Stage)
	case StatusCompleted:
		return fmt.Sprintf("  ✓ %s complete", event.Stage)
	case StatusFailed:
		return fmt.Sprintf("  ✗ %s failed", event.Stage)
	case StatusSkipped:
		return fmt.Sprintf("  - %s skipped", event.Stage)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Stage)
	}
}
