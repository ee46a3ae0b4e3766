package events

import (
	"log"
	"sync/atomic"
	"time"
)

// sendTimeout is how long Emit waits for a full channel to drain before
// dropping the event.
const sendTimeout = 100 * time.Millisecond

// Emitter handles event emission for the orchestration core.
// It provides a simple, thread-safe way to emit events to one subscriber.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates a new Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel, stamping it if unstamped.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Try immediate send first.
	select {
	case e.events <- event:
		return
	default:
	}

	// Channel full: give the receiver a chance to drain, then drop.
	select {
	case e.events <- event:
	case <-time.After(sendTimeout):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam.
			log.Printf("[events] WARNING: channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for the subscriber.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Call only after all producers stopped.
func (e *Emitter) Close() {
	close(e.events)
}
