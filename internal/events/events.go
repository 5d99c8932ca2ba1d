package events

import (
	"sync"
	"sync/atomic"

	"media-converter/internal/media"
)

// Type names an event kind on the wire.
type Type string

const (
	TypeProgress Type = "conversion_progress"
	TypeComplete Type = "conversion_complete"
)

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 32

// Event is one message to subscribers. Exactly one of Progress and Result
// is set.
type Event struct {
	Type     Type                      `json:"type"`
	JobID    string                    `json:"id"`
	Progress *media.ConversionProgress `json:"progress,omitempty"`
	Result   *media.ConversionResult   `json:"result,omitempty"`
}

// Terminal reports whether this is the last event of a job.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	jobID   string
	hub     *Hub
	once    sync.Once
	dropped atomic.Int64
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Dropped returns how many events were discarded because C was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Hub fans conversion events out to subscribers. Sends never block: a
// subscriber that falls behind loses progress events, and the last buffer
// slot is kept free for the terminal event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

// NewHub creates a Hub. A buffer below 2 uses DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer < 2 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. An empty jobID receives every job.
func (h *Hub) Subscribe(jobID string) *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, jobID: jobID, hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers e to every matching subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if s.jobID != "" && s.jobID != e.JobID {
			continue
		}
		if !e.Terminal() && len(s.ch) >= cap(s.ch)-1 {
			s.dropped.Add(1)
			continue
		}
		select {
		case s.ch <- e:
		default:
			s.dropped.Add(1)
		}
	}
}

// PublishProgress publishes a conversion_progress event.
func (h *Hub) PublishProgress(p media.ConversionProgress) {
	h.Publish(Event{Type: TypeProgress, JobID: p.JobID, Progress: &p})
}

// PublishResult publishes a conversion_complete event.
func (h *Hub) PublishResult(r media.ConversionResult) {
	h.Publish(Event{Type: TypeComplete, JobID: r.JobID, Result: &r})
}
