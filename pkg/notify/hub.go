// Package notify fans job status events out to realtime subscribers.
//
// The hub holds no history: a subscriber only sees events published after
// it subscribes. Slow subscribers never block publishers; when a
// subscriber's buffer fills, events to it are dropped.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

// Event is one realtime update for a job. Bugs is only populated on
// terminal transitions; Message only when there is operator-facing text
// (typically on ERROR).
type Event struct {
	JobID   string             `json:"job_id"`
	Status  bugstore.JobStatus `json:"status"`
	Logs    []string           `json:"logs"`
	Bugs    []bugstore.Bug     `json:"bugs,omitempty"`
	Message string             `json:"message,omitempty"`
}

// DefaultBuffer is the per-subscriber event buffer size.
const DefaultBuffer = 16

// Subscriber receives events for a single job.
type Subscriber struct {
	jobID string
	ch    chan Event
}

// Events is the receive side of the subscription. It is closed on
// Unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Hub routes published events to the subscribers of the matching job.
// All methods are safe for concurrent use.
type Hub struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[string][]*Subscriber
}

// NewHub builds an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, subs: make(map[string][]*Subscriber)}
}

// Subscribe registers a new subscriber for jobID. The caller must call
// Unsubscribe when done or the subscriber leaks.
func (h *Hub) Subscribe(jobID string) *Subscriber {
	sub := &Subscriber{jobID: jobID, ch: make(chan Event, DefaultBuffer)}

	h.mu.Lock()
	h.subs[jobID] = append(h.subs[jobID], sub)
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes sub and closes its event channel. Calling it twice
// is safe.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sub.jobID]
	for i, s := range subs {
		if s == sub {
			h.subs[sub.jobID] = append(subs[:i], subs[i+1:]...)
			if len(h.subs[sub.jobID]) == 0 {
				delete(h.subs, sub.jobID)
			}
			close(sub.ch)
			return
		}
	}
}

// Publish delivers event to every subscriber of event.JobID. Delivery is
// best effort: a full subscriber buffer drops the event for that
// subscriber only.
func (h *Hub) Publish(event Event) {
	// Sends are non-blocking, so holding the lock here is cheap and keeps
	// Publish from racing a concurrent Unsubscribe close.
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[event.JobID] {
		select {
		case sub.ch <- event:
		default:
			h.log.Debug("dropping event for slow subscriber",
				zap.String("job", event.JobID),
				zap.String("status", string(event.Status)))
		}
	}
}

// SubscriberCount reports how many subscribers a job currently has.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
