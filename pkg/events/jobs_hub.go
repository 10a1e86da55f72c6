package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// JobsHub streams job lifecycle events to subscribers. A new
// subscriber first receives an init event carrying a snapshot of every
// known job, then new/update events in the order they were broadcast.
//
// The hub keeps its own latest-state map, maintained on every
// broadcast, so building the init snapshot never has to reach back
// into the job registry and its per-job locks.
type JobsHub struct {
	mu     sync.Mutex
	sinks  map[string]Sink
	latest map[string]models.Job
}

// NewJobsHub creates an empty hub.
func NewJobsHub() *JobsHub {
	return &JobsHub{
		sinks:  make(map[string]Sink),
		latest: make(map[string]models.Job),
	}
}

// Subscribe registers a sink and immediately writes the init frame. It
// returns the subscriber id for Unsubscribe.
func (h *JobsHub) Subscribe(sink Sink) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	h.sinks[id] = sink

	if err := writeFrame(sink, EventInit, h.latest); err != nil {
		slog.Warn("Failed to send job init event", "subscriber_id", id, "error", err)
	}

	slog.Debug("Job stream subscriber added", "subscriber_id", id, "subscribers", len(h.sinks))
	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *JobsHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sinks, id)
	slog.Debug("Job stream subscriber removed", "subscriber_id", id, "subscribers", len(h.sinks))
}

// BroadcastNew announces a freshly created (or revived) job.
func (h *JobsHub) BroadcastNew(job models.Job) {
	h.broadcast(EventNew, job)
}

// BroadcastUpdate announces a state change on an existing job.
func (h *JobsHub) BroadcastUpdate(job models.Job) {
	h.broadcast(EventUpdate, job)
}

func (h *JobsHub) broadcast(event string, job models.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[job.VideoID] = job

	for id, sink := range h.sinks {
		if err := writeFrame(sink, event, job); err != nil {
			// The sink stays registered; the HTTP handler drops it
			// via Unsubscribe when the connection closes.
			slog.Warn("Failed to send job event", "subscriber_id", id, "event", event, "error", err)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
// Used by tests to poll instead of sleeping.
func (h *JobsHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}
