package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// Rooms is the chat room registry the hub leans on: subscriber
// lifecycle drives room listener counts, and broadcasts re-snapshot the
// room so every frame carries state at least as new as the one before
// it. Implemented by the chat manager; set once during startup.
type Rooms interface {
	// AddListener creates the room if needed, increments its listener
	// count, and returns a snapshot for the init frame.
	AddListener(videoID string) models.ChatRoom

	// RemoveListener decrements the listener count and removes an idle
	// room when nobody is left.
	RemoveListener(videoID string)

	// SnapshotRoom returns the room's current state, or false when the
	// room no longer exists.
	SnapshotRoom(videoID string) (models.ChatRoom, bool)
}

type chatSubscriber struct {
	videoID string
	sink    Sink
}

// ChatHub streams per-room chat events to subscribers of that room's
// video. A subscriber first receives an init frame with the room
// snapshot, then update frames carrying full snapshots, and a complete
// frame whenever an in-flight response finishes.
type ChatHub struct {
	mu    sync.Mutex
	rooms Rooms
	sinks map[string]chatSubscriber
}

// NewChatHub creates an empty hub. SetRooms must be called before the
// first Subscribe.
func NewChatHub() *ChatHub {
	return &ChatHub{
		sinks: make(map[string]chatSubscriber),
	}
}

// SetRooms wires the room registry. Called once during startup after
// both the hub and the chat manager are created.
func (h *ChatHub) SetRooms(r Rooms) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = r
}

// Subscribe registers a sink for one video's room, creating the room
// if needed, and immediately writes the init frame.
func (h *ChatHub) Subscribe(videoID string, sink Sink) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms.AddListener(videoID)

	id := uuid.New().String()
	h.sinks[id] = chatSubscriber{videoID: videoID, sink: sink}

	if err := writeFrame(sink, EventInit, room); err != nil {
		slog.Warn("Failed to send chat init event",
			"subscriber_id", id, "video_id", videoID, "error", err)
	}

	slog.Debug("Chat stream subscriber added",
		"subscriber_id", id, "video_id", videoID, "subscribers", len(h.sinks))
	return id
}

// Unsubscribe removes a subscriber and releases its room listener.
// Unknown ids are ignored.
func (h *ChatHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.sinks[id]
	if !ok {
		return
	}
	delete(h.sinks, id)
	h.rooms.RemoveListener(sub.videoID)

	slog.Debug("Chat stream subscriber removed",
		"subscriber_id", id, "video_id", sub.videoID, "subscribers", len(h.sinks))
}

// BroadcastUpdate sends the room's current snapshot to its subscribers.
// The snapshot is taken inside the hub lock so frames never regress.
func (h *ChatHub) BroadcastUpdate(videoID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, ok := h.rooms.SnapshotRoom(videoID)
	if !ok {
		return
	}

	for id, sub := range h.sinks {
		if sub.videoID != videoID {
			continue
		}
		if err := writeFrame(sub.sink, EventUpdate, snap); err != nil {
			slog.Warn("Failed to send chat update event",
				"subscriber_id", id, "video_id", videoID, "error", err)
		}
	}
}

// BroadcastComplete tells the room's subscribers that the in-flight
// response has finished streaming.
func (h *ChatHub) BroadcastComplete(videoID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.sinks {
		if sub.videoID != videoID {
			continue
		}
		if err := writeFrame(sub.sink, EventComplete, struct{}{}); err != nil {
			slog.Warn("Failed to send chat complete event",
				"subscriber_id", id, "video_id", videoID, "error", err)
		}
	}
}

// SubscriberCount returns the number of active subscribers across all
// rooms. Used by tests to poll instead of sleeping.
func (h *ChatHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}
