// Package chat coordinates per-video chat rooms: at most one in-flight
// model response per room, partial tokens fanned out to every
// listener, and a durable transcript appended when a response
// completes.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/codeready-toolchain/vidsum/pkg/config"
	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// Send rejections the HTTP layer maps to status codes.
var (
	// ErrRoomBusy means the room already has a response in flight.
	ErrRoomBusy = errors.New("chat room is busy processing another message")

	// ErrNoRoom means nobody is subscribed to the room; subscribing
	// creates it.
	ErrNoRoom = errors.New("chat room not found")

	// ErrShuttingDown means the server is draining and takes no new
	// messages.
	ErrShuttingDown = errors.New("chat is shutting down")
)

// chatPersona is the system prompt for every chat response.
const chatPersona = "You are a smart and chill person answering questions about the video. By default your response should be super short and concise UNLESS EXPLICITLY ASKED to do something that requires a lot more text"

// Streamer is the token-streaming completion call the response worker
// needs. Implemented by the LLM client.
type Streamer interface {
	Stream(ctx context.Context, model string, messages []models.ChatMessage, onToken func(token string)) error
}

// Hub receives room state broadcasts. Implemented by the chat event
// hub.
type Hub interface {
	BroadcastUpdate(videoID string)
	BroadcastComplete(videoID string)
}

// room is one live chat room. data is guarded by its own mutex;
// listeners is guarded by the manager's.
type room struct {
	mu        sync.Mutex
	data      models.ChatRoom
	listeners int
}

func (r *room) snapshot() models.ChatRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Manager is the chat room registry and response worker. Rooms exist
// while someone listens or a response is in flight; state between
// responses lives only in the transcript store.
type Manager struct {
	cfg         config.ChatConfig
	model       string
	llm         Streamer
	hub         Hub
	transcripts *TranscriptStore
	paths       store.Paths

	mu      sync.Mutex
	rooms   map[string]*room
	stopped bool
	wg      sync.WaitGroup
}

// NewManager creates a chat manager. The hub must broadcast to
// subscribers of this manager's rooms.
func NewManager(cfg config.ChatConfig, model string, llm Streamer, hub Hub,
	transcripts *TranscriptStore, paths store.Paths) *Manager {
	return &Manager{
		cfg:         cfg,
		model:       model,
		llm:         llm,
		hub:         hub,
		transcripts: transcripts,
		paths:       paths,
		rooms:       make(map[string]*room),
	}
}

// AddListener creates videoID's room if needed, registers one
// listener, and returns a snapshot for the subscriber's init frame.
func (m *Manager) AddListener(videoID string) models.ChatRoom {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[videoID]
	if !ok {
		rm = &room{data: models.ChatRoom{VideoID: videoID}}
		m.rooms[videoID] = rm
	}
	rm.listeners++

	return rm.snapshot()
}

// RemoveListener drops one listener from videoID's room. An idle room
// with no listeners left is removed; a busy one stays until its
// response worker finishes, so a mid-response reconnect still finds
// the partial state.
func (m *Manager) RemoveListener(videoID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[videoID]
	if !ok {
		return
	}
	if rm.listeners > 0 {
		rm.listeners--
	}
	if rm.listeners == 0 && !rm.snapshot().IsBusy {
		delete(m.rooms, videoID)
	}
}

// SnapshotRoom returns the current state of videoID's room.
func (m *Manager) SnapshotRoom(videoID string) (models.ChatRoom, bool) {
	m.mu.Lock()
	rm, ok := m.rooms[videoID]
	m.mu.Unlock()

	if !ok {
		return models.ChatRoom{}, false
	}
	return rm.snapshot(), true
}

// Send starts one streamed response to message in videoID's room. The
// room must have at least one subscriber and no response in flight;
// the response itself runs asynchronously and survives the caller's
// disconnect.
func (m *Manager) Send(videoID, message string) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	rm, ok := m.rooms[videoID]
	if !ok {
		m.mu.Unlock()
		return ErrNoRoom
	}
	// Track the worker before releasing the lock so Stop cannot finish
	// waiting between the stopped check and the spawn.
	m.wg.Add(1)
	m.mu.Unlock()

	rm.mu.Lock()
	if rm.data.IsBusy {
		rm.mu.Unlock()
		m.wg.Done()
		return ErrRoomBusy
	}
	rm.data.IsBusy = true
	rm.data.Request = message
	rm.data.Response = ""
	rm.mu.Unlock()

	m.hub.BroadcastUpdate(videoID)

	go m.respond(videoID, rm, message)

	return nil
}

// respond drives one response: stream tokens into the room, broadcast
// completion, persist the exchange, and clear the room.
func (m *Manager) respond(videoID string, rm *room, message string) {
	defer m.wg.Done()

	log := slog.With("video_id", videoID)
	log.Info("Chat response started")

	streamErr := m.stream(videoID, rm, message)
	if streamErr != nil {
		log.Warn("Chat completion failed", "error", streamErr)
		rm.mu.Lock()
		rm.data.Response = fmt.Sprintf("Error: %s", streamErr.Error())
		rm.mu.Unlock()
		m.hub.BroadcastUpdate(videoID)
	}

	m.hub.BroadcastComplete(videoID)

	rm.mu.Lock()
	response := rm.data.Response
	rm.mu.Unlock()

	if response != "" && (streamErr == nil || m.cfg.PersistErrors) {
		if err := m.transcripts.Append(videoID,
			models.ChatMessage{Role: models.RoleUser, Content: message},
			models.ChatMessage{Role: models.RoleAssistant, Content: response},
		); err != nil {
			log.Warn("Failed to append chat transcript", "error", err)
		}
	}

	rm.mu.Lock()
	rm.data.IsBusy = false
	rm.data.Request = ""
	rm.data.Response = ""
	rm.mu.Unlock()

	m.hub.BroadcastUpdate(videoID)
	m.removeIfAbandoned(videoID, rm)

	log.Info("Chat response finished")
}

// stream builds the model request and streams tokens into the room,
// broadcasting after each one. The context is detached from the
// sending request: a disconnect must not cut the response short or the
// transcript would lose it.
func (m *Manager) stream(videoID string, rm *room, message string) error {
	history, err := m.transcripts.Load(videoID)
	if err != nil {
		return fmt.Errorf("failed to load chat history: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(history)+3)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: chatPersona})

	if summary := m.loadSummary(videoID); summary != "" {
		messages = append(messages, models.ChatMessage{
			Role:    models.RoleSystem,
			Content: "Here is the summary of the video:\n\n" + summary,
		})
	}

	messages = append(messages, history...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: message})

	return m.llm.Stream(context.Background(), m.model, messages, func(token string) {
		rm.mu.Lock()
		rm.data.Response += token
		rm.mu.Unlock()
		m.hub.BroadcastUpdate(videoID)
	})
}

// loadSummary reads the summary artifact; a video without one simply
// chats without summary context.
func (m *Manager) loadSummary(videoID string) string {
	data, err := os.ReadFile(m.paths.SummaryFile(videoID))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read summary for chat context", "video_id", videoID, "error", err)
		}
		return ""
	}
	return string(data)
}

// removeIfAbandoned performs the room removal RemoveListener deferred
// while the response was in flight. The identity check guards against
// a room that was removed and re-created while the worker ran.
func (m *Manager) removeIfAbandoned(videoID string, rm *room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.rooms[videoID]; ok && current == rm && rm.listeners == 0 {
		delete(m.rooms, videoID)
	}
}

// Stop rejects new messages and waits for in-flight responses to
// finish so their transcripts land, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Chat manager stopped")
	case <-ctx.Done():
		slog.Warn("Chat shutdown timed out, abandoning in-flight responses")
	}
}
