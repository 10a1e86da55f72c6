package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/vidsum/pkg/config"
	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

// fakeHub records broadcast kinds per video in arrival order.
type fakeHub struct {
	mu     sync.Mutex
	events []string
}

func (h *fakeHub) BroadcastUpdate(videoID string)   { h.add(videoID, "update") }
func (h *fakeHub) BroadcastComplete(videoID string) { h.add(videoID, "complete") }

func (h *fakeHub) add(videoID, kind string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, videoID+":"+kind)
}

// kindsFor returns the broadcast kinds for one video, in order.
func (h *fakeHub) kindsFor(videoID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for _, e := range h.events {
		if id, kind, _ := strings.Cut(e, ":"); id == videoID {
			out = append(out, kind)
		}
	}
	return out
}

// fakeStreamer emits its tokens, optionally after waiting on gate, and
// records every request it received.
type fakeStreamer struct {
	mu       sync.Mutex
	tokens   []string
	err      error
	gate     chan struct{}
	requests [][]models.ChatMessage
}

func (f *fakeStreamer) Stream(_ context.Context, _ string, messages []models.ChatMessage, onToken func(string)) error {
	f.mu.Lock()
	f.requests = append(f.requests, messages)
	tokens, err, gate := f.tokens, f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	for _, token := range tokens {
		onToken(token)
	}
	return err
}

func (f *fakeStreamer) lastRequest(t *testing.T) []models.ChatMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestManager(t *testing.T, streamer Streamer, persistErrors bool) (*Manager, *fakeHub, *TranscriptStore, store.Paths) {
	t.Helper()

	paths := store.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirs())

	hub := &fakeHub{}
	transcripts := NewTranscriptStore(paths)
	cfg := config.ChatConfig{PersistErrors: persistErrors, GracefulShutdownTimeout: time.Second}
	mgr := NewManager(cfg, "moonshotai/kimi-k2-instruct", streamer, hub, transcripts, paths)

	return mgr, hub, transcripts, paths
}

// waitForResponseDone waits until a full response cycle has finished:
// the complete broadcast went out and the closing room update after it.
func waitForResponseDone(t *testing.T, hub *fakeHub, videoID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		kinds := hub.kindsFor(videoID)
		if len(kinds) == 0 || kinds[len(kinds)-1] != "update" {
			return false
		}
		for _, k := range kinds {
			if k == "complete" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "response for %s never completed", videoID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Room lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestAddListener_CreatesRoom(t *testing.T) {
	mgr, _, _, _ := newTestManager(t, &fakeStreamer{}, true)

	snap := mgr.AddListener("vid1")

	assert.Equal(t, "vid1", snap.VideoID)
	assert.False(t, snap.IsBusy)

	got, ok := mgr.SnapshotRoom("vid1")
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestRemoveListener_RemovesIdleRoom(t *testing.T) {
	mgr, _, _, _ := newTestManager(t, &fakeStreamer{}, true)
	mgr.AddListener("vid1")
	mgr.AddListener("vid1")

	mgr.RemoveListener("vid1")
	_, ok := mgr.SnapshotRoom("vid1")
	assert.True(t, ok, "the room must survive while another listener remains")

	mgr.RemoveListener("vid1")
	_, ok = mgr.SnapshotRoom("vid1")
	assert.False(t, ok, "the last listener leaving removes an idle room")

	// Removing from a gone room is a no-op.
	mgr.RemoveListener("vid1")
}

func TestRemoveListener_DeferredWhileResponseInFlight(t *testing.T) {
	gate := make(chan struct{})
	streamer := &fakeStreamer{tokens: []string{"hi"}, gate: gate}
	mgr, hub, _, _ := newTestManager(t, streamer, true)

	mgr.AddListener("vid1")
	require.NoError(t, mgr.Send("vid1", "hello?"))

	mgr.RemoveListener("vid1")
	snap, ok := mgr.SnapshotRoom("vid1")
	require.True(t, ok, "a busy room must outlive its last listener")
	assert.True(t, snap.IsBusy)

	close(gate)
	waitForResponseDone(t, hub, "vid1")

	require.Eventually(t, func() bool {
		_, ok := mgr.SnapshotRoom("vid1")
		return !ok
	}, 2*time.Second, 5*time.Millisecond, "the worker must remove the abandoned room")
}

// ─────────────────────────────────────────────────────────────────────────────
// Send
// ─────────────────────────────────────────────────────────────────────────────

func TestSend_RequiresSubscriber(t *testing.T) {
	mgr, _, _, _ := newTestManager(t, &fakeStreamer{}, true)

	err := mgr.Send("vid1", "anyone there?")
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestSend_StreamsTokensAndPersistsExchange(t *testing.T) {
	streamer := &fakeStreamer{tokens: []string{"Hel", "lo"}}
	mgr, hub, transcripts, _ := newTestManager(t, streamer, true)
	mgr.AddListener("vid1")

	require.NoError(t, mgr.Send("vid1", "hi there"))
	waitForResponseDone(t, hub, "vid1")

	history, err := transcripts.Load("vid1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "hi there"}, history[0])
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: "Hello"}, history[1])

	// busy update, one update per token, complete, closing update.
	kinds := hub.kindsFor("vid1")
	assert.GreaterOrEqual(t, len(kinds), 5)
	assert.Equal(t, "complete", kinds[len(kinds)-2])
	assert.Equal(t, "update", kinds[len(kinds)-1])

	snap, ok := mgr.SnapshotRoom("vid1")
	require.True(t, ok)
	assert.False(t, snap.IsBusy)
	assert.Empty(t, snap.Request)
	assert.Empty(t, snap.Response)
}

func TestSend_SecondMessageWhileBusyRejected(t *testing.T) {
	gate := make(chan struct{})
	streamer := &fakeStreamer{tokens: []string{"thinking"}, gate: gate}
	mgr, hub, _, _ := newTestManager(t, streamer, true)
	mgr.AddListener("vid1")

	require.NoError(t, mgr.Send("vid1", "first"))
	assert.ErrorIs(t, mgr.Send("vid1", "second"), ErrRoomBusy)

	close(gate)
	waitForResponseDone(t, hub, "vid1")

	// Once idle the room takes messages again.
	assert.NoError(t, mgr.Send("vid1", "third"))
}

func TestSend_ConcurrentMessagesExactlyOneWins(t *testing.T) {
	gate := make(chan struct{})
	streamer := &fakeStreamer{tokens: []string{"ok"}, gate: gate}
	mgr, hub, _, _ := newTestManager(t, streamer, true)
	mgr.AddListener("vid1")

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- mgr.Send("vid1", "race")
		}()
	}
	wg.Wait()
	close(errs)

	var accepted, busy int
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrRoomBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, busy)

	close(gate)
	waitForResponseDone(t, hub, "vid1")
}

func TestSend_EmptyResponseNotPersisted(t *testing.T) {
	mgr, hub, transcripts, _ := newTestManager(t, &fakeStreamer{}, true)
	mgr.AddListener("vid1")

	require.NoError(t, mgr.Send("vid1", "hello?"))
	waitForResponseDone(t, hub, "vid1")

	history, err := transcripts.Load("vid1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

// ─────────────────────────────────────────────────────────────────────────────
// Upstream failures
// ─────────────────────────────────────────────────────────────────────────────

func TestSend_UpstreamErrorShownAndPersisted(t *testing.T) {
	streamer := &fakeStreamer{tokens: []string{"partial "}, err: errors.New("upstream exploded")}
	mgr, hub, transcripts, _ := newTestManager(t, streamer, true)
	mgr.AddListener("vid1")

	require.NoError(t, mgr.Send("vid1", "hi"))
	waitForResponseDone(t, hub, "vid1")

	history, err := transcripts.Load("vid1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Error: upstream exploded", history[1].Content,
		"the error text replaces the partial response")
}

func TestSend_UpstreamErrorDiscardedWhenNotPersisted(t *testing.T) {
	streamer := &fakeStreamer{err: errors.New("upstream exploded")}
	mgr, hub, transcripts, _ := newTestManager(t, streamer, false)
	mgr.AddListener("vid1")

	require.NoError(t, mgr.Send("vid1", "hi"))
	waitForResponseDone(t, hub, "vid1")

	history, err := transcripts.Load("vid1")
	require.NoError(t, err)
	assert.Empty(t, history, "error responses are dropped when persist_errors is off")

	// The room still came back idle.
	snap, ok := mgr.SnapshotRoom("vid1")
	require.True(t, ok)
	assert.False(t, snap.IsBusy)
}

// ─────────────────────────────────────────────────────────────────────────────
// Prompt assembly
// ─────────────────────────────────────────────────────────────────────────────

func TestSend_PromptCarriesSummaryAndHistory(t *testing.T) {
	streamer := &fakeStreamer{tokens: []string{"answer"}}
	mgr, hub, transcripts, paths := newTestManager(t, streamer, true)

	require.NoError(t, store.WriteFileAtomic(paths.SummaryFile("vid1"), []byte("The video explains Go channels.")))
	require.NoError(t, transcripts.Append("vid1",
		models.ChatMessage{Role: models.RoleUser, Content: "earlier question"},
		models.ChatMessage{Role: models.RoleAssistant, Content: "earlier answer"},
	))

	mgr.AddListener("vid1")
	require.NoError(t, mgr.Send("vid1", "follow-up"))
	waitForResponseDone(t, hub, "vid1")

	messages := streamer.lastRequest(t)
	require.Len(t, messages, 5)
	assert.Equal(t, models.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "smart and chill person")
	assert.Equal(t, models.RoleSystem, messages[1].Role)
	assert.Contains(t, messages[1].Content, "The video explains Go channels.")
	assert.Equal(t, "earlier question", messages[2].Content)
	assert.Equal(t, "earlier answer", messages[3].Content)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "follow-up"}, messages[4])
}

func TestSend_PromptWithoutSummary(t *testing.T) {
	streamer := &fakeStreamer{tokens: []string{"answer"}}
	mgr, hub, _, _ := newTestManager(t, streamer, true)

	mgr.AddListener("vid1")
	require.NoError(t, mgr.Send("vid1", "what video?"))
	waitForResponseDone(t, hub, "vid1")

	messages := streamer.lastRequest(t)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleSystem, messages[0].Role)
	assert.Equal(t, models.RoleUser, messages[1].Role)
}

// ─────────────────────────────────────────────────────────────────────────────
// Shutdown
// ─────────────────────────────────────────────────────────────────────────────

func TestStop_RejectsNewMessages(t *testing.T) {
	mgr, _, _, _ := newTestManager(t, &fakeStreamer{}, true)
	mgr.AddListener("vid1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	mgr.Stop(ctx)

	assert.ErrorIs(t, mgr.Send("vid1", "too late"), ErrShuttingDown)
}

func TestStop_WaitsForInFlightResponse(t *testing.T) {
	gate := make(chan struct{})
	streamer := &fakeStreamer{tokens: []string{"slow answer"}, gate: gate}
	mgr, _, transcripts, _ := newTestManager(t, streamer, true)
	mgr.AddListener("vid1")

	require.NoError(t, mgr.Send("vid1", "hi"))

	stopped := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mgr.Stop(ctx)
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a response was still streaming")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned after the response completed")
	}

	// The drained response made it into the transcript.
	history, err := transcripts.Load("vid1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "slow answer", history[1].Content)
}
