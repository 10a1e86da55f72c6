package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// TranscriptStore persists one chat transcript per video as a JSON
// array of messages. Appends rewrite the file atomically so a crash
// never leaves a partial transcript behind.
type TranscriptStore struct {
	mu    sync.Mutex
	paths store.Paths
}

// NewTranscriptStore creates a transcript store writing under paths.
func NewTranscriptStore(paths store.Paths) *TranscriptStore {
	return &TranscriptStore{paths: paths}
}

// Load returns the transcript for videoID, oldest message first. A
// video with no transcript yet yields an empty, non-nil slice.
func (t *TranscriptStore) Load(videoID string) ([]models.ChatMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked(videoID)
}

func (t *TranscriptStore) loadLocked(videoID string) ([]models.ChatMessage, error) {
	data, err := os.ReadFile(t.paths.ChatFile(videoID))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.ChatMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read chat transcript: %w", err)
	}

	var history []models.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse chat transcript: %w", err)
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	return history, nil
}

// Append adds messages to the end of videoID's transcript in one
// atomic rewrite.
func (t *TranscriptStore) Append(videoID string, messages ...models.ChatMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	history, err := t.loadLocked(videoID)
	if err != nil {
		return err
	}
	history = append(history, messages...)

	raw, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat transcript: %w", err)
	}
	return store.WriteFileAtomic(t.paths.ChatFile(videoID), raw)
}
