package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// document is the on-disk shape of the metadata store: a single JSON
// object keyed by video id under a top-level "data" field.
type document struct {
	Data map[string]models.VideoEntry `json:"data"`
}

// VideoStore holds per-video metadata and the crash-recoverable job
// failure flags. The in-memory map is authoritative; every mutation is
// followed by an atomic rewrite of the backing document. Persistence
// failures are logged and the process keeps serving from memory.
type VideoStore struct {
	mu   sync.RWMutex
	path string
	data map[string]models.VideoEntry
}

// NewVideoStore loads the metadata document at path, seeding an empty
// one when the file does not exist yet.
func NewVideoStore(path string) (*VideoStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteFileAtomic(path, []byte("{}")); err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Data == nil {
		doc.Data = make(map[string]models.VideoEntry)
	}

	return &VideoStore{
		path: path,
		data: doc.Data,
	}, nil
}

// Create inserts or replaces the entry for entry.VideoID and persists.
func (s *VideoStore) Create(entry models.VideoEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[entry.VideoID] = entry
	s.persistLocked()
}

// Read returns the entry for videoID and whether one exists.
func (s *VideoStore) Read(videoID string) (models.VideoEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[videoID]
	return entry, ok
}

// ReadAll returns a copy of every entry keyed by video id.
func (s *VideoStore) ReadAll() map[string]models.VideoEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.VideoEntry, len(s.data))
	for id, entry := range s.data {
		out[id] = entry
	}
	return out
}

// Exists reports whether an entry for videoID is present.
func (s *VideoStore) Exists(videoID string) bool {
	s.mu.RLock()
	_, ok := s.data[videoID]
	s.mu.RUnlock()

	return ok
}

// SetJobFailed records the failure state for a video. A video with no
// metadata entry yet is skipped: there is nothing durable to flag.
func (s *VideoStore) SetJobFailed(videoID string, failed bool, errorMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[videoID]
	if !ok {
		return
	}
	entry.JobFailed = failed
	entry.LastError = errorMsg
	s.data[videoID] = entry
	s.persistLocked()
}

// ClearJobFailure marks a video's last run as successful.
func (s *VideoStore) ClearJobFailure(videoID string) {
	s.SetJobFailed(videoID, false, "")
}

// persistLocked rewrites the backing document atomically. Callers hold
// the write lock, so document versions reach disk in mutation order.
func (s *VideoStore) persistLocked() {
	raw, err := json.MarshalIndent(document{Data: s.data}, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode video metadata document", "error", err)
		return
	}

	if err := WriteFileAtomic(s.path, raw); err != nil {
		slog.Warn("Failed to persist video metadata document", "path", s.path, "error", err)
	}
}
