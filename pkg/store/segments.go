package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// WriteSegments persists a transcript artifact as a JSON array of
// timed segments.
func WriteSegments(path string, segments []models.Segment) error {
	raw, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return WriteFileAtomic(path, raw)
}

// ReadSegments loads a transcript artifact written by WriteSegments.
func ReadSegments(path string) ([]models.Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var segments []models.Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, fmt.Errorf("failed to parse transcript %s: %w", path, err)
	}
	return segments, nil
}
