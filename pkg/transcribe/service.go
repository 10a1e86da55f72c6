package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// Segmenter splits an audio file into bounded chunks. Implemented by
// FFmpegSegmenter.
type Segmenter interface {
	Split(ctx context.Context, audioPath, outDir string) ([]string, error)
}

// SpeechToText transcribes one audio chunk. Implemented by Client.
type SpeechToText interface {
	TranscribeFile(ctx context.Context, path, prompt string) ([]models.Segment, error)
}

// Service produces the transcript artifact for a downloaded audio
// artifact.
type Service struct {
	segmenter    Segmenter
	stt          SpeechToText
	paths        store.Paths
	chunkSeconds int
}

// NewService wires a transcription service from its parts.
func NewService(segmenter Segmenter, stt SpeechToText, paths store.Paths, chunkSeconds int) *Service {
	return &Service{
		segmenter:    segmenter,
		stt:          stt,
		paths:        paths,
		chunkSeconds: chunkSeconds,
	}
}

// Transcribe chunks videoID's audio, transcribes each chunk in order,
// shifts the segment timestamps onto the full video's timeline, and
// persists the merged transcript. A video whose transcript artifact
// already exists is skipped. The transient chunk directory is removed
// on every exit path.
func (s *Service) Transcribe(ctx context.Context, videoID string, update func(func(*models.Job))) error {
	artifact := s.paths.TranscriptionFile(videoID)
	if _, err := os.Stat(artifact); err == nil {
		slog.Info("Transcript already on disk, skipping transcription", "video_id", videoID)
		return nil
	}

	update(func(j *models.Job) {
		j.Status = models.StatusChunking
	})

	defer s.removeChunks(videoID)
	chunks, err := s.segmenter.Split(ctx, s.paths.AudioFile(videoID), s.paths.ChunkDir(videoID))
	if err != nil {
		return fmt.Errorf("failed to chunk audio: %w", err)
	}

	slog.Info("Audio chunked", "video_id", videoID, "chunks", len(chunks))
	update(func(j *models.Job) {
		j.Status = models.StatusTranscribing
		j.Progress.TranscriptionChunks = len(chunks)
	})

	merged := make([]models.Segment, 0)
	var offset float64

	for i, chunk := range chunks {
		segments, err := s.stt.TranscribeFile(ctx, chunk, "")
		if err != nil {
			return fmt.Errorf("failed to transcribe chunk %d: %w", i, err)
		}

		for n := range segments {
			segments[n].Start += offset
			segments[n].End += offset
		}
		merged = append(merged, segments...)

		done := i + 1
		update(func(j *models.Job) {
			j.Progress.TranscriptionChunksDone = done
		})

		// Chunks are cut to a fixed length, so each one starts a full
		// chunk length further into the video.
		offset += float64(s.chunkSeconds)
	}

	return store.WriteSegments(artifact, merged)
}

// removeChunks deletes the transient chunk directory.
func (s *Service) removeChunks(videoID string) {
	if err := os.RemoveAll(s.paths.ChunkDir(videoID)); err != nil {
		slog.Warn("Failed to remove chunk directory", "video_id", videoID, "error", err)
	}
}

// CleanupOrphanChunks removes chunk directories left under downloads/
// by a run that crashed mid-transcription. Called once at startup;
// the jobs that owned them re-chunk from the audio artifact when
// retried.
func CleanupOrphanChunks(paths store.Paths) error {
	entries, err := os.ReadDir(paths.DownloadsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(paths.DownloadsDir(), e.Name())
		slog.Warn("Removing leftover chunk directory from previous run", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
