package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

// fakeSegmenter writes n empty chunk files into outDir, standing in
// for ffmpeg.
type fakeSegmenter struct {
	chunks int
	err    error
	calls  int
}

func (f *fakeSegmenter) Split(_ context.Context, _ string, outDir string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, f.chunks)
	for i := 0; i < f.chunks; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("%03d.mp3", i))
		if err := os.WriteFile(path, []byte("chunk"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// fakeSTT returns the same segments for every chunk, optionally
// failing on a given call.
type fakeSTT struct {
	segments   []models.Segment
	failOnCall int
	calls      int
}

func (f *fakeSTT) TranscribeFile(_ context.Context, _, _ string) ([]models.Segment, error) {
	f.calls++
	if f.failOnCall > 0 && f.calls == f.failOnCall {
		return nil, errors.New("stt exploded")
	}
	out := make([]models.Segment, len(f.segments))
	copy(out, f.segments)
	return out, nil
}

// jobRecorder applies update closures to a local job and keeps the
// status trail.
type jobRecorder struct {
	job      models.Job
	statuses []models.JobStatus
	calls    int
}

func (r *jobRecorder) update(fn func(*models.Job)) {
	r.calls++
	before := r.job.Status
	fn(&r.job)
	if r.job.Status != before {
		r.statuses = append(r.statuses, r.job.Status)
	}
}

func newTestService(t *testing.T, segmenter Segmenter, stt SpeechToText) (*Service, store.Paths) {
	t.Helper()
	paths := store.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirs())
	return NewService(segmenter, stt, paths, 1200), paths
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcribe
// ─────────────────────────────────────────────────────────────────────────────

func TestTranscribe_SkipsWhenArtifactExists(t *testing.T) {
	segmenter := &fakeSegmenter{chunks: 1}
	stt := &fakeSTT{}
	svc, paths := newTestService(t, segmenter, stt)
	require.NoError(t, store.WriteSegments(paths.TranscriptionFile("vid1"), []models.Segment{
		{Start: 0, End: 1, Text: "done already"},
	}))

	rec := &jobRecorder{}
	require.NoError(t, svc.Transcribe(context.Background(), "vid1", rec.update))

	assert.Zero(t, segmenter.calls)
	assert.Zero(t, stt.calls)
	assert.Zero(t, rec.calls)
}

func TestTranscribe_MergesChunksOnOneTimeline(t *testing.T) {
	segmenter := &fakeSegmenter{chunks: 2}
	stt := &fakeSTT{segments: []models.Segment{
		{Start: 0, End: 5, Text: "first"},
		{Start: 5, End: 9, Text: "second"},
	}}
	svc, paths := newTestService(t, segmenter, stt)

	rec := &jobRecorder{}
	require.NoError(t, svc.Transcribe(context.Background(), "vid1", rec.update))

	merged, err := store.ReadSegments(paths.TranscriptionFile("vid1"))
	require.NoError(t, err)
	require.Len(t, merged, 4)

	// Chunk 0 keeps its own timestamps, chunk 1 is shifted by the
	// chunk length.
	assert.Equal(t, 0.0, merged[0].Start)
	assert.Equal(t, 9.0, merged[1].End)
	assert.Equal(t, 1200.0, merged[2].Start)
	assert.Equal(t, 1209.0, merged[3].End)

	assert.Equal(t, []models.JobStatus{models.StatusChunking, models.StatusTranscribing}, rec.statuses)
	assert.Equal(t, 2, rec.job.Progress.TranscriptionChunks)
	assert.Equal(t, 2, rec.job.Progress.TranscriptionChunksDone)
}

func TestTranscribe_RemovesChunkDirOnSuccess(t *testing.T) {
	segmenter := &fakeSegmenter{chunks: 1}
	stt := &fakeSTT{segments: []models.Segment{{Start: 0, End: 1, Text: "x"}}}
	svc, paths := newTestService(t, segmenter, stt)

	rec := &jobRecorder{}
	require.NoError(t, svc.Transcribe(context.Background(), "vid1", rec.update))

	_, err := os.Stat(paths.ChunkDir("vid1"))
	assert.True(t, os.IsNotExist(err))
}

func TestTranscribe_RemovesChunkDirOnFailure(t *testing.T) {
	segmenter := &fakeSegmenter{chunks: 2}
	stt := &fakeSTT{segments: []models.Segment{{Start: 0, End: 1, Text: "x"}}, failOnCall: 2}
	svc, paths := newTestService(t, segmenter, stt)

	rec := &jobRecorder{}
	err := svc.Transcribe(context.Background(), "vid1", rec.update)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1")
	assert.Contains(t, err.Error(), "stt exploded")

	_, statErr := os.Stat(paths.ChunkDir("vid1"))
	assert.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(paths.TranscriptionFile("vid1"))
	assert.True(t, os.IsNotExist(statErr), "a failed run must not leave a partial artifact")
}

func TestTranscribe_SegmenterErrorPropagates(t *testing.T) {
	segmenter := &fakeSegmenter{err: errors.New("ffmpeg missing")}
	svc, _ := newTestService(t, segmenter, &fakeSTT{})

	rec := &jobRecorder{}
	err := svc.Transcribe(context.Background(), "vid1", rec.update)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg missing")
}

// ─────────────────────────────────────────────────────────────────────────────
// Startup housekeeping
// ─────────────────────────────────────────────────────────────────────────────

func TestCleanupOrphanChunks(t *testing.T) {
	paths := store.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirs())

	orphan := paths.ChunkDir("vid1")
	require.NoError(t, os.MkdirAll(orphan, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(orphan, "000.mp3"), []byte("chunk"), 0o644))
	audio := paths.AudioFile("vid2")
	require.NoError(t, os.WriteFile(audio, []byte("mp3"), 0o644))

	require.NoError(t, CleanupOrphanChunks(paths))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "orphan chunk directory should be removed")

	_, err = os.Stat(audio)
	assert.NoError(t, err, "loose artifacts must be kept")
}

func TestCleanupOrphanChunks_NoDownloadsDir(t *testing.T) {
	paths := store.NewPaths(filepath.Join(t.TempDir(), "never-created"))
	assert.NoError(t, CleanupOrphanChunks(paths))
}
