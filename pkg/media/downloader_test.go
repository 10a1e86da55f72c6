package media

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// jobRecorder applies update closures to a local job so tests can
// inspect the mutations a stage performed.
type jobRecorder struct {
	job   models.Job
	calls int
}

func (r *jobRecorder) update(fn func(*models.Job)) {
	r.calls++
	fn(&r.job)
}

func TestAcquire_SkipsWhenAudioExists(t *testing.T) {
	d, paths := newTestDownloader(t)
	require.NoError(t, os.WriteFile(paths.AudioFile("vid1"), []byte("mp3 bytes"), 0o644))

	rec := &jobRecorder{}
	hadCaptions, err := d.Acquire(context.Background(), "vid1", rec.update)

	require.NoError(t, err)
	assert.False(t, hadCaptions)
	assert.Zero(t, rec.calls, "an already-downloaded video must not mutate the job")
}

func TestAcquire_SkipsWhenTranscriptExists(t *testing.T) {
	d, paths := newTestDownloader(t)
	require.NoError(t, store.WriteSegments(paths.TranscriptionFile("vid1"), []models.Segment{
		{Start: 0, End: 2, Text: "already transcribed"},
	}))

	rec := &jobRecorder{}
	hadCaptions, err := d.Acquire(context.Background(), "vid1", rec.update)

	require.NoError(t, err)
	assert.True(t, hadCaptions, "an existing transcript short-circuits straight to summarization")
	assert.Zero(t, rec.calls)
}

func TestApplyVideoMeta_RecordsMetadataOnJob(t *testing.T) {
	d, paths := newTestDownloader(t)
	require.NoError(t, os.WriteFile(paths.InfoFile("vid1"), []byte(`{
		"id": "vid1",
		"title": "A Video",
		"uploader": "A Creator",
		"duration": 90,
		"upload_date": "20240131",
		"thumbnail": "https://example.com/t.jpg"
	}`), 0o644))

	rec := &jobRecorder{}
	d.applyVideoMeta("vid1", rec.update)

	require.NotNil(t, rec.job.Progress.VideoMeta)
	assert.Equal(t, "A Video", rec.job.Progress.VideoMeta.VideoName)
	assert.Equal(t, "2024-01-31", rec.job.Progress.VideoMeta.UploadDate)
}

func TestApplyVideoMeta_MissingSidecarLeavesJobUntouched(t *testing.T) {
	d, _ := newTestDownloader(t)

	rec := &jobRecorder{}
	d.applyVideoMeta("vid1", rec.update)

	assert.Zero(t, rec.calls)
	assert.Nil(t, rec.job.Progress.VideoMeta)
}

func TestWatchURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", watchURL("abc123"))
}
