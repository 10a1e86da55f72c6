package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInfoJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vid1.info.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadVideoInfo(t *testing.T) {
	path := writeInfoJSON(t, `{
		"id": "vid1",
		"title": "A Video",
		"uploader": "A Creator",
		"duration": 4210.5,
		"upload_date": "20240131",
		"thumbnail": "https://example.com/max.jpg",
		"thumbnails": [{"url": "https://example.com/low.jpg"}]
	}`)

	entry, err := ReadVideoInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "vid1", entry.VideoID)
	assert.Equal(t, "A Video", entry.VideoName)
	assert.Equal(t, "A Creator", entry.CreatorName)
	assert.Equal(t, 4210.5, entry.Length)
	assert.Equal(t, "2024-01-31", entry.UploadDate)
	assert.Equal(t, "https://example.com/max.jpg", entry.VideoThumbnailURL)
}

func TestReadVideoInfo_ThumbnailFallsBackToLastListEntry(t *testing.T) {
	path := writeInfoJSON(t, `{
		"id": "vid1",
		"thumbnails": [
			{"url": "https://example.com/low.jpg"},
			{"url": "https://example.com/high.jpg"}
		]
	}`)

	entry, err := ReadVideoInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/high.jpg", entry.VideoThumbnailURL)
}

func TestReadVideoInfo_NullFieldsTolerated(t *testing.T) {
	path := writeInfoJSON(t, `{
		"id": "vid1",
		"title": null,
		"uploader": null,
		"duration": null,
		"upload_date": null,
		"thumbnail": null
	}`)

	entry, err := ReadVideoInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "vid1", entry.VideoID)
	assert.Empty(t, entry.VideoName)
	assert.Zero(t, entry.Length)
	assert.Empty(t, entry.UploadDate)
}

func TestReadVideoInfo_MissingFile(t *testing.T) {
	_, err := ReadVideoInfo(filepath.Join(t.TempDir(), "absent.info.json"))
	assert.Error(t, err)
}

func TestFormatUploadDate(t *testing.T) {
	assert.Equal(t, "2024-01-31", formatUploadDate("20240131"))
	assert.Equal(t, "2024-1-3", formatUploadDate("2024-1-3"), "non-YYYYMMDD shapes pass through")
	assert.Equal(t, "", formatUploadDate(""))
}
