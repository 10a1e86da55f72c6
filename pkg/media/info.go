package media

import (
	"encoding/json"
	"os"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// videoInfo is the subset of yt-dlp's info.json the server keeps.
type videoInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"` // "YYYYMMDD"
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// ReadVideoInfo loads an info.json sidecar written by yt-dlp and maps
// it to a video metadata entry. When the top-level thumbnail is absent
// the last entry of the thumbnails list is used; yt-dlp orders it by
// ascending quality.
func ReadVideoInfo(path string) (models.VideoEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.VideoEntry{}, err
	}

	var info videoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return models.VideoEntry{}, err
	}

	thumb := info.Thumbnail
	if thumb == "" && len(info.Thumbnails) > 0 {
		thumb = info.Thumbnails[len(info.Thumbnails)-1].URL
	}

	return models.VideoEntry{
		VideoID:           info.ID,
		VideoThumbnailURL: thumb,
		VideoName:         info.Title,
		CreatorName:       info.Uploader,
		Length:            info.Duration,
		UploadDate:        formatUploadDate(info.UploadDate),
	}, nil
}

// formatUploadDate rewrites yt-dlp's YYYYMMDD into YYYY-MM-DD. Any
// other shape passes through untouched.
func formatUploadDate(s string) string {
	if len(s) != 8 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
}
