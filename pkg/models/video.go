// Package models contains the wire and domain types shared across the
// pipeline, chat, and HTTP layers. JSON field names on these types are
// part of the client contract and must not change.
package models

// VideoEntry is the persisted per-video metadata record, including the
// crash-recoverable failure state maintained by the video store.
type VideoEntry struct {
	VideoID           string  `json:"video_id"`
	VideoThumbnailURL string  `json:"video_thumbnail_url"`
	VideoName         string  `json:"video_name"`
	CreatorName       string  `json:"creator_name"`
	Length            float64 `json:"length"`
	UploadDate        string  `json:"upload_date"`

	JobFailed bool   `json:"job_failed"`
	LastError string `json:"last_error"`
}
