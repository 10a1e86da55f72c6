package models

// Segment is one timed span of transcript text. Times are seconds from
// the start of the video. The transcription artifact on disk is a JSON
// array of these.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
