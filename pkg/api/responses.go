package api

// SummaryResponse is returned by GET /summaries/:id. Summary carries
// the Markdown when the video has a finished summary; otherwise
// NoSummaryReason says why there is none ("in_progress" or
// "not_found"). Both fields are always present on the wire.
type SummaryResponse struct {
	Summary         string `json:"summary"`
	NoSummaryReason string `json:"no_summary_reason"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
