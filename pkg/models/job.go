package models

// JobStatus represents the current state of a summarization job
type JobStatus string

const (
	StatusPending            JobStatus = "pending"
	StatusCheckingCaptions   JobStatus = "checking_for_captions"
	StatusDownloadedCaptions JobStatus = "downloaded_captions"
	StatusDownloadingAudio   JobStatus = "downloading_audio"
	StatusExtractingAudio    JobStatus = "extracting_audio"
	StatusChunking           JobStatus = "chunking"
	StatusTranscribing       JobStatus = "transcribing"
	StatusSummarizing        JobStatus = "summarizing"
	StatusFinished           JobStatus = "finished"
	StatusFailed             JobStatus = "failed"
)

// JobProgress carries per-stage progress detail inside a Job. The JSON
// keys are frozen; note both counters keep the legacy _transcribed
// suffix, including the summary one.
type JobProgress struct {
	VideoMeta               *VideoEntry `json:"VideoMeta"`
	PercentageString        string      `json:"percentage_string"`
	HadCaptions             bool        `json:"had_captions"`
	TranscriptionChunks     int         `json:"transcription_chunks"`
	TranscriptionChunksDone int         `json:"transcription_chunks_transcribed"`
	SummaryChunks           int         `json:"summary_chunks"`
	SummaryChunksDone       int         `json:"summary_chunks_transcribed"`
}

// Job is the wire representation of one summarization job as sent on
// the jobs event stream and returned by the job endpoints.
type Job struct {
	VideoID  string      `json:"video_id"`
	Status   JobStatus   `json:"status"`
	Error    string      `json:"error"`
	Progress JobProgress `json:"job_progress"`
}
