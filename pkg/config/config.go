// Package config loads and validates the server configuration: built-in
// defaults, an optional vidsum.yaml overlay, and environment overrides.
package config

import "time"

// Config is the fully resolved server configuration.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8010".
	ListenAddr string `yaml:"listen_addr"`

	// ContentDir is the root directory for all persisted artifacts:
	// downloads, transcriptions, summaries, chat transcripts, and the
	// video metadata document.
	ContentDir string `yaml:"content_dir"`

	Groq       GroqConfig       `yaml:"groq"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Downloader DownloaderConfig `yaml:"downloader"`
	Chat       ChatConfig       `yaml:"chat"`
}

// GroqConfig holds credentials and model selection for the upstream
// OpenAI-compatible speech-to-text and chat-completion services.
type GroqConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	TranscriptionModel string `yaml:"transcription_model"`
	SummaryModel       string `yaml:"summary_model"`
	ChatModel          string `yaml:"chat_model"`
}

// PipelineConfig controls the summarization pipeline's queues and chunking.
type PipelineConfig struct {
	// QueueCapacity is the capacity of each inter-stage queue. Intake
	// overflow is reported to the caller; the inner queues are sized
	// generously so they never block in practice.
	QueueCapacity int `yaml:"queue_capacity"`

	// ErrorCapacity is the capacity of the stage error channel.
	ErrorCapacity int `yaml:"error_capacity"`

	// ChunkSeconds is the duration of one audio chunk sent to the
	// transcription service.
	ChunkSeconds int `yaml:"chunk_seconds"`

	// SummaryChunkTokens is the approximate token budget of one
	// summarization chunk, estimated at 4 characters per token.
	SummaryChunkTokens int `yaml:"summary_chunk_tokens"`

	// GracefulShutdownTimeout bounds how long shutdown waits for
	// in-flight pipeline work to drain.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DownloaderConfig controls the yt-dlp invocation.
type DownloaderConfig struct {
	// Binary is the yt-dlp executable. Overridden by YTDLP_BIN.
	Binary string `yaml:"binary"`

	// RateLimit is passed through to yt-dlp's --limit-rate.
	RateLimit string `yaml:"rate_limit"`

	// Impersonate is the browser target passed to yt-dlp's --impersonate.
	Impersonate string `yaml:"impersonate"`
}

// ChatConfig controls the per-video chat worker.
type ChatConfig struct {
	// PersistErrors decides whether an upstream error surfaced as the
	// response text ("Error: ...") is appended to the persistent
	// transcript like a normal assistant turn.
	PersistErrors bool `yaml:"persist_errors"`

	// GracefulShutdownTimeout bounds how long shutdown waits for
	// in-flight chat responses to complete.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultConfig returns the built-in defaults. Every field is populated;
// the YAML overlay and environment overrides are applied on top.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8010",
		ContentDir: "./content",
		Groq: GroqConfig{
			BaseURL:            "https://api.groq.com",
			TranscriptionModel: "whisper-large-v3-turbo",
			SummaryModel:       "openai/gpt-oss-120b",
			ChatModel:          "moonshotai/kimi-k2-instruct",
		},
		Pipeline: PipelineConfig{
			QueueCapacity:           1024,
			ErrorCapacity:           10,
			ChunkSeconds:            1200,
			SummaryChunkTokens:      30_000,
			GracefulShutdownTimeout: 30 * time.Second,
		},
		Downloader: DownloaderConfig{
			Binary:      "yt-dlp",
			RateLimit:   "1M",
			Impersonate: "Chrome-100",
		},
		Chat: ChatConfig{
			PersistErrors:           true,
			GracefulShutdownTimeout: 60 * time.Second,
		},
	}
}
