// The vidsum server turns YouTube videos into Markdown summaries
// through a staged pipeline (captions or audio download, transcription,
// rolling summarization) and serves them over HTTP together with
// per-video chat and server-sent-event streams.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/vidsum/pkg/api"
	"github.com/codeready-toolchain/vidsum/pkg/chat"
	"github.com/codeready-toolchain/vidsum/pkg/config"
	"github.com/codeready-toolchain/vidsum/pkg/events"
	"github.com/codeready-toolchain/vidsum/pkg/jobs"
	"github.com/codeready-toolchain/vidsum/pkg/llm"
	"github.com/codeready-toolchain/vidsum/pkg/media"
	"github.com/codeready-toolchain/vidsum/pkg/pipeline"
	"github.com/codeready-toolchain/vidsum/pkg/store"
	"github.com/codeready-toolchain/vidsum/pkg/summarize"
	"github.com/codeready-toolchain/vidsum/pkg/transcribe"
	"github.com/codeready-toolchain/vidsum/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting vidsum", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Prepare the content tree and the video metadata store
	paths := store.NewPaths(cfg.ContentDir)
	if err := paths.EnsureDirs(); err != nil {
		slog.Error("Failed to create content directories", "error", err)
		os.Exit(1)
	}

	videos, err := store.NewVideoStore(paths.DBFile())
	if err != nil {
		slog.Error("Failed to open video store", "error", err)
		os.Exit(1)
	}

	// 3. One-time startup cleanup of chunk directories a crashed run
	// left behind
	if err := transcribe.CleanupOrphanChunks(paths); err != nil {
		slog.Error("Failed to clean up orphan chunk directories", "error", err)
	}

	// 4. Job registry and jobs event stream
	jobsHub := events.NewJobsHub()
	registry := jobs.NewRegistry(videos, jobsHub)

	// 5. Upstream clients and pipeline stages
	llmClient := llm.NewClient(cfg.Groq.BaseURL, cfg.Groq.APIKey)

	downloader := media.NewDownloader(cfg.Downloader, paths)
	transcriber := transcribe.NewService(
		&transcribe.FFmpegSegmenter{ChunkSeconds: cfg.Pipeline.ChunkSeconds},
		transcribe.NewClient(cfg.Groq.BaseURL, cfg.Groq.APIKey, cfg.Groq.TranscriptionModel),
		paths,
		cfg.Pipeline.ChunkSeconds,
	)
	summarizer := summarize.NewService(llmClient, paths, cfg.Groq.SummaryModel, cfg.Pipeline.SummaryChunkTokens)

	// 6. Start pipeline workers (before the HTTP server takes traffic)
	pipe := pipeline.New(cfg.Pipeline, registry, videos, downloader, transcriber, summarizer)
	pipe.Start()

	// 7. Chat rooms and chat event stream
	transcripts := chat.NewTranscriptStore(paths)
	chatHub := events.NewChatHub()
	chatMgr := chat.NewManager(cfg.Chat, cfg.Groq.ChatModel, llmClient, chatHub, transcripts, paths)
	chatHub.SetRooms(chatMgr)

	// 8. Start HTTP server (non-blocking)
	httpServer := api.NewServer(registry, pipe, videos, jobsHub, chatHub, chatMgr, transcripts, paths)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := httpServer.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("vidsum started successfully", "content_dir", cfg.ContentDir)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: drain chat first (responses are short),
	// then the pipeline, then stop the HTTP server with its own budget.
	chatCtx, chatCancel := context.WithTimeout(ctx, cfg.Chat.GracefulShutdownTimeout)
	chatMgr.Stop(chatCtx)
	chatCancel()

	pipeCtx, pipeCancel := context.WithTimeout(ctx, cfg.Pipeline.GracefulShutdownTimeout)
	pipe.Stop(pipeCtx)
	pipeCancel()

	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
