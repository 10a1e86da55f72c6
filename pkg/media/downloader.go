// Package media acquires a video's raw material through yt-dlp: it
// probes for English captions first and converts them straight into
// the transcript artifact, falling back to downloading and extracting
// the audio track when the video has none.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/codeready-toolchain/vidsum/pkg/config"
	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// progressInterval is how often yt-dlp reports download progress.
const progressInterval = 250 * time.Millisecond

// Downloader drives yt-dlp for caption probing and audio extraction.
type Downloader struct {
	cfg   config.DownloaderConfig
	paths store.Paths
}

// NewDownloader creates a downloader writing artifacts under paths.
func NewDownloader(cfg config.DownloaderConfig, paths store.Paths) *Downloader {
	return &Downloader{cfg: cfg, paths: paths}
}

// Acquire obtains the raw material for videoID. When YouTube has
// captions it converts them into the transcript artifact and reports
// hadCaptions = true; otherwise it downloads the video and extracts
// the audio track. Videos whose artifacts already exist on disk are
// skipped without touching the network.
func (d *Downloader) Acquire(ctx context.Context, videoID string, update func(func(*models.Job))) (hadCaptions bool, err error) {
	if _, err := os.Stat(d.paths.AudioFile(videoID)); err == nil {
		slog.Info("Audio already downloaded, skipping acquisition", "video_id", videoID)
		return false, nil
	}
	if _, err := os.Stat(d.paths.TranscriptionFile(videoID)); err == nil {
		slog.Info("Transcript already on disk, skipping acquisition", "video_id", videoID)
		return true, nil
	}

	update(func(j *models.Job) {
		j.Status = models.StatusCheckingCaptions
	})

	captionPath, err := d.probeCaptions(ctx, videoID)
	if err != nil {
		return false, fmt.Errorf("caption probe failed: %w", err)
	}

	if captionPath == "" {
		slog.Info("No captions available, downloading audio", "video_id", videoID)
		if err := d.downloadAudio(ctx, videoID, update); err != nil {
			return false, fmt.Errorf("audio download failed: %w", err)
		}
		d.applyVideoMeta(videoID, update)
		return false, nil
	}

	slog.Info("Captions found", "video_id", videoID, "path", captionPath)
	update(func(j *models.Job) {
		j.Status = models.StatusDownloadedCaptions
		j.Progress.HadCaptions = true
	})

	d.applyVideoMeta(videoID, update)

	if err := d.formatCaptions(captionPath, videoID); err != nil {
		return false, fmt.Errorf("caption conversion failed: %w", err)
	}
	return true, nil
}

// probeCaptions asks yt-dlp for English automatic or uploaded
// subtitles without downloading media, along with the info.json
// metadata sidecar. It returns the path of the fetched caption file,
// or "" when the video has none.
func (d *Downloader) probeCaptions(ctx context.Context, videoID string) (string, error) {
	dl := ytdlp.New().
		WriteAutoSubs().
		WriteSubs().
		SkipDownload().
		Output(d.outputTemplate(videoID)).
		SubLangs("en,en.*").
		ConvertSubs("vtt").
		Quiet().
		WriteInfoJSON().
		LimitRate(d.cfg.RateLimit).
		Impersonate(d.cfg.Impersonate).
		SetExecutable(d.cfg.Binary)

	if _, err := dl.Run(ctx, watchURL(videoID)); err != nil {
		return "", err
	}

	return findCaptionFile(d.paths.DownloadsDir(), videoID)
}

// downloadAudio fetches the video and extracts its audio track to mp3,
// feeding yt-dlp's progress into the job.
func (d *Downloader) downloadAudio(ctx context.Context, videoID string, update func(func(*models.Job))) error {
	update(func(j *models.Job) {
		j.Status = models.StatusDownloadingAudio
	})

	dl := ytdlp.New().
		Output(d.outputTemplate(videoID)).
		ExtractAudio().
		AudioFormat("mp3").
		ProgressFunc(progressInterval, func(up ytdlp.ProgressUpdate) {
			update(func(j *models.Job) {
				j.Progress.PercentageString = up.PercentString()
				if up.Status == "finished" {
					j.Status = models.StatusExtractingAudio
				}
			})
		}).
		Quiet().
		WriteInfoJSON().
		LimitRate(d.cfg.RateLimit).
		SetExecutable(d.cfg.Binary)

	_, err := dl.Run(ctx, watchURL(videoID))
	return err
}

// applyVideoMeta reads the info.json sidecar and records the metadata
// on the job. Metadata is a nice-to-have: a missing or malformed
// sidecar is logged and skipped rather than failing the job.
func (d *Downloader) applyVideoMeta(videoID string, update func(func(*models.Job))) {
	meta, err := ReadVideoInfo(d.paths.InfoFile(videoID))
	if err != nil {
		slog.Warn("Failed to read video metadata sidecar", "video_id", videoID, "error", err)
		return
	}
	update(func(j *models.Job) {
		j.Progress.VideoMeta = &meta
	})
}

func (d *Downloader) outputTemplate(videoID string) string {
	return filepath.Join(d.paths.DownloadsDir(), videoID+".%(ext)s")
}

func watchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// findCaptionFile scans dir for a subtitle file fetched for videoID;
// yt-dlp names them <id>.<lang>.vtt. Returns "" when there is none.
func findCaptionFile(dir, videoID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, videoID+".") && strings.HasSuffix(strings.ToLower(name), ".vtt") {
			return filepath.Join(dir, name), nil
		}
	}
	return "", nil
}
