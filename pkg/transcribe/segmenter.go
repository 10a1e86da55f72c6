package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// FFmpegSegmenter splits an audio file into fixed-duration mp3 chunks
// with ffmpeg's segment muxer. The last chunk may be shorter.
type FFmpegSegmenter struct {
	// ChunkSeconds is the target duration of each chunk.
	ChunkSeconds int
}

// Split writes sequentially numbered chunks of audioPath into outDir
// and returns their paths in playback order.
func (s FFmpegSegmenter) Split(ctx context.Context, audioPath, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", audioPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "96k",
		"-f", "segment",
		"-segment_time", strconv.Itoa(s.ChunkSeconds),
		"-reset_timestamps", "1",
		"-map", "0:a:0",
		filepath.Join(outDir, "%03d.mp3"),
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		slog.Error("ffmpeg segmentation failed", "audio", audioPath, "output", string(output))
		return nil, fmt.Errorf("ffmpeg segmentation failed: %w", err)
	}

	// %03d chunk names sort lexicographically in playback order.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk directory: %w", err)
	}

	chunks := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		chunks = append(chunks, filepath.Join(outDir, e.Name()))
	}
	return chunks, nil
}
