package summarize

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// clock renders a second count as HH:MM:SS from one hour up, MM:SS
// below it.
func clock(secs int64) string {
	d := time.Duration(secs) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%02d:%02d", int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatLine renders one transcript segment as a timestamped line. The
// model is told to carry these timestamps into the summary.
func formatLine(seg models.Segment) string {
	return fmt.Sprintf("[%s-%s]: %s", clock(int64(seg.Start)), clock(int64(seg.End)), seg.Text)
}

// buildChunks renders segments into timestamped lines and groups them
// into blocks of roughly chunkTokens tokens, estimated at four
// characters per token. An empty transcript still yields one (empty)
// chunk so the rolling pass runs at least once.
func buildChunks(segments []models.Segment, chunkTokens int) []string {
	budget := chunkTokens * 4
	out := make([]string, 0, 1)
	var current strings.Builder

	for _, seg := range segments {
		current.WriteString(formatLine(seg))
		current.WriteByte('\n')

		if current.Len() > budget {
			out = append(out, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 || len(out) == 0 {
		out = append(out, current.String())
	}
	return out
}
