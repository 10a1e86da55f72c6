package media

import (
	"os"

	"github.com/asticode/go-astisub"

	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// overlapRunes returns the largest k such that the last k runes of
// prev equal the first k runes of next.
func overlapRunes(prev, next string) int {
	rp, rn := []rune(prev), []rune(next)
	max := len(rp)
	if len(rn) < max {
		max = len(rn)
	}
	for k := max; k > 0; k-- {
		if string(rp[len(rp)-k:]) == string(rn[:k]) {
			return k
		}
	}
	return 0
}

// appendSegment appends seg after trimming the previous segment's
// trailing overlap with seg's text. Automatic captions repeat the tail
// of one cue at the head of the next; a full overlap drops the
// previous segment entirely.
func appendSegment(segments []models.Segment, seg models.Segment) []models.Segment {
	if n := len(segments); n > 0 {
		prev := []rune(segments[n-1].Text)
		k := overlapRunes(segments[n-1].Text, seg.Text)
		if k == len(prev) {
			segments = segments[:n-1]
		} else if k > 0 {
			segments[n-1].Text = string(prev[:len(prev)-k])
		}
	}
	return append(segments, seg)
}

// formatCaptions converts a fetched VTT file into the transcript
// artifact, dropping empty and sub-second cues and de-duplicating
// overlapping text, then removes the VTT file.
func (d *Downloader) formatCaptions(path, videoID string) error {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return err
	}

	segments := make([]models.Segment, 0, len(subs.Items))
	for _, item := range subs.Items {
		start := item.StartAt.Seconds()
		end := item.EndAt.Seconds()
		text := item.String()
		if text == "" || int64(start) == int64(end) {
			continue
		}
		segments = appendSegment(segments, models.Segment{Start: start, End: end, Text: text})
	}

	if err := store.WriteSegments(d.paths.TranscriptionFile(videoID), segments); err != nil {
		return err
	}
	return os.Remove(path)
}
