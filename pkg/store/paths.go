// Package store persists everything vidsum keeps on disk: the video
// metadata document and the artifact layout under the content
// directory (downloaded audio, transcriptions, summaries, and chat
// transcripts).
package store

import (
	"os"
	"path/filepath"
)

// Paths computes the on-disk location of every artifact under the
// content directory:
//
//	<root>/db.json                    video metadata document
//	<root>/downloads/<id>.mp3         extracted audio
//	<root>/downloads/<id>.info.json   downloader metadata sidecar
//	<root>/downloads/<id>/            transient audio chunk directory
//	<root>/transcriptions/<id>.json   merged transcript segments
//	<root>/summaries/<id>.md          final summary
//	<root>/chats/<id>.json            chat transcript
type Paths struct {
	root string
}

// NewPaths returns the artifact layout rooted at contentDir.
func NewPaths(contentDir string) Paths {
	return Paths{root: contentDir}
}

// Root returns the content directory itself.
func (p Paths) Root() string {
	return p.root
}

// DBFile returns the path of the video metadata document.
func (p Paths) DBFile() string {
	return filepath.Join(p.root, "db.json")
}

// DownloadsDir returns the directory holding audio and caption downloads.
func (p Paths) DownloadsDir() string {
	return filepath.Join(p.root, "downloads")
}

// AudioFile returns the extracted audio artifact for a video.
func (p Paths) AudioFile(videoID string) string {
	return filepath.Join(p.DownloadsDir(), videoID+".mp3")
}

// InfoFile returns the downloader's metadata sidecar for a video.
func (p Paths) InfoFile(videoID string) string {
	return filepath.Join(p.DownloadsDir(), videoID+".info.json")
}

// ChunkDir returns the transient directory holding one video's audio
// chunks while it is being transcribed. Removed after transcription.
func (p Paths) ChunkDir(videoID string) string {
	return filepath.Join(p.DownloadsDir(), videoID)
}

// TranscriptionsDir returns the directory holding transcript artifacts.
func (p Paths) TranscriptionsDir() string {
	return filepath.Join(p.root, "transcriptions")
}

// TranscriptionFile returns the merged transcript artifact for a video.
func (p Paths) TranscriptionFile(videoID string) string {
	return filepath.Join(p.TranscriptionsDir(), videoID+".json")
}

// SummariesDir returns the directory holding summary artifacts.
func (p Paths) SummariesDir() string {
	return filepath.Join(p.root, "summaries")
}

// SummaryFile returns the summary artifact for a video.
func (p Paths) SummaryFile(videoID string) string {
	return filepath.Join(p.SummariesDir(), videoID+".md")
}

// ChatsDir returns the directory holding chat transcripts.
func (p Paths) ChatsDir() string {
	return filepath.Join(p.root, "chats")
}

// ChatFile returns the chat transcript for a video.
func (p Paths) ChatFile(videoID string) string {
	return filepath.Join(p.ChatsDir(), videoID+".json")
}

// EnsureDirs creates the full directory layout. Safe to call on every
// startup.
func (p Paths) EnsureDirs() error {
	dirs := []string{
		p.root,
		p.DownloadsDir(),
		p.TranscriptionsDir(),
		p.SummariesDir(),
		p.ChatsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
