// Package summarize turns a transcript artifact into a Markdown
// summary with a rolling pass: the transcript is cut into timestamped
// chunks and each chunk extends the summary produced by the previous
// chunks.
package summarize

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/vidsum/pkg/models"
	"github.com/codeready-toolchain/vidsum/pkg/store"
)

// systemPrompt is the summarizer persona sent with every rolling step.
const systemPrompt = "You are a summarizer agent. First, based on the content type, decide what method of organizing the data would be most helpful for the user. For example, if it's informative, summarize as a tutorial. If it's a funny video, describe what happens. If it's a course, create sections and summarize those sections etc. Use markdown, BUT DO NOT INCLUDE ```markdown```. Then, summarize the video in that way. DO NOT USE EMOJIS. If you are given a current summary, simply extend it to include the new data as instructed. Part of your input is [H:MM:SS] timestamps. Include those when referencing anything from the transcription"

// Completer is the blocking chat-completion call the summarizer needs.
// Implemented by the LLM client.
type Completer interface {
	Complete(ctx context.Context, model string, messages []models.ChatMessage) (string, error)
}

// Service produces the summary artifact for a transcribed video.
type Service struct {
	llm         Completer
	paths       store.Paths
	model       string
	chunkTokens int
}

// NewService wires a summarization service from its parts.
func NewService(llm Completer, paths store.Paths, model string, chunkTokens int) *Service {
	return &Service{
		llm:         llm,
		paths:       paths,
		model:       model,
		chunkTokens: chunkTokens,
	}
}

// Summarize builds the summary artifact for videoID from its
// transcript artifact, folding one chunk at a time into a rolling
// summary. Only the final summary is persisted; a failed run leaves no
// artifact behind.
func (s *Service) Summarize(ctx context.Context, videoID string, update func(func(*models.Job))) error {
	segments, err := store.ReadSegments(s.paths.TranscriptionFile(videoID))
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	chunks := buildChunks(segments, s.chunkTokens)
	update(func(j *models.Job) {
		j.Progress.SummaryChunks = len(chunks)
	})

	summary := ""
	for i, chunk := range chunks {
		summary, err = s.extend(ctx, chunk, summary)
		if err != nil {
			return fmt.Errorf("failed to summarize chunk %d: %w", i, err)
		}

		done := i + 1
		update(func(j *models.Job) {
			j.Progress.SummaryChunksDone = done
		})
	}

	return store.WriteFileAtomic(s.paths.SummaryFile(videoID), []byte(summary))
}

// extend performs one rolling step: the model folds chunk into the
// summary accumulated so far.
func (s *Service) extend(ctx context.Context, chunk, current string) (string, error) {
	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: fmt.Sprintf("Please summarize this: %s", chunk)},
		{Role: models.RoleUser, Content: fmt.Sprintf("Here is the current summary. Combine it with the transcription below to form a more complete summary. If there is no current summary, just write an initial one: %s", current)},
	}
	return s.llm.Complete(ctx, s.model, messages)
}
