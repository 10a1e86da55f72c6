// Package transcribe turns a downloaded audio artifact into the
// transcript artifact: the audio is split into fixed-length chunks,
// each chunk is sent to the speech-to-text service, and the returned
// segments are shifted onto one contiguous timeline and persisted.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// transcriptionsPath is the OpenAI-compatible transcription endpoint,
// relative to the configured base URL.
const transcriptionsPath = "/openai/v1/audio/transcriptions"

// Client calls the speech-to-text service with one audio file per
// request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient creates a speech-to-text client for an OpenAI-compatible
// endpoint rooted at baseURL.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// transcriptionResponse is the verbose_json shape returned by the
// service; only the timed segments are kept.
type transcriptionResponse struct {
	Segments []models.Segment `json:"segments"`
}

// TranscribeFile sends one audio file and returns its timed segments.
// prompt carries running context from earlier chunks and may be empty.
func (c *Client) TranscribeFile(ctx context.Context, path, prompt string) ([]models.Segment, error) {
	audio, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio chunk: %w", err)
	}
	defer audio.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to read audio chunk: %w", err)
	}

	fields := map[string]string{
		"model":                     c.model,
		"language":                  "en",
		"response_format":           "verbose_json",
		"prompt":                    prompt,
		"timestamp_granularities[]": "segment",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcriptionsPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription request failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return parsed.Segments, nil
}
