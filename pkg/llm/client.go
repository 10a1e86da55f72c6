// Package llm talks to the OpenAI-compatible chat completion endpoint
// used for both summarization and video chat, in blocking and
// token-streaming form.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

const completionsPath = "/openai/v1/chat/completions"

// completeTimeout bounds blocking completion calls. Summarizing a full
// 30k-token chunk can take a while, so the budget is generous.
const completeTimeout = 5 * time.Minute

// Client is a chat-completion client for one upstream service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a client for the service at baseURL. The client
// carries no global timeout: streaming responses live as long as the
// model keeps producing tokens, and blocking calls bound themselves
// per request.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
	Model    string               `json:"model"`
	Stream   bool                 `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends messages to the model and returns the full response
// content once it is available.
func (c *Client) Complete(ctx context.Context, model string, messages []models.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	resp, err := c.post(ctx, chatRequest{Messages: messages, Model: model})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Stream sends messages to the model and invokes onToken for every
// non-empty content delta, in arrival order, until the stream ends.
// Malformed stream lines are skipped.
func (c *Client) Stream(ctx context.Context, model string, messages []models.ChatMessage, onToken func(token string)) error {
	resp, err := c.post(ctx, chatRequest{Messages: messages, Model: model, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if strings.Contains(line, "[DONE]") {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			continue
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onToken(chunk.Choices[0].Delta.Content)
		}
	}

	return scanner.Err()
}

func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	return resp, nil
}

// statusError turns a non-2xx response into an error carrying a short
// body snippet for the logs.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
