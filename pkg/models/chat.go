package models

// Chat message roles. These match the role strings of the upstream
// OpenAI-compatible chat API, so transcripts can be replayed as prior
// turns without translation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat conversation, both on the wire to
// the language-model service and in the persisted per-video transcript.
type ChatMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}
