package providers

import "context"

// ID names one of the supported upstream providers. The set is closed:
// adding a provider means adding an adapter and a registry entry.
type ID string

const (
	OpenAI   ID = "openai"
	Claude   ID = "claude"
	Gemini   ID = "gemini"
	DeepSeek ID = "deepseek"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of the conversation history, oldest first.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type ChatResponse struct {
	Text string
}

// Provider translates the uniform request into one upstream's wire format,
// performs a single call and extracts the assistant text. Implementations
// never retry; a failed attempt is surfaced to the caller as-is.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
