package core

import "context"

// EmbeddingProvider turns texts into vectors. Implementations return one
// vector per input text, in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Message is one turn handed to the completion capability.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateParams bounds a completion call.
type GenerateParams struct {
	Temperature float32
	TopP        float32
	MaxTokens   int32
}

type LLMProvider interface {
	Complete(ctx context.Context, messages []Message, params GenerateParams) (string, error)
}

// Summary is what ingestion hands back to the record-keeping layer.
type Summary struct {
	Title    string `json:"title"`
	Analysis string `json:"analysis"`
}
