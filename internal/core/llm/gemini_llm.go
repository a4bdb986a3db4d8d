package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/docqa/internal/core"
)

const DefaultChatModel = "gemini-1.5-flash"

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultChatModel
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete sends the conversation to Gemini. System messages become the
// system instruction, earlier turns become chat history and the final user
// message is sent.
func (g *GeminiLLM) Complete(ctx context.Context, messages []core.Message, params core.GenerateParams) (string, error) {
	system, history, last, err := splitConversation(messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrLLMService, err)
	}

	m := g.client.GenerativeModel(g.modelName)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	m.SetTemperature(params.Temperature)
	if params.TopP > 0 {
		m.SetTopP(params.TopP)
	}
	if params.MaxTokens > 0 {
		m.SetMaxOutputTokens(params.MaxTokens)
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", core.ErrLLMService, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", core.ErrLLMService)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func splitConversation(messages []core.Message) (system string, history []*genai.Content, last string, err error) {
	var sys []string
	var turns []core.Message
	for _, msg := range messages {
		if msg.Role == core.RoleSystem {
			sys = append(sys, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != core.RoleUser {
		return "", nil, "", errors.New("conversation must end with a user message")
	}

	for _, msg := range turns[:len(turns)-1] {
		role := "user"
		if msg.Role == core.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return strings.Join(sys, "\n\n"), history, turns[len(turns)-1].Content, nil
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
