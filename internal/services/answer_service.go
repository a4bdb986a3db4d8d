package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/core/vectorindex"
	"github.com/markdave123-py/docqa/internal/observability"
)

// Outcome tells which path produced an Answer.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeNoContext Outcome = "no_context"
	OutcomeDegraded  Outcome = "degraded"
)

// NoContextAnswer is returned without calling the LLM when retrieval finds
// nothing in the document.
const NoContextAnswer = "No relevant information found in this document to answer your question."

const (
	DefaultTopK = 3

	maxTitleRunes    = 120
	maxSuggestions   = 5
	untitledDocument = "Untitled document"
	emptyAnalysis    = "No text could be extracted from this document."
)

var (
	answerParams   = core.GenerateParams{Temperature: 0.6, TopP: 1, MaxTokens: 1024}
	analysisParams = core.GenerateParams{Temperature: 0.7, MaxTokens: 1024}
	titleParams    = core.GenerateParams{Temperature: 0.7, MaxTokens: 50}
	promptParams   = core.GenerateParams{Temperature: 0.7, MaxTokens: 256}
)

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

var defaultPrompts = []string{
	"What is this document about?",
	"Summarize the key points of this document.",
	"Who are the parties or people mentioned?",
	"What important dates or deadlines does it mention?",
}

// Answer is always displayable. Err carries the cause when Outcome is
// OutcomeDegraded; Context holds the retrieved chunks in ranked order.
type Answer struct {
	Text    string
	Outcome Outcome
	Context []vectorindex.Hit
	Err     error
}

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever is the read side of the vector index.
type Retriever interface {
	Query(ctx context.Context, scope core.ScopeID, vec []float32, k int) ([]vectorindex.Hit, error)
}

type AnswerService struct {
	embedder QueryEmbedder
	index    Retriever
	llm      core.LLMProvider
	topK     int
}

func NewAnswerService(embedder QueryEmbedder, index Retriever, llm core.LLMProvider, topK int) *AnswerService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &AnswerService{embedder: embedder, index: index, llm: llm, topK: topK}
}

// Retrieve returns the top-k chunks of scope for question.
func (s *AnswerService) Retrieve(ctx context.Context, scope core.ScopeID, question string) ([]vectorindex.Hit, error) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return s.index.Query(ctx, scope, vec, s.topK)
}

// Answer grounds the question in the scope's chunks with one LLM call. It
// never returns an error; failures come back as OutcomeDegraded.
func (s *AnswerService) Answer(ctx context.Context, question string, scope core.ScopeID) Answer {
	ctx, span := observability.StartSpan(ctx, "answer.answer",
		attribute.String("scope", scope.String()),
	)
	var res Answer
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		observability.EndSpan(span, res.Err)
	}()

	hits, err := s.Retrieve(ctx, scope, question)
	if err != nil {
		log.Printf("AnswerService: retrieval for %s failed: %v", scope, err)
		res = Answer{
			Text:    "Sorry, I could not search this document right now. Please try again.",
			Outcome: OutcomeDegraded,
			Err:     err,
		}
		return res
	}
	if len(hits) == 0 {
		res = Answer{Text: NoContextAnswer, Outcome: OutcomeNoContext}
		return res
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	messages := []core.Message{
		{Role: core.RoleSystem, Content: "You are a document assistant. Answer the question using only the supplied context. " +
			"If the context does not contain the answer, say so. Provide clear and concise answers."},
		{Role: core.RoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(texts, "\n\n"), question)},
	}

	out, err := s.llm.Complete(ctx, messages, answerParams)
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("%w: empty completion", core.ErrLLMService)
	}
	if err != nil {
		log.Printf("AnswerService: completion for %s failed: %v", scope, err)
		res = Answer{
			Text:    fmt.Sprintf("Error generating answer: %v", err),
			Outcome: OutcomeDegraded,
			Context: hits,
			Err:     err,
		}
		return res
	}

	res = Answer{Text: strings.TrimSpace(out), Outcome: OutcomeAnswered, Context: hits}
	return res
}

// Summarize produces the title and analysis of a new document from its first
// chunk. Unlike Answer, LLM failures are returned: a document without a title
// is not ingested.
func (s *AnswerService) Summarize(ctx context.Context, chunks []string) (sum core.Summary, err error) {
	ctx, span := observability.StartSpan(ctx, "answer.summarize",
		attribute.Int("chunks", len(chunks)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if len(chunks) == 0 {
		return core.Summary{Title: untitledDocument, Analysis: emptyAnalysis}, nil
	}
	content := chunks[0]

	analysis, err := s.llm.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: "You are a document analyzer. Analyze the provided content directly."},
		{Role: core.RoleUser, Content: "Analyze this document and provide:\n" +
			"1. Document type and purpose\n2. Key points\n3. Important terms\n\n" +
			"Content: " + content + "\n\n" +
			"Provide a clear analysis of the above points based on the content."},
	}, analysisParams)
	if err != nil {
		return core.Summary{}, llmError("analysis", err)
	}

	title, err := s.llm.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: "You are a document analyzer."},
		{Role: core.RoleUser, Content: "Generate a concise and descriptive title for this document. " +
			"The title should be clear and indicate the document's main purpose.\n\n" +
			"Content: " + content + "\n\nReturn only the title, nothing else."},
	}, titleParams)
	if err != nil {
		return core.Summary{}, llmError("title", err)
	}

	title = cleanTitle(title)
	if title == "" {
		title = untitledDocument
	}
	return core.Summary{Title: title, Analysis: strings.TrimSpace(analysis)}, nil
}

// SuggestPrompts asks the LLM for questions a reader could ask about the
// document. Any failure falls back to generic prompts.
func (s *AnswerService) SuggestPrompts(ctx context.Context, scope core.ScopeID) []string {
	hits, err := s.Retrieve(ctx, scope, "main topics, parties, obligations and key facts of this document")
	if err != nil || len(hits) == 0 {
		return append([]string(nil), defaultPrompts...)
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	out, err := s.llm.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: "You help users explore documents."},
		{Role: core.RoleUser, Content: fmt.Sprintf(
			"Based on this document content, suggest %d short questions a reader might ask. "+
				"Return one question per line with no numbering.\n\nContent:\n%s",
			maxSuggestions, strings.Join(texts, "\n\n"))},
	}, promptParams)
	if err != nil {
		log.Printf("AnswerService: prompt suggestions for %s failed: %v", scope, err)
		return append([]string(nil), defaultPrompts...)
	}

	prompts := parsePrompts(out, maxSuggestions)
	if len(prompts) == 0 {
		return append([]string(nil), defaultPrompts...)
	}
	return prompts
}

func llmError(step string, err error) error {
	if errors.Is(err, core.ErrLLMService) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %v", step, core.ErrLLMService, err)
}

// cleanTitle keeps the first non-empty line, drops wrapping quotes and
// markdown, and bounds the length.
func cleanTitle(raw string) string {
	var title string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = line
			break
		}
	}
	title = strings.TrimLeft(title, "#* ")
	title = strings.TrimPrefix(title, "Title:")
	title = strings.Trim(strings.TrimSpace(title), "\"'`*")
	title = strings.TrimSpace(title)

	if utf8.RuneCountInString(title) > maxTitleRunes {
		r := []rune(title)
		title = strings.TrimRightFunc(string(r[:maxTitleRunes]), unicode.IsSpace)
	}
	return title
}

func parsePrompts(raw string, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}
