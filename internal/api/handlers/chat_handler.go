package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/docqa/internal/models"
)

type ChatHandler struct {
	docs Documents
}

func NewChatHandler(docs Documents) *ChatHandler {
	return &ChatHandler{docs: docs}
}

type askRequest struct {
	Question string `json:"question"`
}

type ChatRequest struct {
	DocumentID string `json:"document_id"`
	Query      string `json:"query"`
}

type source struct {
	Seq   int     `json:"seq"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type chatResponse struct {
	DocumentID string    `json:"document_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Outcome    string    `json:"outcome"`
	Sources    []source  `json:"sources"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ask handles POST /api/documents/{id}/chat.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.answer(w, r, chi.URLParam(r, "id"), req.Question)
}

// QueryDocument handles POST /api/chat/query.
func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	h.answer(w, r, req.DocumentID, req.Query)
}

func (h *ChatHandler) answer(w http.ResponseWriter, r *http.Request, docID, question string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	question = strings.TrimSpace(question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ans, msg, err := h.docs.Ask(r.Context(), userID, docID, question)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sources := make([]source, len(ans.Context))
	for i, hit := range ans.Context {
		sources[i] = source{Seq: hit.Seq, Text: hit.Text, Score: hit.Score}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		DocumentID: docID,
		Question:   question,
		Answer:     ans.Text,
		Outcome:    string(ans.Outcome),
		Sources:    sources,
		CreatedAt:  msg.CreatedAt,
	})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	msgs, err := h.docs.ChatHistory(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	prompts, err := h.docs.SuggestPrompts(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"prompts": prompts})
}
