package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/docqa/internal/models"
	"github.com/markdave123-py/docqa/internal/services"
)

var allowedExtensions = map[string]bool{".pdf": true, ".docx": true, ".txt": true}

// Documents is the document side of the service layer.
type Documents interface {
	Upload(ctx context.Context, userID, filename, declaredType string, data []byte) (*services.UploadResult, error)
	Get(ctx context.Context, userID, docID string) (*services.DocumentDetail, error)
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	History(ctx context.Context, userID string) ([]models.DocumentHistory, error)
	Delete(ctx context.Context, userID, docID string) error
	Ask(ctx context.Context, userID, docID, question string) (services.Answer, *models.ChatMessage, error)
	ChatHistory(ctx context.Context, userID, docID string) ([]models.ChatMessage, error)
	SuggestPrompts(ctx context.Context, userID, docID string) ([]string, error)
	Reindex(ctx context.Context, userID, docID string) error
}

type DocumentHandler struct {
	docs        Documents
	maxFileSize int64
}

func NewDocumentHandler(docs Documents, maxFileSize int64) *DocumentHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &DocumentHandler{docs: docs, maxFileSize: maxFileSize}
}

// UploadDocument reads the multipart file and ingests it before responding.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	// multipart framing needs some room on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q; use .pdf, .docx or .txt", ext))
		return
	}
	if header.Size > h.maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}
	if int64(len(data)) > h.maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	res, err := h.docs.Upload(ctx, userID, filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	documents, err := h.docs.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if documents == nil {
		documents = []models.Document{}
	}
	writeJSON(w, http.StatusOK, documents)
}

func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	history, err := h.docs.History(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if history == nil {
		history = []models.DocumentHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	doc, err := h.docs.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "id")
	if err := h.docs.Reindex(r.Context(), userID, docID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": docID, "status": "queued"})
}
