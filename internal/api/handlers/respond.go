package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	middleware "github.com/markdave123-py/docqa/internal/api/middlewares"
	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/core/ingestion_engine"
	"github.com/markdave123-py/docqa/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps service and pipeline errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var stageErr *ingestion_engine.StageError
	if errors.As(err, &stageErr) {
		body.Stage = stageErr.Stage.String()
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrReindexUnavailable):
		status = http.StatusConflict
	case errors.Is(err, ingestion_engine.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrExtraction):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrDimensionMismatch), errors.Is(err, core.ErrIndexConsistency):
		status = http.StatusInternalServerError
	case errors.Is(err, core.ErrEmbeddingService), errors.Is(err, core.ErrLLMService):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Printf("handlers: %v", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}
