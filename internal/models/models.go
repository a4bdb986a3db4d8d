package models

import (
	"time"
)

// Document statuses.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents a user-uploaded document.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageKey  string    `db:"storage_key" json:"-"` // object key of the original upload, empty when not kept
	ContentType string    `db:"content_type" json:"content_type"`
	Status      string    `db:"status" json:"status"` // uploaded | processing | ready | failed
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentAnalysis is the LLM analysis produced when a document is ingested.
type DocumentAnalysis struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Analysis   string    `db:"analysis" json:"analysis"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChatMessage is one question/answer exchange about a document.
type ChatMessage struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	UserID     string    `db:"user_id" json:"-"`
	Question   string    `db:"question" json:"question"`
	Answer     string    `db:"answer" json:"answer"`
	Outcome    string    `db:"outcome" json:"outcome"` // answered | no_context | degraded
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentHistory pairs a document with its most recent chat exchange.
type DocumentHistory struct {
	DocumentID string       `json:"document_id"`
	FileName   string       `json:"filename"`
	Title      string       `json:"title"`
	CreatedAt  time.Time    `json:"created_at"`
	LastChat   *ChatMessage `json:"last_chat"`
}
