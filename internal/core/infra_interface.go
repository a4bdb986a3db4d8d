package core

import (
	"context"

	"github.com/markdave123-py/docqa/internal/models"
)

// DbClient defines all record-store operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
// Vector entries are not stored through it; see the vectorindex package.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)
	GetUserByID(ctx context.Context, id string) (user *models.User, err error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	SaveDocumentSummary(ctx context.Context, id string, summary Summary) error
	GetDocumentAnalysis(ctx context.Context, documentID string) (*models.DocumentAnalysis, error)
	DeleteDocument(ctx context.Context, id string) error

	AddChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, documentID string) ([]models.ChatMessage, error)
	ListDocumentHistory(ctx context.Context, userID string) ([]models.DocumentHistory, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
