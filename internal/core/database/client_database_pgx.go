package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/docqa/internal/config"
	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	configurePool(db)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Ensure bootstrap once
	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// DB exposes the pool so the pgvector index can share it.
func (c *DatabaseClient) DB() *sql.DB { return c.db }

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING created_at, updated_at
	`
	return c.db.QueryRowContext(ctx, q, user.ID, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	return c.scanUser(c.db.QueryRowContext(ctx, q, email))
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`
	return c.scanUser(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for Document

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, title, file_name, storage_key, content_type, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at
	`
	return c.db.QueryRowContext(ctx, q,
		doc.ID, doc.UserID, doc.Title, doc.FileName, doc.StorageKey, doc.ContentType, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

const documentColumns = `id, user_id, title, file_name, storage_key, content_type, status, created_at, updated_at`

func scanDocument(scan func(dest ...any) error) (models.Document, error) {
	var d models.Document
	err := scan(&d.ID, &d.UserID, &d.Title, &d.FileName, &d.StorageKey, &d.ContentType, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// SaveDocumentSummary stores title and analysis and marks the document ready.
func (c *DatabaseClient) SaveDocumentSummary(ctx context.Context, id string, summary core.Summary) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET title = $2, status = $3, updated_at = now()
		WHERE id = $1
	`, id, summary.Title, models.StatusReady)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_analyses (id, document_id, analysis, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (document_id) DO UPDATE SET analysis = EXCLUDED.analysis, created_at = now()
	`, uuid.NewString(), id, summary.Analysis); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetDocumentAnalysis(ctx context.Context, documentID string) (*models.DocumentAnalysis, error) {
	const q = `
		SELECT id, document_id, analysis, created_at
		FROM document_analyses WHERE document_id = $1
	`
	var a models.DocumentAnalysis
	err := c.db.QueryRowContext(ctx, q, documentID).Scan(&a.ID, &a.DocumentID, &a.Analysis, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteDocument removes the document; analyses and chat rows cascade.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// Implementing the db interface for chat history

func (c *DatabaseClient) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg == nil {
		return errors.New("nil chat message")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO chat_history (id, document_id, user_id, question, answer, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`
	return c.db.QueryRowContext(ctx, q,
		msg.ID, msg.DocumentID, msg.UserID, msg.Question, msg.Answer, msg.Outcome,
	).Scan(&msg.CreatedAt)
}

func (c *DatabaseClient) ListChatMessages(ctx context.Context, documentID string) ([]models.ChatMessage, error) {
	const q = `
		SELECT id, document_id, user_id, question, answer, outcome, created_at
		FROM chat_history
		WHERE document_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.UserID, &m.Question, &m.Answer, &m.Outcome, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListDocumentHistory returns the user's documents, newest first, each with
// its most recent chat exchange if any.
func (c *DatabaseClient) ListDocumentHistory(ctx context.Context, userID string) ([]models.DocumentHistory, error) {
	const q = `
		SELECT d.id, d.file_name, d.title, d.created_at,
		       c.id, c.question, c.answer, c.outcome, c.created_at
		FROM documents d
		LEFT JOIN LATERAL (
			SELECT id, question, answer, outcome, created_at
			FROM chat_history
			WHERE document_id = d.id
			ORDER BY created_at DESC
			LIMIT 1
		) c ON true
		WHERE d.user_id = $1
		ORDER BY d.created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentHistory
	for rows.Next() {
		var (
			h                        models.DocumentHistory
			chatID, question, answer sql.NullString
			outcome                  sql.NullString
			chatAt                   sql.NullTime
		)
		if err := rows.Scan(&h.DocumentID, &h.FileName, &h.Title, &h.CreatedAt,
			&chatID, &question, &answer, &outcome, &chatAt); err != nil {
			return nil, err
		}
		if chatID.Valid {
			h.LastChat = &models.ChatMessage{
				ID:         chatID.String,
				DocumentID: h.DocumentID,
				UserID:     userID,
				Question:   question.String,
				Answer:     answer.String,
				Outcome:    outcome.String,
				CreatedAt:  chatAt.Time,
			}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
