package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/docqa/internal/core/object-client"
	"github.com/markdave123-py/docqa/internal/models"
)

var (
	// ErrDocumentNotFound also covers documents owned by another user.
	ErrDocumentNotFound   = errors.New("document not found")
	ErrReindexUnavailable = errors.New("document has no stored source to re-index")
)

// Ingester runs the ingestion pipeline for one document.
type Ingester interface {
	Run(ctx context.Context, job ingestion_engine.Job) (*ingestion_engine.Result, error)
}

// ScopeRemover deletes a document's vector entries.
type ScopeRemover interface {
	DeleteScope(ctx context.Context, scope core.ScopeID) error
}

// Reindexer schedules background re-ingestion.
type Reindexer interface {
	Enqueue(docID string) error
}

// UploadResult is returned to the client after a synchronous ingestion.
type UploadResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Analysis   string `json:"analysis"`
}

// DocumentDetail is a document together with its stored analysis.
type DocumentDetail struct {
	models.Document
	Analysis string `json:"analysis"`
}

// DocumentService owns the record-keeping around the core pipeline:
//
// db:        users, documents, analyses and chat history.
// storage:   optional object storage for raw uploads (nil disables re-indexing).
// pipeline:  extract -> normalize -> chunk -> summarize -> index.
// index:     scope removal on delete.
// answers:   retrieval-augmented answering.
// reindexer: optional background re-ingestion queue.
type DocumentService struct {
	db        core.DbClient
	storage   core.ObjectClient
	bucket    string
	pipeline  Ingester
	index     ScopeRemover
	answers   *AnswerService
	reindexer Reindexer
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, bucket string, pipeline Ingester, index ScopeRemover, answers *AnswerService, reindexer Reindexer) *DocumentService {
	return &DocumentService{
		db:        db,
		storage:   storage,
		bucket:    bucket,
		pipeline:  pipeline,
		index:     index,
		answers:   answers,
		reindexer: reindexer,
	}
}

// Upload stores the raw bytes (when storage is configured), creates the
// document record and runs the pipeline synchronously.
func (s *DocumentService) Upload(ctx context.Context, userID, filename, declaredType string, data []byte) (*UploadResult, error) {
	docID := uuid.NewString()
	contentType := ingestion_engine.ContentTypeFor(filename, declaredType)

	var key string
	if s.storage != nil {
		k := objectclient.ObjectKey(userID, docID, filename)
		if _, err := s.storage.UploadFile(ctx, s.bucket, k, data, contentType); err != nil {
			// ingestion does not depend on the stored copy
			log.Printf("DocumentService: keeping upload for %s failed: %v", docID, err)
		} else {
			key = k
		}
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      userID,
		FileName:    filename,
		StorageKey:  key,
		ContentType: contentType,
		Status:      models.StatusProcessing,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	res, err := s.pipeline.Run(ctx, ingestion_engine.Job{
		Scope:       core.NewScopeID(userID, docID),
		Data:        data,
		ContentType: contentType,
	})
	if err != nil {
		s.setStatus(docID, models.StatusFailed)
		return nil, err
	}

	if err := s.db.SaveDocumentSummary(ctx, docID, res.Summary); err != nil {
		s.setStatus(docID, models.StatusFailed)
		return nil, fmt.Errorf("save summary: %w", err)
	}
	log.Printf("DocumentService: document %s ingested with %d chunks", docID, res.Chunks)

	return &UploadResult{
		DocumentID: docID,
		Title:      res.Summary.Title,
		Analysis:   res.Summary.Analysis,
	}, nil
}

// owned loads the document and hides it from anyone but its owner.
func (s *DocumentService) owned(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil || doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*DocumentDetail, error) {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	detail := &DocumentDetail{Document: *doc}
	analysis, err := s.db.GetDocumentAnalysis(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	if analysis != nil {
		detail.Analysis = analysis.Analysis
	}
	return detail, nil
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, userID)
}

func (s *DocumentService) History(ctx context.Context, userID string) ([]models.DocumentHistory, error) {
	return s.db.ListDocumentHistory(ctx, userID)
}

// Delete removes the vector entries, the stored upload and the record.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.index.DeleteScope(ctx, core.NewScopeID(userID, docID)); err != nil {
		return fmt.Errorf("delete index entries: %w", err)
	}
	if s.storage != nil && doc.StorageKey != "" {
		if err := s.storage.DeleteFile(ctx, s.bucket, doc.StorageKey); err != nil {
			log.Printf("DocumentService: deleting stored upload %s failed: %v", doc.StorageKey, err)
		}
	}
	return s.db.DeleteDocument(ctx, docID)
}

// Ask answers a question about the document and appends the exchange to its
// chat history. A degraded answer is still recorded and returned.
func (s *DocumentService) Ask(ctx context.Context, userID, docID, question string) (Answer, *models.ChatMessage, error) {
	if _, err := s.owned(ctx, userID, docID); err != nil {
		return Answer{}, nil, err
	}

	ans := s.answers.Answer(ctx, question, core.NewScopeID(userID, docID))

	msg := &models.ChatMessage{
		DocumentID: docID,
		UserID:     userID,
		Question:   question,
		Answer:     ans.Text,
		Outcome:    string(ans.Outcome),
	}
	if err := s.db.AddChatMessage(ctx, msg); err != nil {
		log.Printf("DocumentService: saving chat for %s failed: %v", docID, err)
		msg.CreatedAt = time.Now()
	}
	return ans, msg, nil
}

func (s *DocumentService) ChatHistory(ctx context.Context, userID, docID string) ([]models.ChatMessage, error) {
	if _, err := s.owned(ctx, userID, docID); err != nil {
		return nil, err
	}
	return s.db.ListChatMessages(ctx, docID)
}

func (s *DocumentService) SuggestPrompts(ctx context.Context, userID, docID string) ([]string, error) {
	if _, err := s.owned(ctx, userID, docID); err != nil {
		return nil, err
	}
	return s.answers.SuggestPrompts(ctx, core.NewScopeID(userID, docID)), nil
}

// Reindex queues the document for a background re-run of the pipeline from
// its stored upload.
func (s *DocumentService) Reindex(ctx context.Context, userID, docID string) error {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return err
	}
	if s.reindexer == nil || doc.StorageKey == "" {
		return ErrReindexUnavailable
	}
	return s.reindexer.Enqueue(docID)
}

func (s *DocumentService) setStatus(docID, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.db.UpdateDocumentStatus(ctx, docID, status); err != nil {
		log.Printf("DocumentService: set %s status %s: %v", docID, status, err)
	}
}
