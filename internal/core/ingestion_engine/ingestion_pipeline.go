package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/models"
)

// ErrQueueFull is returned by Enqueue when the re-ingestion queue is at capacity.
var ErrQueueFull = errors.New("ingestion queue is full")

// DocumentRecords is the slice of the record store the workers touch.
type DocumentRecords interface {
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	SaveDocumentSummary(ctx context.Context, id string, summary core.Summary) error
}

// SourceStore returns the raw bytes kept for an uploaded document.
type SourceStore interface {
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// DocumentIngestor re-runs the pipeline for stored documents in the background:
//
// records:  document rows (status, title, analysis).
// sources:  object storage holding the original upload.
// pipeline: the ingestion pipeline; re-runs use the document's existing scope.
// jobs:     bounded in-memory queue of document IDs.
type DocumentIngestor struct {
	records  DocumentRecords
	sources  SourceStore
	bucket   string
	pipeline *Pipeline
	cfg      IngestConfig
	jobs     chan string
}

var _ Ingestor = (*DocumentIngestor)(nil)

func NewDocumentIngestor(records DocumentRecords, sources SourceStore, bucket string, pipeline *Pipeline, cfg *IngestConfig) *DocumentIngestor {
	c := cfg.withDefaults()
	return &DocumentIngestor{
		records:  records,
		sources:  sources,
		bucket:   bucket,
		pipeline: pipeline,
		cfg:      c,
		jobs:     make(chan string, c.QueueSize),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx is done.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("DocumentIngestor: worker %d shutting down.", w)
					return
				case docID := <-i.jobs:
					log.Printf("DocumentIngestor: re-ingesting document %s on worker %d", docID, w)
					if err := i.ProcessOne(ctx, docID); err != nil {
						log.Printf("DocumentIngestor: error processing document %s: %v", docID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a document for re-ingestion without blocking.
func (i *DocumentIngestor) Enqueue(docID string) error {
	select {
	case i.jobs <- docID:
		return nil
	default:
		return ErrQueueFull
	}
}

// ProcessOne fetches the stored upload and replaces the document's index
// entries, title and analysis.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, docID string) error {
	proctx, cancel := context.WithTimeout(ctx, i.cfg.ProcessTimeout)
	defer cancel()

	doc, err := i.records.GetDocumentByID(proctx, docID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", docID, err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", docID)
	}
	if i.sources == nil || doc.StorageKey == "" {
		return fmt.Errorf("document %s has no stored source", docID)
	}

	if err := i.records.UpdateDocumentStatus(proctx, docID, models.StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	data, err := i.sources.GetFile(proctx, i.bucket, doc.StorageKey)
	if err != nil {
		i.markFailed(docID)
		return fmt.Errorf("get object: %w", err)
	}

	res, err := i.pipeline.Run(proctx, Job{
		Scope:       core.NewScopeID(doc.UserID, doc.ID),
		Data:        data,
		ContentType: doc.ContentType,
	})
	if err != nil {
		i.markFailed(docID)
		return err
	}

	if err := i.records.SaveDocumentSummary(proctx, docID, res.Summary); err != nil {
		i.markFailed(docID)
		return fmt.Errorf("save summary: %w", err)
	}
	log.Printf("DocumentIngestor: document %s re-indexed with %d chunks", docID, res.Chunks)
	return nil
}

func (i *DocumentIngestor) markFailed(docID string) {
	// the run's context may already be expired; the status still has to land
	ctx, cancel := context.WithTimeout(context.Background(), i.cfg.ProcessTimeout)
	defer cancel()
	if err := i.records.UpdateDocumentStatus(ctx, docID, models.StatusFailed); err != nil {
		log.Printf("DocumentIngestor: mark %s failed: %v", docID, err)
	}
}
