package ingestion_engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/models"
)

type fakeRecords struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	statuses  []string
	summaries map[string]core.Summary
}

func newFakeRecords(docs ...*models.Document) *fakeRecords {
	r := &fakeRecords{docs: map[string]*models.Document{}, summaries: map[string]core.Summary{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeRecords) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id], nil
}

func (r *fakeRecords) UpdateDocumentStatus(_ context.Context, id string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	if d, ok := r.docs[id]; ok {
		d.Status = status
	}
	return nil
}

func (r *fakeRecords) SaveDocumentSummary(_ context.Context, id string, s core.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[id] = s
	if d, ok := r.docs[id]; ok {
		d.Title = s.Title
		d.Status = models.StatusReady
	}
	return nil
}

func (r *fakeRecords) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id].Status
}

type fakeSources map[string][]byte

func (s fakeSources) GetFile(_ context.Context, _ string, key string) ([]byte, error) {
	data, ok := s[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

func storedDoc() *models.Document {
	return &models.Document{
		ID:          "doc1",
		UserID:      "alice",
		FileName:    "contract.txt",
		StorageKey:  "users/alice/documents/doc1/contract.txt",
		ContentType: "text/plain",
		Status:      models.StatusReady,
	}
}

func TestDocumentIngestor_ProcessOne(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	records := newFakeRecords(storedDoc())
	sources := fakeSources{"users/alice/documents/doc1/contract.txt": []byte("Alice pays Bob monthly.")}
	ing := NewDocumentIngestor(records, sources, "bucket", f.pipeline, nil)

	require.NoError(t, ing.ProcessOne(context.Background(), "doc1"))
	assert.Equal(t, []string{models.StatusProcessing}, records.statuses)
	assert.Equal(t, models.StatusReady, records.status("doc1"))
	assert.Equal(t, "Title of alice pays bob monthly", records.summaries["doc1"].Title)

	n, err := f.index.Count(context.Background(), core.NewScopeID("alice", "doc1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDocumentIngestor_ProcessOneFailureMarksFailed(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	doc := storedDoc()
	doc.ContentType = "application/pdf"
	records := newFakeRecords(doc)
	sources := fakeSources{doc.StorageKey: []byte("not a pdf")}
	ing := NewDocumentIngestor(records, sources, "bucket", f.pipeline, nil)

	err := ing.ProcessOne(context.Background(), "doc1")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExtraction)
	assert.Equal(t, models.StatusFailed, records.status("doc1"))
}

func TestDocumentIngestor_ProcessOneWithoutSource(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	doc := storedDoc()
	doc.StorageKey = ""
	ing := NewDocumentIngestor(newFakeRecords(doc), fakeSources{}, "bucket", f.pipeline, nil)

	require.Error(t, ing.ProcessOne(context.Background(), "doc1"))
	require.Error(t, ing.ProcessOne(context.Background(), "missing"))
}

func TestDocumentIngestor_EnqueueWhenFull(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	ing := NewDocumentIngestor(newFakeRecords(), fakeSources{}, "bucket", f.pipeline, &IngestConfig{QueueSize: 1})

	require.NoError(t, ing.Enqueue("doc1"))
	assert.ErrorIs(t, ing.Enqueue("doc2"), ErrQueueFull)
}

func TestDocumentIngestor_WorkersDrainQueue(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	records := newFakeRecords(storedDoc())
	sources := fakeSources{"users/alice/documents/doc1/contract.txt": []byte("Alice pays Bob monthly.")}
	ing := NewDocumentIngestor(records, sources, "bucket", f.pipeline, &IngestConfig{QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	records.docs["doc1"].Status = models.StatusUploaded
	ing.Start(ctx, 2)
	require.NoError(t, ing.Enqueue("doc1"))

	assert.Eventually(t, func() bool {
		return records.status("doc1") == models.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}
