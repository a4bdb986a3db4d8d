package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/observability"
)

// Embedder is the part of the embedding gateway the index needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Index is the only writer of a Store. All mutation goes through Upsert and
// DeleteScope.
type Index struct {
	store    Store
	embedder Embedder
}

func New(store Store, embedder Embedder) (*Index, error) {
	if store == nil {
		return nil, errors.New("vector store is nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder is nil")
	}
	return &Index{store: store, embedder: embedder}, nil
}

// Dimension is the vector size every entry and query must have.
func (x *Index) Dimension() int { return x.embedder.Dimension() }

// Upsert replaces the scope's entries with chunks. Embeddings are computed
// before the store is touched, so an embedding failure leaves the previous
// entries in place. An empty chunk list clears the scope.
func (x *Index) Upsert(ctx context.Context, scope core.ScopeID, chunks []string) (err error) {
	ctx, span := observability.StartSpan(ctx, "vectorindex.upsert",
		attribute.String("scope", scope.String()),
		attribute.Int("chunks", len(chunks)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !scope.Valid() {
		return fmt.Errorf("invalid scope %q", scope)
	}
	if len(chunks) == 0 {
		return x.store.DeleteScope(ctx, scope)
	}

	vecs, err := x.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]Entry, len(chunks))
	for seq, text := range chunks {
		entries[seq] = Entry{
			ID:        core.EntryID(scope, seq),
			Scope:     scope,
			Seq:       seq,
			Text:      text,
			Embedding: vecs[seq],
		}
	}
	return x.store.Replace(ctx, scope, entries)
}

// Query returns up to k entries of scope ranked by cosine similarity to vec.
// A scope without entries yields an empty result, not an error.
func (x *Index) Query(ctx context.Context, scope core.ScopeID, vec []float32, k int) ([]Hit, error) {
	if len(vec) != x.Dimension() {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", core.ErrDimensionMismatch, len(vec), x.Dimension())
	}
	if k <= 0 {
		return nil, nil
	}
	hits, err := x.store.Query(ctx, scope, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query scope %s: %w", scope, err)
	}
	rank(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (x *Index) DeleteScope(ctx context.Context, scope core.ScopeID) error {
	if err := x.store.DeleteScope(ctx, scope); err != nil {
		return fmt.Errorf("delete scope %s: %w", scope, err)
	}
	return nil
}

func (x *Index) Count(ctx context.Context, scope core.ScopeID) (int, error) {
	return x.store.Count(ctx, scope)
}

func (x *Index) Close() error {
	return x.store.Close()
}
