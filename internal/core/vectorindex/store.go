// Package vectorindex holds the per-document chunk index. Every entry belongs
// to exactly one scope and every query is filtered to a single scope.
package vectorindex

import (
	"context"
	"math"
	"sort"

	"github.com/markdave123-py/docqa/internal/core"
)

// Entry is one indexed chunk.
type Entry struct {
	ID        string
	Scope     core.ScopeID
	Seq       int
	Text      string
	Embedding []float32
}

// Hit is a ranked query result. Score is cosine similarity.
type Hit struct {
	EntryID string
	Seq     int
	Text    string
	Score   float64
}

// Store is a vector backend. Implementations must filter every read and
// delete strictly by scope.
type Store interface {
	// Replace removes every entry of scope and writes entries in its place.
	Replace(ctx context.Context, scope core.ScopeID, entries []Entry) error
	Query(ctx context.Context, scope core.ScopeID, vec []float32, k int) ([]Hit, error)
	// DeleteScope is a no-op for an absent scope.
	DeleteScope(ctx context.Context, scope core.ScopeID) error
	Count(ctx context.Context, scope core.ScopeID) (int, error)
	Close() error
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank orders hits by descending score, earliest chunk first on ties.
func rank(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})
}
