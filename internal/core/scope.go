package core

import (
	"fmt"
	"strings"
)

// ScopeID is the isolation key the vector index understands. It groups every
// entry that belongs to one user's one document.
type ScopeID string

// NewScopeID builds the scope id for a document owned by a user.
// Every ingestion and retrieval call site must go through here.
func NewScopeID(userID, documentID string) ScopeID {
	return ScopeID(fmt.Sprintf("user_%s_%s", userID, documentID))
}

func (s ScopeID) String() string { return string(s) }

// EntryID derives the stable index key for the chunk at seq within scope.
func EntryID(scope ScopeID, seq int) string {
	return fmt.Sprintf("%s_chunk_%d", scope, seq)
}

// Valid reports whether the scope carries both a user and a document part.
func (s ScopeID) Valid() bool {
	rest, ok := strings.CutPrefix(string(s), "user_")
	if !ok {
		return false
	}
	user, doc, ok := strings.Cut(rest, "_")
	return ok && user != "" && doc != ""
}
