package core

import "errors"

// Error taxonomy shared by the ingestion and answering pipeline. Callers wrap
// these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrExtraction means the uploaded bytes are not a parseable document.
	ErrExtraction = errors.New("document extraction failed")

	// ErrEmbeddingService is a transient failure of the embedding capability
	// that survived the gateway's retries.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrDimensionMismatch is a configuration error: the embedding model and
	// the vector index disagree on vector size. Never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMService is a failure of the completion capability.
	ErrLLMService = errors.New("llm service error")

	// ErrIndexConsistency means a replace against the vector index only
	// partially applied.
	ErrIndexConsistency = errors.New("vector index consistency error")
)
