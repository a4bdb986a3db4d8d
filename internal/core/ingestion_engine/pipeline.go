package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/observability"
)

// Summarizer produces the title and analysis stored with a new document.
type Summarizer interface {
	Summarize(ctx context.Context, chunks []string) (core.Summary, error)
}

// ChunkIndex is the write side of the vector index the pipeline needs.
// Upsert replaces every entry of the scope with the given chunks.
type ChunkIndex interface {
	Upsert(ctx context.Context, scope core.ScopeID, chunks []string) error
	DeleteScope(ctx context.Context, scope core.ScopeID) error
}

// Pipeline sequences extract -> normalize -> chunk -> summarize -> index for a
// single document. Each step is fail-fast; the index is either fully replaced
// or left as it was.
type Pipeline struct {
	extractor  Extractor
	normalizer *Normalizer
	splitter   *Splitter
	summarizer Summarizer
	index      ChunkIndex

	onTransition func(core.ScopeID, Stage)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTransitionHook observes every stage the pipeline reaches.
func WithTransitionHook(fn func(core.ScopeID, Stage)) PipelineOption {
	return func(p *Pipeline) { p.onTransition = fn }
}

func NewPipeline(extractor Extractor, normalizer *Normalizer, splitter *Splitter, summarizer Summarizer, index ChunkIndex, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		normalizer: normalizer,
		splitter:   splitter,
		summarizer: summarizer,
		index:      index,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests job.Data under job.Scope. Re-running with the same scope
// replaces the previous entries exactly.
func (p *Pipeline) Run(ctx context.Context, job Job) (res *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "ingestion.run",
		attribute.String("scope", job.Scope.String()),
		attribute.Int("bytes", len(job.Data)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !job.Scope.Valid() {
		return nil, &StageError{Stage: StageReceived, Err: fmt.Errorf("invalid scope %q", job.Scope)}
	}
	p.transition(job.Scope, StageReceived)

	raw, err := p.extractor.Extract(ctx, job.Data, job.ContentType)
	if err != nil {
		return nil, &StageError{Stage: StageExtracted, Err: err}
	}
	p.transition(job.Scope, StageExtracted)

	text := p.normalizer.Normalize(raw)
	p.transition(job.Scope, StageNormalized)

	chunks := p.splitter.Split(text)
	p.transition(job.Scope, StageChunked)

	summary, err := p.summarizer.Summarize(ctx, chunks)
	if err != nil {
		return nil, &StageError{Stage: StageSummarized, Err: err}
	}
	p.transition(job.Scope, StageSummarized)

	if err := p.index.Upsert(ctx, job.Scope, chunks); err != nil {
		if errors.Is(err, core.ErrIndexConsistency) {
			// half-written scope: clear it rather than leave a mix of versions
			cleanupCtx := context.WithoutCancel(ctx)
			if derr := p.index.DeleteScope(cleanupCtx, job.Scope); derr != nil {
				log.Printf("Pipeline: compensating delete for %s failed: %v", job.Scope, derr)
				err = errors.Join(err, derr)
			}
		}
		return nil, &StageError{Stage: StageIndexed, Err: err}
	}
	p.transition(job.Scope, StageIndexed)

	p.transition(job.Scope, StageComplete)
	return &Result{
		Scope:   job.Scope,
		Summary: summary,
		Chunks:  len(chunks),
		Stage:   StageComplete,
	}, nil
}

func (p *Pipeline) transition(scope core.ScopeID, stage Stage) {
	if p.onTransition != nil {
		p.onTransition(scope, stage)
	}
}
