package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/core/vectorindex"
)

const fakeDim = 8

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, fakeDim)
		for _, r := range t {
			v[int(r)%fakeDim]++
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return fakeDim }

type fakeSummarizer struct {
	err    error
	calls  int
	chunks []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, chunks []string) (core.Summary, error) {
	f.calls++
	f.chunks = chunks
	if f.err != nil {
		return core.Summary{}, f.err
	}
	if len(chunks) == 0 {
		return core.Summary{Title: "Untitled document", Analysis: "No text could be extracted."}, nil
	}
	return core.Summary{Title: "Title of " + chunks[0], Analysis: "analysis"}, nil
}

// brokenIndex fails Upsert with a consistency error and records cleanup.
type brokenIndex struct {
	deleted []core.ScopeID
}

func (b *brokenIndex) Upsert(_ context.Context, scope core.ScopeID, _ []string) error {
	return fmt.Errorf("%w: upsert failed after clear", core.ErrIndexConsistency)
}

func (b *brokenIndex) DeleteScope(_ context.Context, scope core.ScopeID) error {
	b.deleted = append(b.deleted, scope)
	return nil
}

type pipelineFixture struct {
	pipeline   *Pipeline
	index      *vectorindex.Index
	embedder   *fakeEmbedder
	summarizer *fakeSummarizer
	stages     []Stage
}

func newPipelineFixture(t *testing.T, splitter *Splitter) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{embedder: &fakeEmbedder{}, summarizer: &fakeSummarizer{}}
	idx, err := vectorindex.New(vectorindex.NewMemoryStore(), f.embedder)
	require.NoError(t, err)
	f.index = idx
	f.pipeline = NewPipeline(
		NewDocconvExtractor(false),
		NewNormalizer(nil),
		splitter,
		f.summarizer,
		idx,
		WithTransitionHook(func(_ core.ScopeID, s Stage) { f.stages = append(f.stages, s) }),
	)
	return f
}

func segments(n int) []byte {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("segment%02d", i)
	}
	return []byte(strings.Join(words, " "))
}

func count(t *testing.T, idx *vectorindex.Index, scope core.ScopeID) int {
	t.Helper()
	n, err := idx.Count(context.Background(), scope)
	require.NoError(t, err)
	return n
}

func TestPipeline_RunReachesComplete(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	scope := core.NewScopeID("alice", "doc1")

	res, err := f.pipeline.Run(context.Background(), Job{
		Scope:       scope,
		Data:        []byte("This contract is between Alice and Bob, effective Jan 1."),
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, StageComplete, res.Stage)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, "Title of contract alice bob effective jan 1", res.Summary.Title)
	assert.Equal(t, []Stage{
		StageReceived, StageExtracted, StageNormalized, StageChunked,
		StageSummarized, StageIndexed, StageComplete,
	}, f.stages)

	// the retrieved chunk is the full chunk text
	vec, _ := f.embedder.EmbedBatch(context.Background(), []string{"who are the parties alice bob"})
	hits, err := f.index.Query(context.Background(), scope, vec[0], 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "contract alice bob effective jan 1", hits[0].Text)
	assert.Contains(t, hits[0].Text, "alice")
	assert.Contains(t, hits[0].Text, "bob")
}

func TestPipeline_ReingestReplacesEntries(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter(WithChunkSize(10), WithOverlap(0)))
	scope := core.NewScopeID("alice", "doc1")
	ctx := context.Background()

	res, err := f.pipeline.Run(ctx, Job{Scope: scope, Data: segments(5), ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Chunks)
	assert.Equal(t, 5, count(t, f.index, scope))

	res, err = f.pipeline.Run(ctx, Job{Scope: scope, Data: segments(3), ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, count(t, f.index, scope))
}

func TestPipeline_ExtractionFailure(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	scope := core.NewScopeID("alice", "doc1")
	ctx := context.Background()
	_, err := f.pipeline.Run(ctx, Job{Scope: scope, Data: []byte("old text"), ContentType: "text/plain"})
	require.NoError(t, err)
	f.stages = nil

	_, err = f.pipeline.Run(ctx, Job{Scope: scope, Data: []byte("garbage"), ContentType: "application/pdf"})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageExtracted, se.Stage)
	assert.ErrorIs(t, err, core.ErrExtraction)
	assert.Equal(t, []Stage{StageReceived}, f.stages)
	assert.Equal(t, 1, f.summarizer.calls)
	assert.Equal(t, 1, count(t, f.index, scope))
}

func TestPipeline_SummarizeFailureLeavesIndexUntouched(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	scope := core.NewScopeID("alice", "doc1")
	f.summarizer.err = fmt.Errorf("%w: 500", core.ErrLLMService)

	_, err := f.pipeline.Run(context.Background(), Job{Scope: scope, Data: []byte("some text"), ContentType: "text/plain"})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSummarized, se.Stage)
	assert.ErrorIs(t, err, core.ErrLLMService)
	assert.Zero(t, count(t, f.index, scope))
}

func TestPipeline_EmbeddingFailureKeepsPreviousVersion(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter(WithChunkSize(10), WithOverlap(0)))
	scope := core.NewScopeID("alice", "doc1")
	ctx := context.Background()
	_, err := f.pipeline.Run(ctx, Job{Scope: scope, Data: segments(4), ContentType: "text/plain"})
	require.NoError(t, err)

	f.embedder.err = fmt.Errorf("%w: retries exhausted", core.ErrEmbeddingService)
	_, err = f.pipeline.Run(ctx, Job{Scope: scope, Data: segments(2), ContentType: "text/plain"})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageIndexed, se.Stage)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, 4, count(t, f.index, scope))
}

func TestPipeline_ConsistencyFailureClearsScope(t *testing.T) {
	idx := &brokenIndex{}
	p := NewPipeline(NewDocconvExtractor(false), NewNormalizer(nil), NewSplitter(), &fakeSummarizer{}, idx)
	scope := core.NewScopeID("alice", "doc1")

	_, err := p.Run(context.Background(), Job{Scope: scope, Data: []byte("text"), ContentType: "text/plain"})
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageIndexed, se.Stage)
	assert.ErrorIs(t, err, core.ErrIndexConsistency)
	assert.Equal(t, []core.ScopeID{scope}, idx.deleted)
}

func TestPipeline_EmptyTextCompletesWithNoChunks(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	scope := core.NewScopeID("alice", "doc1")
	ctx := context.Background()
	_, err := f.pipeline.Run(ctx, Job{Scope: scope, Data: []byte("previous content"), ContentType: "text/plain"})
	require.NoError(t, err)

	res, err := f.pipeline.Run(ctx, Job{Scope: scope, Data: []byte("the and of !!"), ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Equal(t, "Untitled document", res.Summary.Title)
	assert.Empty(t, f.summarizer.chunks)
	assert.Zero(t, count(t, f.index, scope))
}

func TestPipeline_InvalidScope(t *testing.T) {
	f := newPipelineFixture(t, NewSplitter())
	_, err := f.pipeline.Run(context.Background(), Job{Scope: "doc1", Data: []byte("x"), ContentType: "text/plain"})

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageReceived, se.Stage)
	assert.Empty(t, f.stages)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "extracted", StageExtracted.String())
	assert.Equal(t, "complete", StageComplete.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
