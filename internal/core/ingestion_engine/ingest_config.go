package ingestion_engine

import (
	"fmt"
	"time"

	"github.com/markdave123-py/docqa/internal/core"
)

// IngestConfig tunes the pipeline and the re-ingestion workers.
//
// ChunkSize:      maximum characters per chunk (default 4000).
// ChunkOverlap:   characters shared by consecutive chunks (default 5).
// QueueSize:      capacity of the in-memory re-ingestion queue.
// ProcessTimeout: upper bound for one background re-ingestion.
type IngestConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	QueueSize      int
	ProcessTimeout time.Duration
}

func (c *IngestConfig) withDefaults() IngestConfig {
	out := IngestConfig{}
	if c != nil {
		out = *c
	}
	if out.ChunkSize <= 0 {
		out.ChunkSize = DefaultChunkSize
	}
	if out.ChunkOverlap < 0 {
		out.ChunkOverlap = DefaultChunkOverlap
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 64
	}
	if out.ProcessTimeout <= 0 {
		out.ProcessTimeout = 5 * time.Minute
	}
	return out
}

// Stage is a step of one ingestion run.
type Stage int

const (
	StageReceived Stage = iota
	StageExtracted
	StageNormalized
	StageChunked
	StageSummarized
	StageIndexed
	StageComplete
)

var stageNames = [...]string{
	StageReceived:   "received",
	StageExtracted:  "extracted",
	StageNormalized: "normalized",
	StageChunked:    "chunked",
	StageSummarized: "summarized",
	StageIndexed:    "indexed",
	StageComplete:   "complete",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is the absorbing Failed(stage) state: Stage is the step that
// could not be reached.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Job is one document handed to the pipeline. Data is the already-read upload.
type Job struct {
	Scope       core.ScopeID
	Data        []byte
	ContentType string
}

// Result is what a completed run reports back for the record store.
type Result struct {
	Scope   core.ScopeID
	Summary core.Summary
	Chunks  int
	Stage   Stage
}
