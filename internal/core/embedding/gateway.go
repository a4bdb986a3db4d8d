// Package embedding adapts an embedding provider into the fixed-dimension,
// retrying gateway the vector index and answerer share.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/docqa/internal/core"
)

// Config tunes the gateway.
//
// Dimension:         vector size every call must return; mismatch is fatal.
// MaxRetries:        extra attempts after the first failed call.
// InitialBackoff:    delay before the first retry, doubled up to MaxBackoff.
// RequestsPerSecond: provider call budget (0 = unlimited).
// Concurrency:       batches embedded in parallel.
// BatchSize:         texts sent per provider call.
type Config struct {
	Dimension         int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
	Concurrency       int
	BatchSize         int
}

func DefaultConfig(dim int) Config {
	return Config{
		Dimension:         dim,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		RequestsPerSecond: 10,
		Concurrency:       4,
		BatchSize:         16,
	}
}

type Gateway struct {
	provider core.EmbeddingProvider
	cfg      Config
	limiter  *rate.Limiter
}

func NewGateway(provider core.EmbeddingProvider, cfg Config) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("embedding provider is nil")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", cfg.Dimension)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	return &Gateway{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// Dimension is the vector size this gateway guarantees.
func (g *Gateway) Dimension() int { return g.cfg.Dimension }

// Embed returns the vector for a single text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in parallel batches. out[i] is always the vector
// of texts[i].
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for start := 0; start < len(texts); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(texts))
		eg.Go(func() error {
			vecs, err := g.call(egctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// call performs one provider request with throttling and bounded retry.
// Embedding is a pure function of its input, so retrying is safe.
func (g *Gateway) call(ctx context.Context, texts []string) ([][]float32, error) {
	op := func() ([][]float32, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		vecs, err := g.provider.EmbedTexts(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(vecs), len(texts))
		}
		for _, v := range vecs {
			if len(v) != g.cfg.Dimension {
				return nil, backoff.Permanent(fmt.Errorf("%w: got %d want %d", core.ErrDimensionMismatch, len(v), g.cfg.Dimension))
			}
		}
		return vecs, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialBackoff
	b.MaxInterval = g.cfg.MaxBackoff

	vecs, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.cfg.MaxRetries+1)),
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDimensionMismatch):
			return nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
		default:
			return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingService, err)
		}
	}
	return vecs, nil
}
