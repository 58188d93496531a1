package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// Provider converts free text into vectors. It is the opaque embedding
// service; one call may carry many texts.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes how a Service talks to its provider.
type Options struct {
	// BatchSize is the maximum number of texts per provider call.
	BatchSize int
	// Concurrency is the maximum number of provider calls in flight.
	Concurrency int
	// RequestsPerSecond limits provider calls; zero means unlimited.
	RequestsPerSecond float64
}

// Service is the embedder adapter used by the indexer and the retriever.
// It batches requests, keeps results in input order and pins the vector
// dimension on first use.
type Service struct {
	provider Provider
	opts     Options
	limiter  *rate.Limiter

	mu        sync.Mutex
	dimension int
}

var _ domain.Embedder = (*Service)(nil)

// NewService wraps a provider.
func NewService(provider Provider, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	s := &Service{provider: provider, opts: opts}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return s
}

// Name returns the provider name.
func (s *Service) Name() string { return s.provider.Name() }

// Dimension returns the pinned vector dimension, or 0 before the first call.
func (s *Service) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimension
}

// EmbedOne embeds a single text.
func (s *Service) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts and returns vectors in the same order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([]domain.Vector, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for lo := 0; lo < len(texts); lo += s.opts.BatchSize {
		hi := lo + s.opts.BatchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		lo, hi := lo, hi
		g.Go(func() error {
			return s.embedRange(gctx, texts[lo:hi], out[lo:hi])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) embedRange(ctx context.Context, texts []string, dst []domain.Vector) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingService, s.provider.Name(), err)
		}
	}
	logger.Debug("embedding %d texts via %s", len(texts), s.provider.Name())
	vecs, err := s.provider.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingService) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingService, s.provider.Name(), err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: %s returned %d vectors for %d texts", domain.ErrEmbeddingService, s.provider.Name(), len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%w: %s returned an empty vector", domain.ErrEmbeddingService, s.provider.Name())
		}
		if err := s.checkDimension(len(v)); err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func (s *Service) checkDimension(d int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = d
		return nil
	}
	if s.dimension != d {
		return fmt.Errorf("%w: %s switched from %d to %d dimensions", domain.ErrDimensionMismatch, s.provider.Name(), s.dimension, d)
	}
	return nil
}
