package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

// fakeProvider encodes each text's length into a vector of the configured dimension.
type fakeProvider struct {
	mu       sync.Mutex
	dim      int
	calls    int32
	maxBatch int
	err      error
	short    bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	if len(texts) > f.maxBatch {
		f.maxBatch = len(texts)
	}
	dim := f.dim
	f.mu.Unlock()
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) setDim(d int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = d
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	p := &fakeProvider{dim: 3}
	s := NewService(p, Options{BatchSize: 2, Concurrency: 3})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := s.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, len(texts))
	for i, v := range out {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.calls))
	assert.LessOrEqual(t, p.maxBatch, 2)
	assert.Equal(t, 3, s.Dimension())
}

func TestEmbedBatch_Empty(t *testing.T) {
	p := &fakeProvider{dim: 3}
	s := NewService(p, Options{})

	out, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, int32(0), p.calls)
}

func TestEmbedOne(t *testing.T) {
	s := NewService(&fakeProvider{dim: 4}, Options{})

	v, err := s.EmbedOne(context.Background(), "whale")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, float32(5), v[0])
}

func TestEmbed_ProviderErrorIsServiceError(t *testing.T) {
	s := NewService(&fakeProvider{dim: 2, err: errors.New("connection refused")}, Options{})

	_, err := s.EmbedOne(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingService))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmbed_MalformedResponse(t *testing.T) {
	s := NewService(&fakeProvider{dim: 2, short: true}, Options{})

	_, err := s.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestEmbed_DimensionChangeIsDetected(t *testing.T) {
	p := &fakeProvider{dim: 3}
	s := NewService(p, Options{})

	_, err := s.EmbedOne(context.Background(), "first")
	require.NoError(t, err)

	p.setDim(5)
	_, err = s.EmbedOne(context.Background(), "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.Equal(t, 3, s.Dimension())
}

func TestEmbed_RateLimitedStillCompletes(t *testing.T) {
	s := NewService(&fakeProvider{dim: 2}, Options{BatchSize: 1, RequestsPerSecond: 1000})

	out, err := s.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestEmbed_CancelledContext(t *testing.T) {
	s := NewService(&fakeProvider{dim: 2}, Options{RequestsPerSecond: 0.001})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// first token is available immediately; the second call has to wait and fails
	_, _ = s.EmbedOne(ctx, "a")
	_, err := s.EmbedOne(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}
