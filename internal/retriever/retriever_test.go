package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore/memory"
)

// axisEmbedder maps known words onto fixed axes.
type axisEmbedder struct {
	axes  map[string]int
	dim   int
	calls int
	err   error
}

func (e *axisEmbedder) EmbedOne(_ context.Context, text string) (domain.Vector, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	v := make(domain.Vector, e.dim)
	if i, ok := e.axes[text]; ok {
		v[i] = 1
	}
	return v, nil
}

func (e *axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		v, err := e.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *axisEmbedder) Dimension() int { return e.dim }

func setup(t *testing.T) (*axisEmbedder, *memory.Storage) {
	t.Helper()
	emb := &axisEmbedder{axes: map[string]int{"north": 0, "south": 1, "east": 2}, dim: 3}
	idx := memory.NewStorage()
	require.NoError(t, idx.Rebuild(context.Background(), []domain.IndexRecord{
		{ID: 0, Vector: domain.Vector{1, 0, 0}, Text: "north"},
		{ID: 1, Vector: domain.Vector{0.6, 0.8, 0}, Text: "north-south"},
		{ID: 2, Vector: domain.Vector{0, 1, 0}, Text: "south"},
		{ID: 3, Vector: domain.Vector{0, 0, 1}, Text: "east"},
		{ID: 4, Vector: domain.Vector{0, 0.6, 0.8}, Text: "south-east"},
	}))
	return emb, idx
}

func TestRetrieve_DefaultK(t *testing.T) {
	emb, idx := setup(t)
	r := New(emb, idx, 0)
	got, err := r.Retrieve(context.Background(), "north", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultK)
	assert.Equal(t, "north", got[0].Text)
	assert.Equal(t, "north-south", got[1].Text)
}

func TestRetrieve_ExplicitK(t *testing.T) {
	emb, idx := setup(t)
	r := New(emb, idx, 2)
	got, err := r.Retrieve(context.Background(), "south", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "south", got[0].Text)
	assert.Equal(t, 1, emb.calls)
}

func TestRetrieve_EmptyQuestion(t *testing.T) {
	emb, idx := setup(t)
	_, err := New(emb, idx, 4).Retrieve(context.Background(), "   ", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, emb.calls)
}

func TestRetrieve_IndexNotReady(t *testing.T) {
	emb := &axisEmbedder{dim: 3}
	_, err := New(emb, memory.NewStorage(), 4).Retrieve(context.Background(), "north", 1)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	emb, idx := setup(t)
	emb.err = errors.Join(domain.ErrEmbeddingService, errors.New("timeout"))
	_, err := New(emb, idx, 4).Retrieve(context.Background(), "north", 1)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Equal(t, 1, emb.calls)
}

func TestRetrieve_MinScore(t *testing.T) {
	emb, idx := setup(t)
	r := New(emb, idx, 5, WithMinScore(0.5))
	got, err := r.Retrieve(context.Background(), "north", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 2}, []int{got[0].Rank, got[1].Rank})

	got, err = r.Retrieve(context.Background(), "unknown", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
