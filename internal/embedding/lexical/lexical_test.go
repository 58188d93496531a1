package lexical

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbed_UnitLengthAndDeterministic(t *testing.T) {
	e := NewEmbedder(64)
	out, err := e.Embed(context.Background(), []string{"The whale swam north.", "The whale swam north."})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, out[0], 64)
	assert.Equal(t, out[0], out[1])
	assert.InDelta(t, 1.0, math.Sqrt(cosine(out[0], out[0])), 1e-6)
}

func TestEmbed_StopwordsOnlyIsZero(t *testing.T) {
	e := NewEmbedder(16)
	out, err := e.Embed(context.Background(), []string{"the and of it"})
	require.NoError(t, err)
	for _, v := range out[0] {
		assert.Zero(t, v)
	}
}

func TestEmbed_SharedTermsScoreHigher(t *testing.T) {
	e := NewEmbedder(DefaultDimension)
	out, err := e.Embed(context.Background(), []string{
		"harpoon captain ahab",
		"captain ahab hunted with a harpoon",
		"tax provisions for small business",
	})
	require.NoError(t, err)
	assert.Greater(t, cosine(out[0], out[1]), cosine(out[0], out[2]))
}

func TestNewEmbedder_DefaultDimension(t *testing.T) {
	assert.Equal(t, DefaultDimension, NewEmbedder(0).Dimension())
	assert.Equal(t, "lexical", NewEmbedder(0).Name())
}

func TestTerms_DropsStopwordsAndKeepsApostrophes(t *testing.T) {
	assert.Equal(t, []string{"whale", "swim", "ahab's", "1851"}, terms("Where did the whale swim? Ahab's, 1851"))
	assert.Empty(t, terms("  ... "))
}
