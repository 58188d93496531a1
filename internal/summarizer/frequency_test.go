package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

const text = "The whale swam north. It was Monday. The whale turned south the next day. " +
	"Sailors watched the whale for hours. Nobody ate lunch."

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize(text, 2)
	require.NoError(t, err)

	assert.Contains(t, out, "whale")
	assert.NotContains(t, out, "Nobody ate lunch.")
	assert.Equal(t, "The whale swam north. The whale turned south the next day.", out)
}

func TestSummarize_KeepsDocumentOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize(text, 5)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "The whale swam north."))
	assert.True(t, strings.HasSuffix(out, "Nobody ate lunch."))
}

func TestSummarize_NoSentencePunctuation(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("  just a fragment  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just a fragment", out)
}

func TestSummarize_Empty(t *testing.T) {
	_, err := NewFrequencySummarizer().Summarize(" \n ", 3)
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestSummarize_Deterministic(t *testing.T) {
	s := NewFrequencySummarizer()
	a, err := s.Summarize(strings.Repeat(text, 3), 3)
	require.NoError(t, err)
	b, err := s.Summarize(strings.Repeat(text, 3), 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
