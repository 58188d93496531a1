// Package summarizer builds the extractive summary shown once a document is indexed.
package summarizer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"ragchat/internal/domain"
)

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// DefaultMaxSentences applies when the caller asks for zero sentences.
const DefaultMaxSentences = 5

// FrequencySummarizer picks the sentences whose content words are most
// frequent across the document and returns them in document order.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: stopwords()}
}

func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: nothing to summarize", domain.ErrEmptyDocument)
	}
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text, nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	peak := 0.0
	for i, sent := range sentences {
		tokens[i] = tokenPattern.FindAllString(strings.ToLower(sent), -1)
		for _, tok := range tokens[i] {
			if _, skip := s.stopwords[tok]; skip {
				continue
			}
			freq[tok]++
			peak = math.Max(peak, freq[tok])
		}
	}

	if peak == 0 {
		peak = 1
	}
	order := make([]int, len(sentences))
	score := make([]float64, len(sentences))
	for i, toks := range tokens {
		order[i] = i
		for _, tok := range toks {
			score[i] += freq[tok] / peak
		}
		// long sentences should not win on length alone
		if len(toks) > 0 {
			score[i] /= math.Sqrt(float64(len(toks)))
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return score[order[a]] > score[order[b]] })
	if maxSentences > len(order) {
		maxSentences = len(order)
	}
	picked := append([]int(nil), order[:maxSentences]...)
	sort.Ints(picked)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = strings.Join(strings.Fields(sentences[idx]), " ")
	}
	return strings.Join(out, " "), nil
}

func stopwords() map[string]struct{} {
	words := strings.Fields(`a an the and or but if then else for to of in on at by with as is are
		was were be been being it its this that these those from up down over under again further
		than so such into about between through during before after above below out off own same
		too very can will just don should now he she they them his her their i you we me my our
		not no had has have do did does said upon all one`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
