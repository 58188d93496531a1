// Package retriever turns a question into the top-k most similar passages.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// DefaultK is used when neither the caller nor the configuration names k.
const DefaultK = 4

type Retriever struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	defaultK int
	minScore float64
}

var _ domain.Retriever = (*Retriever)(nil)

type Option func(*Retriever)

// WithMinScore drops matches scoring below min.
func WithMinScore(min float64) Option {
	return func(r *Retriever) { r.minScore = min }
}

func New(embedder domain.Embedder, index domain.VectorIndex, defaultK int, opts ...Option) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	r := &Retriever{embedder: embedder, index: index, defaultK: defaultK}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve embeds the question once and queries the index. k <= 0 means the
// default. Queries are never retried; an empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]domain.Match, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = r.defaultK
	}
	if !r.index.IsReady() {
		return nil, domain.ErrIndexNotReady
	}
	vec, err := r.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, err
	}
	matches, err := r.index.Query(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	if r.minScore > 0 {
		kept := matches[:0]
		for _, m := range matches {
			if m.Score >= r.minScore {
				kept = append(kept, m)
			}
		}
		for i := range kept {
			kept[i].Rank = i + 1
		}
		matches = kept
	}
	logger.Debug("retrieved %d passages for k=%d", len(matches), k)
	return matches, nil
}
