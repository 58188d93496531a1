package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"ragchat/internal/domain"
)

const whale = "The whale swam north. It was Monday. The whale turned south the next day."

// conceptEmbedder counts words that belong to a handful of concepts.
type conceptEmbedder struct {
	mu      sync.Mutex
	calls   int
	failN   int
	failErr error
}

var concepts = map[string]int{
	"north": 0, "swam": 0, "swim": 0, "first": 0,
	"south": 1, "turned": 1, "next": 1,
	"monday": 2, "day": 2,
}

func (e *conceptEmbedder) vector(text string) domain.Vector {
	v := make(domain.Vector, 3)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if i, ok := concepts[w]; ok {
			v[i]++
		}
	}
	return v
}

func (e *conceptEmbedder) EmbedBatch(_ context.Context, texts []string) ([]domain.Vector, error) {
	e.mu.Lock()
	e.calls++
	fail := e.calls <= e.failN
	e.mu.Unlock()
	if fail {
		return nil, e.failErr
	}
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *conceptEmbedder) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	return e.vector(text), nil
}

func (e *conceptEmbedder) Dimension() int { return 3 }

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	delay   time.Duration
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

var errBoom = errors.New("boom")
