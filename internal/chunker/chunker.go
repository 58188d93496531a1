package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"ragchat/internal/domain"
)

// Defaults match a typical long-form document: ~1000 characters per passage,
// 200 shared with the previous one.
const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// Chunker splits text into size-bounded, overlapping passages.
// Sizes are counted in runes. Cut points prefer paragraph breaks, then line
// breaks, then sentence ends, then whitespace, and fall back to a hard cut.
type Chunker struct {
	maxSize int
	overlap int
}

// New validates the window configuration and returns a Chunker.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk max size must be positive, got %d", domain.ErrConfiguration, maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrConfiguration, maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the configured passage size limit.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into passages in source order. Consecutive passages share
// exactly Overlap runes: each passage starts Overlap runes before the previous end.
func (c *Chunker) Chunk(text string) ([]domain.Passage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyDocument
	}
	runes := []rune(text)
	n := len(runes)

	var passages []domain.Passage
	start, overlap := 0, 0
	for {
		end := start + c.maxSize
		if end >= n {
			passages = append(passages, c.passage(runes, len(passages), start, n, overlap))
			break
		}
		end = c.cutPoint(runes, start, end)
		passages = append(passages, c.passage(runes, len(passages), start, end, overlap))
		start = end - c.overlap
		overlap = c.overlap
	}
	return passages, nil
}

func (c *Chunker) passage(runes []rune, id, start, end, overlap int) domain.Passage {
	return domain.Passage{
		ID:      id,
		Text:    string(runes[start:end]),
		Start:   start,
		End:     end,
		Overlap: overlap,
	}
}

// cutPoint picks the end of the passage starting at start. The result lies in
// (start+overlap, limit] so the next passage always moves forward, and no
// earlier than half the window so natural boundaries don't produce slivers.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	lo := start + c.overlap + 1
	if half := start + c.maxSize/2; half > lo {
		lo = half
	}
	if lo > limit {
		return limit
	}
	for _, find := range []func([]rune, int, int) int{
		paragraphBreak,
		lineBreak,
		sentenceEnd,
		whitespace,
	} {
		if p := find(runes, lo, limit); p >= 0 {
			return p
		}
	}
	return limit
}

// Each finder returns the largest cut position p in [lo, hi], or -1.

func paragraphBreak(runes []rune, lo, hi int) int {
	for p := hi; p >= lo; p-- {
		if p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n' {
			return p
		}
	}
	return -1
}

func lineBreak(runes []rune, lo, hi int) int {
	for p := hi; p >= lo; p-- {
		if p >= 1 && runes[p-1] == '\n' {
			return p
		}
	}
	return -1
}

func sentenceEnd(runes []rune, lo, hi int) int {
	for p := hi; p >= lo; p-- {
		if p < 1 || p >= len(runes) {
			continue
		}
		switch runes[p-1] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[p]) {
				return p
			}
		}
	}
	return -1
}

func whitespace(runes []rune, lo, hi int) int {
	for p := hi; p >= lo; p-- {
		if p < len(runes) && unicode.IsSpace(runes[p]) {
			return p
		}
	}
	return -1
}
