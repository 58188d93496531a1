package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// IndexReport describes a completed ingest.
type IndexReport struct {
	Document  string
	Passages  int
	Dimension int
	Summary   string
	Elapsed   time.Duration
}

type IndexOptions struct {
	// MaxRetries is how many times a failed embedding batch is retried.
	MaxRetries          int
	SummaryMaxSentences int
}

// Indexer builds the vector index from a document: chunk, embed, rebuild.
type Indexer struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	index      domain.VectorIndex
	summarizer domain.Summarizer
	opts       IndexOptions
}

func NewIndexer(chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, summarizer domain.Summarizer, opts IndexOptions) *Indexer {
	return &Indexer{chunker: chunker, embedder: embedder, index: index, summarizer: summarizer, opts: opts}
}

// IndexFile reads a UTF-8 text file and indexes it.
func (s *Indexer) IndexFile(ctx context.Context, path string) (IndexReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IndexReport{}, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return IndexReport{}, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrInvalidInput, path)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s.IndexDocument(ctx, domain.Document{Title: title, Path: path, Content: string(data)})
}

// IndexDocument replaces the index content with the passages of doc. On any
// failure the previous index content stays in place.
func (s *Indexer) IndexDocument(ctx context.Context, doc domain.Document) (IndexReport, error) {
	start := time.Now()
	passages, err := s.chunker.Chunk(doc.Content)
	if err != nil {
		return IndexReport{}, err
	}
	logger.Info("chunked %q into %d passages", doc.Title, len(passages))

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := s.embedWithRetry(ctx, texts)
	if err != nil {
		return IndexReport{}, err
	}

	records := make([]domain.IndexRecord, len(passages))
	for i, p := range passages {
		records[i] = domain.IndexRecord{
			ID:     p.ID,
			Vector: vectors[i],
			Text:   p.Text,
			Metadata: map[string]string{
				"document": doc.Title,
				"start":    strconv.Itoa(p.Start),
				"end":      strconv.Itoa(p.End),
			},
		}
	}
	if err := s.index.Rebuild(ctx, records); err != nil {
		return IndexReport{}, fmt.Errorf("rebuild index: %w", err)
	}

	report := IndexReport{
		Document:  doc.Title,
		Passages:  len(passages),
		Dimension: s.index.Dimension(),
		Elapsed:   time.Since(start),
	}
	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(doc.Content, s.opts.SummaryMaxSentences)
		if err != nil {
			logger.Warn("summary failed: %v", err)
		} else {
			report.Summary = summary
		}
	}
	logger.Info("indexed %q: %d passages, dim %d, %s", doc.Title, report.Passages, report.Dimension, report.Elapsed.Round(time.Millisecond))
	return report, nil
}

func (s *Indexer) embedWithRetry(ctx context.Context, texts []string) ([]domain.Vector, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			d := retryDelay(attempt - 1)
			logger.Warn("embedding attempt %d failed, retrying in %s: %v", attempt, d, lastErr)
			if err := sleep(ctx, d); err != nil {
				return nil, err
			}
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if errors.Is(err, domain.ErrDimensionMismatch) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

var retryDelay = func(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		attempt = 5
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
