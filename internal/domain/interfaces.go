package domain

import (
	"context"
	"time"
)

// Document is the normalized plain-text source handed to the indexer.
// It is chunked once and not retained afterwards.
type Document struct {
	Title   string
	Path    string
	Content string
}

// Passage is a bounded slice of a document used as a retrieval unit.
// Offsets are rune offsets into the document; End is exclusive.
type Passage struct {
	ID      int
	Text    string
	Start   int
	End     int
	Overlap int
}

// Vector is an embedding of fixed dimension.
type Vector []float32

// IndexRecord is what the vector index stores for each passage.
type IndexRecord struct {
	ID       int               `json:"id"`
	Vector   Vector            `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a ranked retrieval hit. Rank starts at 1.
type Match struct {
	PassageID int
	Text      string
	Score     float64
	Rank      int
	Metadata  map[string]string
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role    Role
	Text    string
	Time    time.Time
	Sources []Match
	Failed  bool
}

// Answer is the orchestrator's result: generated text plus the passages it was given.
type Answer struct {
	Text    string
	Sources []Match
}

// Chunker splits document text into overlapping passages.
type Chunker interface {
	Chunk(text string) ([]Passage, error)
}

// Embedder converts text into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
	EmbedOne(ctx context.Context, text string) (Vector, error)
	Dimension() int
}

// VectorIndex stores index records and answers nearest-neighbour queries.
type VectorIndex interface {
	Rebuild(ctx context.Context, records []IndexRecord) error
	Query(ctx context.Context, vector Vector, k int) ([]Match, error)
	IsReady() bool
	Dimension() int
	Close() error
}

// Generator produces text for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Retriever returns the passages most similar to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]Match, error)
}

// Answerer answers a question given prior conversation turns.
type Answerer interface {
	Answer(ctx context.Context, question string, history []Turn) (Answer, error)
}
