package domain

import "errors"

// Errors are wrapped with context by the component that detects them and
// matched with errors.Is by callers.
var (
	// ErrConfiguration indicates bad or missing settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingService indicates the embedding service failed or returned garbage.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationService indicates the generative model call failed.
	ErrGenerationService = errors.New("generation service error")

	// ErrDimensionMismatch indicates vectors of different dimensionality were mixed.
	// An index that reports it must be rebuilt.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexNotReady indicates a query against an index that was never built.
	ErrIndexNotReady = errors.New("vector index not ready")

	// ErrInvalidInput indicates malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument indicates a document with no indexable text.
	ErrEmptyDocument = errors.New("empty document")

	// ErrPromptTooLarge indicates the fixed parts of a prompt exceed the budget.
	ErrPromptTooLarge = errors.New("prompt exceeds maximum size")

	// ErrSessionBusy indicates a submission while an answer is still pending.
	ErrSessionBusy = errors.New("session is awaiting an answer")

	// ErrSessionClosed indicates the session has been torn down.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionNotFound indicates an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
)
