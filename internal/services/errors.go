package services

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the query engine. Handlers map these onto
// HTTP status codes; everything else is treated as an internal failure.
var (
	// ErrSourceUnavailable means every retrieval tier came up empty:
	// there is no entry set to match against at all.
	ErrSourceUnavailable = errors.New("knowledge source unavailable")

	// ErrInvalidThreshold means a caller-supplied similarity threshold
	// fell outside [0,1].
	ErrInvalidThreshold = errors.New("similarity threshold must be between 0 and 1")

	// ErrAlignmentViolation means an entry list and its vector list
	// disagreed in length. This is a programming error upstream and is
	// never silently truncated.
	ErrAlignmentViolation = errors.New("entries and vectors are misaligned")

	// ErrEmbeddingFailure wraps failures of the embedding backend.
	ErrEmbeddingFailure = errors.New("embedding backend failure")
)

func alignmentError(entries, vectors int) error {
	return fmt.Errorf("%w: %d entries, %d vectors", ErrAlignmentViolation, entries, vectors)
}

func embeddingError(cause error) error {
	return fmt.Errorf("%w: %v", ErrEmbeddingFailure, cause)
}
