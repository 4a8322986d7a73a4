package domain

import "errors"

var (
	// ErrGenerationFailed signals that embedding, retrieval, or generation
	// failed while answering. Surfaced to clients as a single opaque outcome.
	ErrGenerationFailed = errors.New("failed to generate response")
	// ErrRateLimited signals an admission rejection. A first-class outcome,
	// not a failure.
	ErrRateLimited = errors.New("too many requests")
	// ErrUnsupportedLanguage signals a translation target outside the
	// supported set.
	ErrUnsupportedLanguage = errors.New("unsupported translation language")
	// ErrInvalidChapter signals a chapter filter outside 1..13.
	ErrInvalidChapter = errors.New("invalid chapter number")
	// ErrVectorDimMismatch signals an embedding dimension that does not match
	// the index configuration. A deployment fault, not a per-request one.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrNoProfile signals a missing learner profile. Callers map it to the
	// balanced personalization branch.
	ErrNoProfile = errors.New("no profile")
)
