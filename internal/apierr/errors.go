// Package apierr provides shared error sentinels and retry infrastructure
// for the pipeline's external collaborators (speech synthesis API, render
// engine). Adapters classify provider-specific failures into these
// sentinels at the boundary; callers check with errors.Is.
package apierr

import "errors"

// Sentinel errors for external collaborator failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a call exceeded its wall-clock budget.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates the request itself was rejected (not retryable).
	ErrBadRequest = errors.New("bad request")
)
