package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrDuplicateLead - transcript already persisted (skip session, no fan-out)
	ErrDuplicateLead = errors.New("duplicate lead")

	// ErrAuthExpired - destination rejected credentials (refresh token and retry once)
	ErrAuthExpired = errors.New("auth expired")

	// ErrNotFound - resource not found (missing token record, unknown destination)
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput - invalid input (bad config, malformed session key)
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient - transient error (network, rate limit; safe to retry next cycle)
	ErrTransient = errors.New("transient error")

	// ErrInvalidModelOutput - provider returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrInternal - internal error (everything else)
	ErrInternal = errors.New("internal error")
)
