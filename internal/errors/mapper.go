package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MapHTTPStatus maps a destination HTTP status code to the error taxonomy.
// 401/403 mean the access token has expired or been revoked; the CRM
// adapters use this to decide whether a refresh-and-retry is worth it.
func MapHTTPStatus(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("destination returned %d: %s: %w", status, truncate(body, 200), ErrAuthExpired)
	case status == http.StatusTooManyRequests, status >= 500:
		return fmt.Errorf("destination returned %d: %s: %w", status, truncate(body, 200), ErrTransient)
	case status >= 400:
		return fmt.Errorf("destination returned %d: %s: %w", status, truncate(body, 200), ErrInvalidInput)
	default:
		return nil
	}
}

// MapError maps external errors to the pipeline taxonomy.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("resource not found: %w", ErrNotFound)

	case strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "invalid_grant"), strings.Contains(errStr, "token expired"):
		return fmt.Errorf("access denied: %w", ErrAuthExpired)

	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "quota"),
		strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("rate limited: %w", ErrTransient)

	case strings.Contains(errStr, "invalid json"), strings.Contains(errStr, "malformed json"),
		strings.Contains(errStr, "invalid model output"):
		return fmt.Errorf("invalid model output: %w", ErrInvalidModelOutput)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"),
		strings.Contains(errStr, "unreachable"):
		return fmt.Errorf("network error: %w", ErrTransient)

	default:
		return fmt.Errorf("internal error: %w", ErrInternal)
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// IsCategory checks if error belongs to a specific category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// NotFound wraps a message as not found.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps a message as invalid input.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps a message as transient.
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps a message as internal.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// InvalidModelOutput wraps a message as invalid model output.
func InvalidModelOutput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidModelOutput)
}

// AuthExpired wraps a message as auth expiry.
func AuthExpired(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAuthExpired)
}

// IsRetryable reports whether an error is transient and worth retrying on a
// later cycle. Auth expiry is handled separately via refresh-and-retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
