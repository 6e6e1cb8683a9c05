package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure returned by a remote translation call.
type Kind int

const (
	// KindTransient covers network failures and 5xx responses. Retried.
	KindTransient Kind = iota
	// KindRateLimited is a quota or 429 response. Retried with backoff.
	KindRateLimited
	// KindSafetyBlocked means the provider refused the content. Never retried.
	KindSafetyBlocked
	// KindFatal covers invalid keys, unknown models and malformed requests. Never retried.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindSafetyBlocked:
		return "safety_blocked"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error chain onto a Kind. Unknown errors are transient.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, &SafetyBlockError{}):
		return KindSafetyBlocked
	case errors.Is(err, &RateLimitError{}):
		return KindRateLimited
	case errors.Is(err, &ConfigurationError{}), errors.Is(err, &FatalRemoteError{}):
		return KindFatal
	case errors.Is(err, context.Canceled):
		return KindFatal
	default:
		return KindTransient
	}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	k := Classify(err)
	return k == KindTransient || k == KindRateLimited
}

// ConfigurationError is returned when required settings are missing or invalid.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// ParseError describes a subtitle block that could not be parsed.
type ParseError struct {
	Block  int // 1-based ordinal of the block in the file
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed subtitle block %d: %s", e.Block, e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

// TranslationError is surfaced once every retry for a remote call has been used.
type TranslationError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying failure.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Is allows for error checking with errors.Is().
func (e *TranslationError) Is(target error) bool {
	_, ok := target.(*TranslationError)
	return ok
}

// RateLimitError is returned by a provider when its quota is exhausted.
type RateLimitError struct {
	Provider string
	Message  string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded: %s", e.Provider, e.Message)
}

// Is allows for error checking with errors.Is().
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// SafetyBlockError is returned when the provider refuses to process the content.
type SafetyBlockError struct {
	Provider string
	Reason   string
}

// Error implements the error interface.
func (e *SafetyBlockError) Error() string {
	return fmt.Sprintf("%s blocked the content: %s", e.Provider, e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *SafetyBlockError) Is(target error) bool {
	_, ok := target.(*SafetyBlockError)
	return ok
}

// FatalRemoteError is a provider response that no retry can fix (4xx other than 429).
type FatalRemoteError struct {
	Provider   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *FatalRemoteError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Is allows for error checking with errors.Is().
func (e *FatalRemoteError) Is(target error) bool {
	_, ok := target.(*FatalRemoteError)
	return ok
}

// CacheIOError wraps a failure to read or write the persistent translation cache.
type CacheIOError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *CacheIOError) Unwrap() error {
	return e.Err
}

// Is allows for error checking with errors.Is().
func (e *CacheIOError) Is(target error) bool {
	_, ok := target.(*CacheIOError)
	return ok
}

// ErrNotFound represents an error when a requested resource is not found.
type ErrNotFound struct {
	Resource string
	ID       interface{}
}

// Error implements the error interface.
func (e *ErrNotFound) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is allows for error checking with errors.Is().
func (e *ErrNotFound) Is(target error) bool {
	_, ok := target.(*ErrNotFound)
	return ok
}

// NewNotFoundError creates a new ErrNotFound.
func NewNotFoundError(resource string, id interface{}) *ErrNotFound {
	return &ErrNotFound{Resource: resource, ID: id}
}
