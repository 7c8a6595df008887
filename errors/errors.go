// Package errors provides standardized error handling for svclink components.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the communication layer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Registry and key material errors
	ErrUnknownService = errors.New("service not registered")
	ErrUnknownPeer    = errors.New("no encryption key for peer")

	// Codec errors
	ErrDecryptionFailed = errors.New("payload decryption failed")
	ErrInvalidPayload   = errors.New("invalid payload")

	// Transport errors
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Circuit breaker errors
	ErrCircuitOpen = errors.New("circuit breaker open")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// CircuitOpenError is returned when a call is short-circuited because the
// peer's circuit breaker is open. RetryAfter hints at the remaining cooldown.
type CircuitOpenError struct {
	Service    string
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s (retry after %v)", e.Service, e.RetryAfter)
}

// Unwrap returns ErrCircuitOpen so errors.Is matching works
func (e *CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}

// DispatchError is returned when a dispatched call exhausted its retry policy
// or was cancelled. LastCause holds the error from the final attempt.
type DispatchError struct {
	Service   string
	Attempts  int
	LastCause error
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed after %d attempt(s): %v", e.Service, e.Attempts, e.LastCause)
}

// Unwrap returns the error from the final attempt
func (e *DispatchError) Unwrap() error {
	return e.LastCause
}

// StatusError represents a non-2xx HTTP response from a peer. 5xx-class
// statuses are transient, 4xx-class are invalid and never retried.
type StatusError struct {
	Service string
	Code    int
	Status  string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Code, e.Status)
}

// Retryable reports whether the status indicates a transient server-side
// condition.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and may be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}

	return errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsInvalid checks if an error is due to invalid input. Invalid errors are
// never retried and never counted toward circuit breaker failure accounting.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}

	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrUnknownPeer) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrMissingConfig)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		// Default to transient for unknown errors to allow retry
		return ErrorTransient
	}
}

// newClassified creates a new classified error
// Internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}
