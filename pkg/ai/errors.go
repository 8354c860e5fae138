// Package ai holds the error classification shared by the LLM, STT and TTS
// providers the voice agent talks to.
package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrRecoverable marks a transient provider failure such as a rate limit,
	// a 5xx response or a timeout.
	ErrRecoverable = errors.New("recoverable AI provider error")

	// ErrFatal marks a failure that will repeat on retry, such as a bad API
	// key or an unknown model.
	ErrFatal = errors.New("fatal AI provider error")

	// ErrEmptyResponse is returned when a provider answers without content.
	ErrEmptyResponse = errors.New("provider returned an empty response")
)

// IsRecoverable reports whether err is classified as transient.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal reports whether err is classified as permanent.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ProviderError records which provider and operation failed alongside the
// underlying cause. errors.Is matches both the cause and the class.
type ProviderError struct {
	Provider   string
	Op         string
	Retryable  bool
	Underlying error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Underlying)
}

func (e *ProviderError) Unwrap() []error {
	class := ErrFatal
	if e.Retryable {
		class = ErrRecoverable
	}
	return []error{class, e.Underlying}
}

// NewRecoverableError wraps err as a transient failure of provider/op.
func NewRecoverableError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Retryable: true, Underlying: err}
}

// NewFatalError wraps err as a permanent failure of provider/op.
func NewFatalError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Retryable: false, Underlying: err}
}

// ClassifyStatus wraps err by HTTP status: 408, 429 and 5xx are recoverable,
// everything else is fatal.
func ClassifyStatus(provider, op string, status int, err error) error {
	if status == 408 || status == 429 || status >= 500 {
		return NewRecoverableError(provider, op, err)
	}
	return NewFatalError(provider, op, err)
}
