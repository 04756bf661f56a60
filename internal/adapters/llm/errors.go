package llm

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// TransientError marks a failure that may succeed on retry.
type TransientError struct{ err error }

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

func NewTransientError(err error) error { return &TransientError{err: err} }

// FatalError marks a failure that retrying cannot fix.
type FatalError struct{ err error }

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

func NewFatalError(err error) error { return &FatalError{err: err} }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// classify sorts a go-openai error by HTTP status: throttling and server
// errors are transient, other API errors are fatal and transport failures
// are transient.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return NewTransientError(err)
	}
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
