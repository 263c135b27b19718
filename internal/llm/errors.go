package llm

import (
	"errors"
	"fmt"
)

// Failure reasons reported by Client.Complete. Callers test them with errors.Is.
var (
	// ErrEmptyPrompt is returned before any network activity when the prompt is empty.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrTransport is returned when no response was received (connection, TLS, cancellation).
	ErrTransport = errors.New("transport failure")

	// ErrEmptyResponse is returned when the service responded without a body.
	ErrEmptyResponse = errors.New("empty response body")

	// ErrDecode is returned when the body is not a chat completion envelope.
	ErrDecode = errors.New("malformed completion response")

	// ErrNoContent is returned when the envelope carries no choices.
	ErrNoContent = errors.New("completion response has no choices")

	// ErrMissingAPIKey is returned by NewClient without a credential.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required")
)

// Error describes a failed completion.
type Error struct {
	// Op is the operation that failed.
	Op string

	// Reason is one of the Err* sentinels above.
	Reason error

	// Status is the HTTP status code, when a response was received.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("llm: %s: %v", e.Op, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
