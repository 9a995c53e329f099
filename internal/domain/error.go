package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTurnInProgress      = errors.New("a response is already being generated for this tab")
	ErrUnsupportedChatType = errors.New("chat type does not support streamed completions")
	ErrCancelled           = errors.New("generation cancelled")
	ErrChatConfigMissing   = errors.New("chat config is missing")
	ErrShuttingDown        = errors.New("engine is shutting down")
)

// HTTPStatusError is returned when the completions endpoint answers with a
// non-2xx status or without a body.
type HTTPStatusError struct {
	Status int
	Body   string
	NoBody bool
}

func (e *HTTPStatusError) Error() string {
	if e.NoBody {
		return "response body is null"
	}
	msg := fmt.Sprintf("request failure status: %d", e.Status)
	if e.Body != "" {
		msg += "; message: \n```json\n" + e.Body + "\n```"
	}
	return msg
}

// UpstreamError carries an error payload reported by the API mid-stream.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return "upstream error"
	}
	return e.Message
}

// FrameParseError is a malformed stream frame. It is fatal to the stream.
type FrameParseError struct {
	RawFrame string
	Cause    error
}

func (e *FrameParseError) Error() string {
	return fmt.Sprintf("parse json data error: %v\nparse data: %s", e.Cause, e.RawFrame)
}

func (e *FrameParseError) Unwrap() error { return e.Cause }

// UnsupportedModelError means no tokenizer is known for the model.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("no tokenizer encoding for model %q", e.Model)
}

// InvalidArgument wraps ErrInvalidArgument with a reason.
func InvalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}
