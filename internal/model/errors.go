package model

import (
	"context"
	"errors"
)

// ErrorKind classifies failures surfaced to the UI.
type ErrorKind string

const (
	// SourceUnavailable: the node could not be reached or the call reverted.
	SourceUnavailable ErrorKind = "source_unavailable"
	// DecodeFailure: the returned value is not a number.
	DecodeFailure ErrorKind = "decode_failure"
	// ConfigurationError: the poll configuration is invalid.
	ConfigurationError ErrorKind = "configuration_error"
)

// ErrorInfo is the error payload of a Failed state.
type ErrorInfo struct {
	Kind    ErrorKind
	Message string
}

func (e ErrorInfo) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Sentinel errors matched by ClassifyError. Packages wrap these with %w.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrDecode            = errors.New("reading is not numeric")
	ErrInvalidConfig     = errors.New("invalid poll config")
)

// ClassifyError maps err to an ErrorInfo. Unknown errors, including context
// deadlines, count as SourceUnavailable.
func ClassifyError(err error) ErrorInfo {
	switch {
	case err == nil:
		return ErrorInfo{}
	case errors.Is(err, ErrInvalidConfig):
		return ErrorInfo{Kind: ConfigurationError, Message: err.Error()}
	case errors.Is(err, ErrDecode):
		return ErrorInfo{Kind: DecodeFailure, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{Kind: SourceUnavailable, Message: "request timed out"}
	default:
		return ErrorInfo{Kind: SourceUnavailable, Message: err.Error()}
	}
}
