package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrUnsupported   = errors.New("unsupported")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later retry classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return &wrappedError{marker: marker, message: strings.TrimSpace(message), err: fmt.Errorf("%w: %s: %w", marker, detail, err)}
	}
	return &wrappedError{marker: marker, message: strings.TrimSpace(message), err: fmt.Errorf("%w: %s", marker, detail)}
}

type wrappedError struct {
	marker  error
	message string
	err     error
}

func (e *wrappedError) Error() string { return e.err.Error() }

func (e *wrappedError) Unwrap() error { return e.err }

// Retryable reports whether the worker retry policy should attempt the failed
// operation again. Missing data, validation, configuration, and unsupported
// errors are permanent; everything else is treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrUnsupported):
		return false
	default:
		return true
	}
}

// ErrorDetails summarizes a failure for logging and persistence.
type ErrorDetails struct {
	Kind    string
	Message string
	Cause   error
}

// Details extracts the marker kind and operator-facing message from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: kindOf(err), Message: strings.TrimSpace(err.Error()), Cause: err}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) && wrapped.message != "" {
		details.Message = wrapped.message
		if inner := errors.Unwrap(wrapped.err); inner != nil {
			details.Cause = inner
		}
	}
	return details
}

// Message returns the operator-facing text persisted for a failed asset.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "stage failed"
	}
	return msg
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external"
	default:
		return "transient"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
