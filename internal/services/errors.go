package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Every stage error is tagged with exactly one of these so the
// coordinator can persist, log, and count failures by class.
var (
	ErrShape          = errors.New("structured response invalid")
	ErrMissingAsset   = errors.New("expected asset missing")
	ErrToolExecution  = errors.New("media tool failed")
	ErrUpload         = errors.New("upload failed")
	ErrInfrastructure = errors.New("required dependency unavailable")
	ErrRemote         = errors.New("generative service error")
	ErrTimeout        = errors.New("timeout")
	ErrConfiguration  = errors.New("configuration error")
	ErrValidation     = errors.New("validation error")
)

var markerKinds = []struct {
	marker error
	kind   string
}{
	{ErrShape, "shape"},
	{ErrMissingAsset, "missing_asset"},
	{ErrToolExecution, "tool_execution"},
	{ErrUpload, "upload"},
	{ErrInfrastructure, "infrastructure"},
	{ErrRemote, "remote"},
	{ErrTimeout, "timeout"},
	{ErrConfiguration, "configuration"},
	{ErrValidation, "validation"},
}

// Error carries the stage context attached by Wrap.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above; nil defaults to ErrRemote.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrRemote
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a stage failure used for persistence
// and structured logs.
type ErrorDetails struct {
	Kind    string
	Stage   string
	Message string
}

// Details extracts the outermost Wrap context from err. Errors that were never
// wrapped report kind "unknown" and their own message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: strings.TrimSpace(err.Error())}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		details.Stage = wrapped.Stage
		details.Message = strings.TrimSpace(wrapped.Error())
	}
	return details
}

// Kind returns the taxonomy label for err. The outermost Wrap marker wins.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		for _, mk := range markerKinds {
			if wrapped.Marker == mk.marker {
				return mk.kind
			}
		}
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return "unknown"
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
