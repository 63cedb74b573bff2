// Package vision defines the boundary to the external vision AI service
// that performs the actual card recognition. The pipeline depends only on
// the Extractor interface so tests can substitute deterministic fakes.
package vision

import (
	"context"
	"errors"
	"fmt"

	"ktp-verify/internal/entity"
)

// Request carries one image to the vision service.
type Request struct {
	ImageData []byte
	MimeType  string
	Filename  string // hint only, never sent as-is to the model
}

// ExtractionResult is the structured analysis returned by the service.
type ExtractionResult struct {
	IsValidKTP       bool
	Confidence       float32
	Record           *entity.KTPRecord
	Face             *entity.FaceDetection
	ValidationErrors []string
	Notes            string
}

// Extractor is the capability interface the pipeline depends on.
type Extractor interface {
	Extract(ctx context.Context, req Request) (ExtractionResult, error)
}

// ErrorKind classifies extraction failures. The pipeline maps each kind to
// a user-facing note and never retries: repeated calls cost quota.
type ErrorKind string

const (
	KindQuotaExceeded ErrorKind = "quota-exceeded"
	KindTimeout       ErrorKind = "timeout"
	KindMalformed     ErrorKind = "malformed-response"
	KindUnavailable   ErrorKind = "service-unavailable"
)

// Error is a typed extraction failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vision %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("vision %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a typed extraction failure.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the failure kind from an error chain. The second return
// is false for untyped errors, which callers should treat as unavailable.
func KindOf(err error) (ErrorKind, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}
