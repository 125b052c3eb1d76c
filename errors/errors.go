// Package errors provides error types and handling for storage operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a storage operation error with context about the
// operation that failed. It wraps the underlying transport or SDK error.
type Error struct {
	// Op is the operation that failed (e.g., "putObject", "uploadPart")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("storage.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("storage.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for common failures. Use with errors.Is().
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("storage: invalid input")

	// ErrMissingUploadID indicates the store did not return a multipart
	// session identifier
	ErrMissingUploadID = errors.New("storage: no upload id returned")

	// ErrMissingETag indicates the store did not return an integrity tag
	// for an uploaded part
	ErrMissingETag = errors.New("storage: no etag returned")

	// ErrMissingEndpoint indicates an operation required an endpoint that
	// was not configured
	ErrMissingEndpoint = errors.New("storage: endpoint not configured")

	// ErrPresignUnavailable indicates the client cannot presign requests,
	// typically because it was built around a mocked transport
	ErrPresignUnavailable = errors.New("storage: presigning unavailable")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("storage: invalid object key")
)

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
