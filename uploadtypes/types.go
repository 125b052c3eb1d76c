// Package uploadtypes provides shared type definitions for the uploader module.
package uploadtypes

import (
	"context"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// Source describes where the bytes of an upload come from.
// Exactly one of FilePath or Content must be set.
type Source struct {
	// FilePath is a path on the local filesystem.
	FilePath string

	// Content is inline byte content, typically pasted text or an image.
	Content []byte
}

// Inline reports whether the source carries inline content rather than
// referencing a local file.
func (s Source) Inline() bool {
	return s.FilePath == ""
}

// Request is a single file (or inline blob) to upload.
type Request struct {
	// ID uniquely identifies the upload task. If empty, one is generated.
	ID string

	// Source is the local origin of the data.
	Source Source

	// Key is the destination object key, including any prefix.
	Key string
}

// StatusKind discriminates the closed set of upload status variants.
type StatusKind string

// Status kinds reported through progress events.
const (
	StatusUploading StatusKind = "uploading"
	StatusSuccess   StatusKind = "success"
	StatusCancelled StatusKind = "cancelled"
	StatusError     StatusKind = "error"
)

// Status is one variant of the upload status union. The kind determines
// which of the remaining fields are meaningful.
type Status struct {
	Kind StatusKind `json:"kind"`

	// Uploading fields.
	Progress      float64 `json:"progress,omitempty"`
	BytesUploaded int64   `json:"bytesUploaded,omitempty"`
	TotalBytes    int64   `json:"totalBytes,omitempty"`
	Speed         float64 `json:"speed,omitempty"`

	// Error fields.
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Terminal reports whether this status ends the task's event stream.
// Exactly one terminal status is emitted per task.
func (s Status) Terminal() bool {
	return s.Kind != StatusUploading
}

// Uploading builds an in-flight status snapshot.
func Uploading(progress float64, bytesUploaded, totalBytes int64, speed float64) Status {
	return Status{
		Kind:          StatusUploading,
		Progress:      progress,
		BytesUploaded: bytesUploaded,
		TotalBytes:    totalBytes,
		Speed:         speed,
	}
}

// Success builds the terminal success status.
func Success() Status {
	return Status{Kind: StatusSuccess}
}

// Cancelled builds the terminal cancelled status.
func Cancelled() Status {
	return Status{Kind: StatusCancelled}
}

// Errored builds the terminal error status with the fixed event error code.
func Errored(message, code string) Status {
	return Status{Kind: StatusError, Message: message, Code: code}
}

// ProgressEvent is the structured event published to the external sink
// for every status change of an upload task.
type ProgressEvent struct {
	// FileID is the task identifier the event belongs to.
	FileID string `json:"fileId"`

	// Filename is the destination object key.
	Filename string `json:"filename"`

	// URL is the public display URL (domain + key). Empty for cancelled
	// events, where no destination exists anymore.
	URL string `json:"url"`

	Status Status `json:"status"`

	// Timestamp is seconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// EventSink receives progress events. Publishing is fire-and-forget:
// implementations must not block, and delivery is not guaranteed.
type EventSink interface {
	Publish(topic string, event ProgressEvent)
}

// TaskRegistry indexes in-flight upload tasks by id so that they can be
// cancelled out-of-band, and records the remote session information
// needed to abort a multipart upload after cancellation.
type TaskRegistry interface {
	// Register inserts a task before it emits any progress.
	Register(taskID, filename string, cancel context.CancelFunc)

	// AttachSession records the remote multipart session id and an abort
	// callback for a registered task. No-op if the task is gone.
	AttachSession(taskID, uploadID string, abort func(context.Context) error)

	// Release removes a task on natural completion. It reports whether
	// the entry was still present; the caller that observes true owns
	// emitting the terminal event.
	Release(taskID string) bool

	// Cancel stops a task, aborts its remote session if one was created,
	// and emits the cancelled terminal event. Best-effort; cancelling an
	// unknown or finished task is a no-op.
	Cancel(ctx context.Context, taskID string)
}

// Object is one stored object returned by a listing.
type Object struct {
	Key string `json:"key"`

	// Size is the object size in bytes.
	Size int64 `json:"size"`

	// LastModified is seconds since the Unix epoch.
	LastModified int64 `json:"lastModified"`

	// ETag is the integrity tag the store assigned to the object.
	ETag string `json:"etag"`
}

// ObjectListResult is one page of an object listing.
type ObjectListResult struct {
	Objects           []Object `json:"objects"`
	IsTruncated       bool     `json:"isTruncated"`
	ContinuationToken string   `json:"continuationToken,omitempty"`
	TotalCount        int      `json:"totalCount"`
}

// MultipartUpload is an unfinished multipart session on the remote store.
type MultipartUpload struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`

	// Initiated is seconds since the Unix epoch.
	Initiated int64 `json:"initiated"`
}

// MultipartUploadListResult is one page of unfinished multipart sessions.
type MultipartUploadListResult struct {
	Uploads           []MultipartUpload `json:"uploads"`
	IsTruncated       bool              `json:"isTruncated"`
	ContinuationToken string            `json:"continuationToken,omitempty"`
}

// CompletedPart pairs a part number with the integrity tag the store
// returned for it. The finalize call requires parts ordered ascending.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// Config describes one logical storage client. It is immutable once the
// client is constructed and safe to share across concurrent tasks.
type Config struct {
	// Bucket is the destination bucket name.
	Bucket string

	// AccountID selects the provider-default endpoint when no explicit
	// endpoint is configured.
	AccountID string

	AccessKey string
	SecretKey string

	// Domain is the public-facing domain used to build display URLs.
	Domain string

	// Endpoint overrides the provider-default endpoint when set. The
	// endpoint host also selects the presigning strategy.
	Endpoint string
}

// ClientConfig holds resolved client construction options.
type ClientConfig struct {
	// ChunkSize is the multipart threshold and part size in bytes.
	ChunkSize int64

	// Concurrency caps in-flight part uploads per task.
	Concurrency int64

	// HTTPClient replaces the default proxy-aware client with fixed
	// connect/read timeouts.
	HTTPClient *http.Client

	// Filesystem abstracts local file access for upload sources.
	Filesystem fs.Filesystem

	// Sink receives progress events. Nil drops all events.
	Sink EventSink

	// Registry indexes in-flight tasks. Nil creates a client-local one.
	Registry TaskRegistry

	// DisableSystemProxy skips environment proxy detection.
	DisableSystemProxy bool

	// Now is the clock, injectable for deterministic presigning tests.
	Now func() time.Time
}

// Option configures a client at construction time.
type Option func(*ClientConfig)
