// Package progress publishes upload status events to an external sink.
package progress

import (
	"strings"
	"time"

	"github.com/r2uploader/uploader/events"
	"github.com/r2uploader/uploader/uploadtypes"
)

// ErrorCode is the fixed machine-readable code carried by error events.
const ErrorCode = "UPLOAD_ERROR"

// Reporter emits progress events for upload tasks. A nil sink drops
// everything, so callers never need to guard emit calls.
type Reporter struct {
	sink   uploadtypes.EventSink
	domain string
	now    func() time.Time
}

// New builds a reporter publishing to sink. domain is the public domain
// used to build display URLs and may be empty.
func New(sink uploadtypes.EventSink, domain string, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{sink: sink, domain: domain, now: now}
}

// URL returns the public display URL for an object key.
func (r *Reporter) URL(key string) string {
	if r.domain == "" {
		return "/" + key
	}
	return strings.TrimSuffix(r.domain, "/") + "/" + key
}

// Uploading emits an in-flight progress snapshot.
func (r *Reporter) Uploading(taskID, key string, progress float64, bytesUploaded, totalBytes int64, speed float64) {
	r.emit(taskID, key, r.URL(key), uploadtypes.Uploading(progress, bytesUploaded, totalBytes, speed))
}

// Success emits the terminal success event.
func (r *Reporter) Success(taskID, key string) {
	r.emit(taskID, key, r.URL(key), uploadtypes.Success())
}

// Cancelled emits the terminal cancelled event. The URL is left empty:
// a cancelled task has no destination to show.
func (r *Reporter) Cancelled(taskID, key string) {
	r.emit(taskID, key, "", uploadtypes.Cancelled())
}

// Error emits the terminal error event with the fixed error code.
func (r *Reporter) Error(taskID, key, message string) {
	r.emit(taskID, key, r.URL(key), uploadtypes.Errored(message, ErrorCode))
}

func (r *Reporter) emit(taskID, key, url string, status uploadtypes.Status) {
	if r.sink == nil {
		return
	}
	r.sink.Publish(events.TopicUploadProgress, uploadtypes.ProgressEvent{
		FileID:    taskID,
		Filename:  key,
		URL:       url,
		Status:    status,
		Timestamp: r.now().Unix(),
	})
}
