// Package transfer moves upload payloads to the object store, choosing
// between a single put and a chunked multipart session based on size.
package transfer

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	storageerrors "github.com/r2uploader/uploader/errors"
	"github.com/r2uploader/uploader/internal/progress"
	"github.com/r2uploader/uploader/internal/transport"
	"github.com/r2uploader/uploader/uploadtypes"
)

// SessionRecorder receives the remote session id of a multipart upload
// so an out-of-band cancel can abort it.
type SessionRecorder interface {
	AttachSession(taskID, uploadID string, abort func(context.Context) error)
}

// Orchestrator runs individual upload tasks against a single bucket.
type Orchestrator struct {
	transport   *transport.Transport
	fs          fs.Filesystem
	reporter    *progress.Reporter
	sessions    SessionRecorder
	chunkSize   int64
	concurrency int64
}

// New creates an orchestrator. chunkSize is both the multipart threshold
// and the part size; concurrency caps in-flight parts per task.
func New(
	t *transport.Transport,
	filesystem fs.Filesystem,
	reporter *progress.Reporter,
	sessions SessionRecorder,
	chunkSize, concurrency int64,
) *Orchestrator {
	return &Orchestrator{
		transport:   t,
		fs:          filesystem,
		reporter:    reporter,
		sessions:    sessions,
		chunkSize:   chunkSize,
		concurrency: concurrency,
	}
}

// UploadContent uploads inline bytes as a single object. Inline payloads
// never use multipart regardless of size.
func (o *Orchestrator) UploadContent(ctx context.Context, taskID, key string, content []byte) error {
	size := int64(len(content))
	o.reporter.Uploading(taskID, key, 0, 0, size, 0)

	contentType := transport.ContentType(key, content)
	return o.transport.PutObject(ctx, key, content, contentType)
}

// UploadFile uploads a local file. Files smaller than the chunk size go
// up in a single put; everything else runs through a multipart session.
func (o *Orchestrator) UploadFile(ctx context.Context, taskID, key, path string) error {
	info, err := o.fs.Stat(path)
	if err != nil {
		return storageerrors.NewError("stat", err).WithKey(key)
	}
	size := info.Size()

	o.reporter.Uploading(taskID, key, 0, 0, size, 0)

	if size < o.chunkSize {
		data, err := o.fs.ReadFile(path)
		if err != nil {
			return storageerrors.NewError("readFile", err).WithKey(key)
		}
		contentType := transport.ContentType(key, data)
		return o.transport.PutObject(ctx, key, data, contentType)
	}

	return o.uploadMultipart(ctx, taskID, key, path, size)
}

// uploadMultipart streams the file through a multipart session. Parts are
// read sequentially but uploaded concurrently, bounded by a weighted
// semaphore. A failed part leaves the session open on the remote store
// for out-of-band listing and abort.
func (o *Orchestrator) uploadMultipart(ctx context.Context, taskID, key, path string, size int64) error {
	contentType := transport.ContentType(key, nil)

	uploadID, err := o.transport.CreateMultipartUpload(ctx, key, contentType)
	if err != nil {
		return err
	}
	o.sessions.AttachSession(taskID, uploadID, func(abortCtx context.Context) error {
		return o.transport.AbortMultipartUpload(abortCtx, key, uploadID)
	})

	slog.Debug("multipart session created",
		"key", key,
		"uploadID", uploadID,
		"size", size,
	)

	file, err := o.fs.Open(path)
	if err != nil {
		return storageerrors.NewError("open", err).WithKey(key)
	}
	defer func() { _ = file.Close() }()

	numParts := int((size + o.chunkSize - 1) / o.chunkSize)
	etags := make([]string, numParts)

	var uploaded atomic.Int64
	start := time.Now()

	// A failed part does not cancel its siblings; already-dispatched
	// uploads run to their own completion or failure. Only cancelling
	// the task context stops everything.
	sem := semaphore.NewWeighted(o.concurrency)
	var g errgroup.Group

	var dispatchErr error
	for partNumber := int32(1); partNumber <= int32(numParts); partNumber++ {
		// Acquiring before the read bounds buffered memory along with
		// in-flight requests.
		if err := sem.Acquire(ctx, 1); err != nil {
			dispatchErr = storageerrors.NewError("uploadPart", err).WithKey(key)
			break
		}

		chunk := make([]byte, o.chunkSize)
		n, err := io.ReadFull(file, chunk)
		if err != nil && err != io.ErrUnexpectedEOF {
			sem.Release(1)
			_ = g.Wait()
			return storageerrors.NewError("readChunk", err).WithKey(key)
		}
		chunk = chunk[:n]

		pn := partNumber
		g.Go(func() error {
			defer sem.Release(1)

			etag, err := o.transport.UploadPart(ctx, key, uploadID, pn, chunk)
			if err != nil {
				return err
			}
			etags[pn-1] = etag

			total := uploaded.Add(int64(len(chunk)))
			elapsed := time.Since(start).Seconds()
			speed := 0.0
			if elapsed > 0 {
				speed = float64(total) / elapsed
			}
			o.reporter.Uploading(taskID, key, float64(total)/float64(size), total, size, speed)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if dispatchErr != nil {
		return dispatchErr
	}

	completed := make([]uploadtypes.CompletedPart, 0, numParts)
	for i, etag := range etags {
		completed = append(completed, uploadtypes.CompletedPart{PartNumber: int32(i + 1), ETag: etag})
	}

	return o.transport.CompleteMultipartUpload(ctx, key, uploadID, completed)
}
