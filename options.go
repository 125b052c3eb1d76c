package uploader

import (
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/r2uploader/uploader/uploadtypes"
)

// WithChunkSize sets the multipart threshold and part size in bytes.
// Non-positive values fall back to the default.
func WithChunkSize(size int64) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.ChunkSize = size
	}
}

// WithConcurrency caps concurrent part uploads per task. Non-positive
// values fall back to the default.
func WithConcurrency(n int64) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.Concurrency = n
	}
}

// WithHTTPClient replaces the default HTTP client, including its proxy
// handling and timeouts.
func WithHTTPClient(client *http.Client) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.HTTPClient = client
	}
}

// WithFilesystem sets the filesystem used to read upload sources. Useful
// for tests with an in-memory filesystem.
func WithFilesystem(filesystem fs.Filesystem) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.Filesystem = filesystem
	}
}

// WithSink sets the destination for progress events. Without a sink all
// events are dropped.
func WithSink(sink uploadtypes.EventSink) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.Sink = sink
	}
}

// WithRegistry shares a task registry between clients so tasks from all
// of them can be cancelled through one index.
func WithRegistry(registry uploadtypes.TaskRegistry) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.Registry = registry
	}
}

// WithDisableSystemProxy turns off environment proxy detection for the
// default HTTP client.
func WithDisableSystemProxy() uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.DisableSystemProxy = true
	}
}

// WithClock overrides the time source. Presigned URLs and event
// timestamps become deterministic under test.
func WithClock(now func() time.Time) uploadtypes.Option {
	return func(cfg *uploadtypes.ClientConfig) {
		cfg.Now = now
	}
}
