package transfer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2uploader/uploader/internal/progress"
	"github.com/r2uploader/uploader/internal/testutil"
	"github.com/r2uploader/uploader/internal/transport"
	"github.com/r2uploader/uploader/uploadtypes"
)

// recordingSessions captures the multipart session attached by the
// orchestrator.
type recordingSessions struct {
	mu       sync.Mutex
	taskID   string
	uploadID string
	abort    func(context.Context) error
}

func (r *recordingSessions) AttachSession(taskID, uploadID string, abort func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskID = taskID
	r.uploadID = uploadID
	r.abort = abort
}

func newOrchestrator(
	mock *testutil.MockS3Client,
	fs *billy.FS,
	sink *testutil.RecordingSink,
	chunkSize, concurrency int64,
) (*Orchestrator, *recordingSessions) {
	sessions := &recordingSessions{}
	tr := transport.New(mock, "test-bucket")
	reporter := progress.New(sink, "https://cdn.example.com", nil)
	return New(tr, fs, reporter, sessions, chunkSize, concurrency), sessions
}

func TestUploadContent(t *testing.T) {
	var captured *s3.PutObjectInput
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			captured = params
			return &s3.PutObjectOutput{}, nil
		},
	}
	sink := &testutil.RecordingSink{}
	o, _ := newOrchestrator(mock, billy.NewInMemoryFS(), sink, 5*1024*1024, 16)

	err := o.UploadContent(context.Background(), "task-1", "notes/a.txt", []byte("hello"))
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "notes/a.txt", aws.ToString(captured.Key))
	assert.Equal(t, "text/plain; charset=utf-8", aws.ToString(captured.ContentType))

	body, err := io.ReadAll(captured.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)

	// The zero-progress event precedes the remote call.
	events := sink.EventsFor("task-1")
	require.NotEmpty(t, events)
	first := events[0]
	assert.Equal(t, uploadtypes.StatusUploading, first.Status.Kind)
	assert.Zero(t, first.Status.Progress)
	assert.Equal(t, int64(5), first.Status.TotalBytes)
	assert.Equal(t, "https://cdn.example.com/notes/a.txt", first.URL)
}

func TestUploadFileDirectPut(t *testing.T) {
	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("/tmp/small.txt", []byte("small content"), 0o644))

	var puts, creates atomic.Int32
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			puts.Add(1)
			return &s3.PutObjectOutput{}, nil
		},
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			creates.Add(1)
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("unexpected")}, nil
		},
	}
	sink := &testutil.RecordingSink{}
	o, sessions := newOrchestrator(mock, memFS, sink, 5*1024*1024, 16)

	err := o.UploadFile(context.Background(), "task-1", "small.txt", "/tmp/small.txt")
	require.NoError(t, err)

	assert.Equal(t, int32(1), puts.Load())
	assert.Zero(t, creates.Load())
	assert.Empty(t, sessions.uploadID)
}

func TestUploadFileMultipart(t *testing.T) {
	// 10 bytes with a 4-byte chunk size yields parts of 4, 4, and 2.
	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("/tmp/big.bin", []byte("0123456789"), 0o644))

	var mu sync.Mutex
	partBodies := map[int32][]byte{}
	var completed *s3.CompleteMultipartUploadInput

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			body, err := io.ReadAll(params.Body)
			if err != nil {
				return nil, err
			}
			pn := aws.ToInt32(params.PartNumber)
			mu.Lock()
			partBodies[pn] = body
			mu.Unlock()
			return &s3.UploadPartOutput{ETag: aws.String(etagFor(pn))}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			completed = params
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
	}
	sink := &testutil.RecordingSink{}
	o, sessions := newOrchestrator(mock, memFS, sink, 4, 16)

	err := o.UploadFile(context.Background(), "task-1", "big.bin", "/tmp/big.bin")
	require.NoError(t, err)

	assert.Equal(t, "task-1", sessions.taskID)
	assert.Equal(t, "upload-1", sessions.uploadID)

	require.Len(t, partBodies, 3)
	assert.Equal(t, []byte("0123"), partBodies[1])
	assert.Equal(t, []byte("4567"), partBodies[2])
	assert.Equal(t, []byte("89"), partBodies[3])

	require.NotNil(t, completed)
	assert.Equal(t, "upload-1", aws.ToString(completed.UploadId))
	require.Len(t, completed.MultipartUpload.Parts, 3)
	for i, p := range completed.MultipartUpload.Parts {
		assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
		assert.Equal(t, etagFor(int32(i+1)), aws.ToString(p.ETag))
	}

	// Progress reaches completion with byte-accurate accounting.
	events := sink.EventsFor("task-1")
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, int64(10), last.Status.BytesUploaded)
	assert.InDelta(t, 1.0, last.Status.Progress, 1e-9)
}

func TestUploadFileMultipartConcurrencyCap(t *testing.T) {
	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("/tmp/big.bin", make([]byte, 64), 0o644))

	var inFlight, maxInFlight atomic.Int32
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &s3.UploadPartOutput{ETag: aws.String(`"etag"`)}, nil
		},
	}
	sink := &testutil.RecordingSink{}
	o, _ := newOrchestrator(mock, memFS, sink, 4, 2)

	err := o.UploadFile(context.Background(), "task-1", "big.bin", "/tmp/big.bin")
	require.NoError(t, err)

	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestUploadFileMultipartPartFailure(t *testing.T) {
	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("/tmp/big.bin", make([]byte, 12), 0o644))

	var completes, aborts atomic.Int32
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			if aws.ToInt32(params.PartNumber) == 2 {
				return nil, errors.New("part failed")
			}
			return &s3.UploadPartOutput{ETag: aws.String(`"etag"`)}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, _ *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			completes.Add(1)
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
		AbortMultipartUploadFunc: func(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborts.Add(1)
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}
	sink := &testutil.RecordingSink{}
	o, sessions := newOrchestrator(mock, memFS, sink, 4, 16)

	err := o.UploadFile(context.Background(), "task-1", "big.bin", "/tmp/big.bin")
	require.Error(t, err)

	// The session is left open for out-of-band listing and abort.
	assert.Zero(t, completes.Load())
	assert.Zero(t, aborts.Load())
	assert.Equal(t, "upload-1", sessions.uploadID)
}

func TestUploadFileMissing(t *testing.T) {
	mock := &testutil.MockS3Client{}
	sink := &testutil.RecordingSink{}
	o, _ := newOrchestrator(mock, billy.NewInMemoryFS(), sink, 4, 16)

	err := o.UploadFile(context.Background(), "task-1", "gone.txt", "/tmp/gone.txt")
	require.Error(t, err)

	// No progress is reported for a source that cannot be read.
	assert.Empty(t, sink.EventsFor("task-1"))
}

func etagFor(partNumber int32) string {
	return map[int32]string{1: `"e1"`, 2: `"e2"`, 3: `"e3"`}[partNumber]
}
