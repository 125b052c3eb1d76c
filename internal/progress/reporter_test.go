package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2uploader/uploader/internal/testutil"
	"github.com/r2uploader/uploader/uploadtypes"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	}
}

func TestReporterEvents(t *testing.T) {
	sink := &testutil.RecordingSink{}
	r := New(sink, "https://cdn.example.com", fixedClock())

	r.Uploading("task-1", "photos/cat.png", 0.5, 50, 100, 25.0)
	r.Success("task-1", "photos/cat.png")
	r.Cancelled("task-2", "other.txt")
	r.Error("task-3", "bad.bin", "part 2 failed")

	events := sink.Events()
	require.Len(t, events, 4)

	uploading := events[0]
	assert.Equal(t, "task-1", uploading.FileID)
	assert.Equal(t, "photos/cat.png", uploading.Filename)
	assert.Equal(t, "https://cdn.example.com/photos/cat.png", uploading.URL)
	assert.Equal(t, uploadtypes.StatusUploading, uploading.Status.Kind)
	assert.Equal(t, 0.5, uploading.Status.Progress)
	assert.Equal(t, int64(50), uploading.Status.BytesUploaded)
	assert.Equal(t, int64(100), uploading.Status.TotalBytes)
	assert.Equal(t, 25.0, uploading.Status.Speed)
	assert.Equal(t, fixedClock()().Unix(), uploading.Timestamp)

	success := events[1]
	assert.Equal(t, uploadtypes.StatusSuccess, success.Status.Kind)
	assert.True(t, success.Status.Terminal())

	cancelled := events[2]
	assert.Equal(t, uploadtypes.StatusCancelled, cancelled.Status.Kind)
	assert.Empty(t, cancelled.URL)

	errored := events[3]
	assert.Equal(t, uploadtypes.StatusError, errored.Status.Kind)
	assert.Equal(t, "part 2 failed", errored.Status.Message)
	assert.Equal(t, ErrorCode, errored.Status.Code)
}

func TestReporterURL(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		key    string
		want   string
	}{
		{
			name:   "plain domain",
			domain: "https://cdn.example.com",
			key:    "a/b.txt",
			want:   "https://cdn.example.com/a/b.txt",
		},
		{
			name:   "trailing slash collapsed",
			domain: "https://cdn.example.com/",
			key:    "a.txt",
			want:   "https://cdn.example.com/a.txt",
		},
		{
			name: "empty domain",
			key:  "a.txt",
			want: "/a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, tt.domain, nil)
			assert.Equal(t, tt.want, r.URL(tt.key))
		})
	}
}

func TestReporterNilSink(t *testing.T) {
	r := New(nil, "https://cdn.example.com", nil)

	// Must not panic.
	r.Uploading("task-1", "a.txt", 0, 0, 1, 0)
	r.Success("task-1", "a.txt")
}
