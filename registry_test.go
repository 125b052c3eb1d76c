package uploader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2uploader/uploader/internal/testutil"
	"github.com/r2uploader/uploader/uploadtypes"
)

func TestRegistryReleaseOwnership(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("task-1", "a.txt", func() {})

	assert.True(t, r.Release("task-1"))
	assert.False(t, r.Release("task-1"))
	assert.False(t, r.Release("never-registered"))
}

func TestRegistryCancel(t *testing.T) {
	sink := &testutil.RecordingSink{}
	r := NewRegistry(sink)

	var cancelled, aborted bool
	r.Register("task-1", "big.bin", func() { cancelled = true })
	r.AttachSession("task-1", "upload-1", func(context.Context) error {
		aborted = true
		return nil
	})

	r.Cancel(context.Background(), "task-1")

	assert.True(t, cancelled)
	assert.True(t, aborted)

	events := sink.EventsFor("task-1")
	require.Len(t, events, 1)
	assert.Equal(t, uploadtypes.StatusCancelled, events[0].Status.Kind)
	assert.Equal(t, "big.bin", events[0].Filename)
	assert.Empty(t, events[0].URL)

	// The entry is gone; the task's own completion path loses the race.
	assert.False(t, r.Release("task-1"))
}

func TestRegistryCancelWithoutSession(t *testing.T) {
	sink := &testutil.RecordingSink{}
	r := NewRegistry(sink)

	var cancelled bool
	r.Register("task-1", "a.txt", func() { cancelled = true })

	r.Cancel(context.Background(), "task-1")

	assert.True(t, cancelled)
	require.Len(t, sink.EventsFor("task-1"), 1)
}

func TestRegistryCancelUnknownTask(t *testing.T) {
	sink := &testutil.RecordingSink{}
	r := NewRegistry(sink)

	r.Cancel(context.Background(), "ghost")

	assert.Empty(t, sink.Events())
}

func TestRegistryCancelAbortFailure(t *testing.T) {
	sink := &testutil.RecordingSink{}
	r := NewRegistry(sink)

	r.Register("task-1", "big.bin", func() {})
	r.AttachSession("task-1", "upload-1", func(context.Context) error {
		return errors.New("network down")
	})

	// A failed remote abort still produces the cancelled event.
	r.Cancel(context.Background(), "task-1")
	require.Len(t, sink.EventsFor("task-1"), 1)
}

func TestRegistryAttachSessionAfterRelease(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("task-1", "a.txt", func() {})
	require.True(t, r.Release("task-1"))

	// Attaching to a finished task is a no-op.
	r.AttachSession("task-1", "upload-1", func(context.Context) error { return nil })
	assert.False(t, r.Release("task-1"))
}
