package uploader

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/r2uploader/uploader/internal/progress"
	"github.com/r2uploader/uploader/uploadtypes"
)

const registryShards = 16

// taskEntry is the registry's record of one in-flight upload.
type taskEntry struct {
	filename string
	cancel   context.CancelFunc
	uploadID string
	abort    func(context.Context) error
}

// Registry tracks in-flight upload tasks so they can be cancelled while
// running. It is sharded by task id to keep contention low when many
// tasks register and release concurrently.
type Registry struct {
	shards   [registryShards]registryShard
	reporter *progress.Reporter
}

type registryShard struct {
	mu    sync.Mutex
	tasks map[string]*taskEntry
}

// NewRegistry creates a registry that publishes cancelled events to sink.
// A nil sink is valid and drops the events.
func NewRegistry(sink uploadtypes.EventSink) *Registry {
	r := &Registry{
		// Cancelled events carry no URL, so no domain is needed here.
		reporter: progress.New(sink, "", nil),
	}
	for i := range r.shards {
		r.shards[i].tasks = make(map[string]*taskEntry)
	}
	return r
}

func (r *Registry) shard(taskID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return &r.shards[h.Sum32()%registryShards]
}

// Register implements uploadtypes.TaskRegistry.
func (r *Registry) Register(taskID, filename string, cancel context.CancelFunc) {
	s := r.shard(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = &taskEntry{filename: filename, cancel: cancel}
}

// AttachSession implements uploadtypes.TaskRegistry.
func (r *Registry) AttachSession(taskID, uploadID string, abort func(context.Context) error) {
	s := r.shard(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tasks[taskID]
	if !ok {
		return
	}
	entry.uploadID = uploadID
	entry.abort = abort
}

// Release implements uploadtypes.TaskRegistry. The caller that observes
// true won the race against Cancel and owns the terminal event.
func (r *Registry) Release(taskID string) bool {
	s := r.shard(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return false
	}
	delete(s.tasks, taskID)
	return true
}

// Cancel implements uploadtypes.TaskRegistry. The entry is removed before
// anything else so that the task's own completion path cannot also emit a
// terminal event. Aborting the remote session is best effort; a leftover
// session remains listable and abortable through the client.
func (r *Registry) Cancel(ctx context.Context, taskID string) {
	s := r.shard(taskID)
	s.mu.Lock()
	entry, ok := s.tasks[taskID]
	if ok {
		delete(s.tasks, taskID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	entry.cancel()

	if entry.uploadID != "" && entry.abort != nil {
		if err := entry.abort(ctx); err != nil {
			slog.Warn("failed to abort multipart session for cancelled task",
				"taskID", taskID,
				"uploadID", entry.uploadID,
				"error", err,
			)
		}
	}

	r.reporter.Cancelled(taskID, entry.filename)
}

var _ uploadtypes.TaskRegistry = (*Registry)(nil)
