package uploader

import (
	"context"

	"github.com/google/uuid"

	storageerrors "github.com/r2uploader/uploader/errors"
	"github.com/r2uploader/uploader/uploadtypes"
)

// Ping verifies that the configured bucket is reachable with the
// configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.transport.HeadBucket(ctx)
}

// Upload starts one asynchronous upload task per request and returns the
// task ids in request order. Validation failures reject the whole batch
// before any task starts. Each task emits progress events until exactly
// one terminal event; results are delivered through the event sink, not
// through a return value.
func (c *Client) Upload(ctx context.Context, requests []uploadtypes.Request) ([]string, error) {
	if len(requests) == 0 {
		return nil, storageerrors.NewError("upload", storageerrors.ErrInvalidInput)
	}
	for _, req := range requests {
		if req.Key == "" {
			return nil, storageerrors.NewError("upload", storageerrors.ErrInvalidObjectKey)
		}
		if req.Source.FilePath == "" && req.Source.Content == nil {
			return nil, storageerrors.NewError("upload", storageerrors.ErrInvalidInput).WithKey(req.Key)
		}
	}

	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		ids = append(ids, req.ID)

		taskCtx, cancel := context.WithCancel(ctx)
		c.registry.Register(req.ID, req.Key, cancel)

		go c.runTask(taskCtx, req)
	}

	return ids, nil
}

// runTask executes one upload and emits its terminal event. Whoever
// removes the registry entry first, this task or a concurrent Cancel,
// owns the terminal event, so a cancelled task emits nothing here.
func (c *Client) runTask(ctx context.Context, req uploadtypes.Request) {
	var err error
	if req.Source.Inline() {
		err = c.orchestrator.UploadContent(ctx, req.ID, req.Key, req.Source.Content)
	} else {
		err = c.orchestrator.UploadFile(ctx, req.ID, req.Key, req.Source.FilePath)
	}

	if !c.registry.Release(req.ID) {
		return
	}
	if err != nil {
		c.reporter.Error(req.ID, req.Key, err.Error())
		return
	}
	c.reporter.Success(req.ID, req.Key)
}

// CancelUpload stops an in-flight task. If the task already opened a
// multipart session, the session is aborted on the remote store. A
// cancelled event is emitted only when the task was still running;
// cancelling an unknown or finished task is a no-op.
func (c *Client) CancelUpload(ctx context.Context, taskID string) {
	c.registry.Cancel(ctx, taskID)
}
