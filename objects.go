package uploader

import (
	"context"
	"time"

	storageerrors "github.com/r2uploader/uploader/errors"
	"github.com/r2uploader/uploader/internal/signer"
	"github.com/r2uploader/uploader/uploadtypes"
)

// ListObjects returns one page of objects in the bucket. maxKeys bounds
// the page size; zero lets the store pick its default. continuationToken
// resumes a previous truncated listing and may be empty.
func (c *Client) ListObjects(
	ctx context.Context,
	maxKeys int32,
	continuationToken string,
) (*uploadtypes.ObjectListResult, error) {
	return c.transport.ListObjects(ctx, maxKeys, continuationToken)
}

// ListMultipartUploads returns the unfinished multipart sessions in the
// bucket, typically orphans left behind by failed or cancelled uploads.
func (c *Client) ListMultipartUploads(ctx context.Context) (*uploadtypes.MultipartUploadListResult, error) {
	return c.transport.ListMultipartUploads(ctx)
}

// DeleteObject removes a single object. Deleting a missing key succeeds.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return storageerrors.NewError("deleteObject", storageerrors.ErrInvalidObjectKey)
	}
	return c.transport.DeleteObject(ctx, key)
}

// AbortMultipartUpload discards an unfinished multipart session and any
// parts it accumulated.
func (c *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if key == "" {
		return storageerrors.NewError("abortMultipartUpload", storageerrors.ErrInvalidObjectKey)
	}
	if uploadID == "" {
		return storageerrors.NewError("abortMultipartUpload", storageerrors.ErrMissingUploadID).WithKey(key)
	}
	return c.transport.AbortMultipartUpload(ctx, key, uploadID)
}

// PresignedURL produces a time-limited GET URL for an object. A
// non-positive ttl falls back to one hour. The signing strategy follows
// the configured endpoint.
func (c *Client) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", storageerrors.NewError("presign", storageerrors.ErrInvalidObjectKey)
	}
	if ttl <= 0 {
		ttl = signer.DefaultTTL
	}
	return c.signer.PresignGetObject(ctx, key, ttl)
}
