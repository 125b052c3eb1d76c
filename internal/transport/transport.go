// Package transport is the thin, retry-free adapter between the upload
// engine and one S3-compatible bucket. Every method maps 1:1 to a remote
// call; no local state is retained between calls.
package transport

import (
	"bytes"
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	storageerrors "github.com/r2uploader/uploader/errors"
	"github.com/r2uploader/uploader/internal/s3api"
	"github.com/r2uploader/uploader/uploadtypes"
)

// Transport binds an S3 API client to a single bucket.
type Transport struct {
	api    s3api.S3API
	bucket string
}

// New creates a Transport over the given API client and bucket.
func New(api s3api.S3API, bucket string) *Transport {
	return &Transport{
		api:    api,
		bucket: bucket,
	}
}

// Bucket returns the bucket this transport is bound to.
func (t *Transport) Bucket() string {
	return t.bucket
}

// HeadBucket probes the bucket for existence and reachability.
func (t *Transport) HeadBucket(ctx context.Context) error {
	_, err := t.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(t.bucket),
	})
	if err != nil {
		return storageerrors.NewError("headBucket", err).WithBucket(t.bucket)
	}
	return nil
}

// PutObject uploads body as a single object.
func (t *Transport) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := t.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return storageerrors.NewObjectError("putObject", t.bucket, key, err)
	}
	return nil
}

// CreateMultipartUpload opens a multipart session and returns its id.
func (t *Transport) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	out, err := t.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", storageerrors.NewObjectError("createMultipartUpload", t.bucket, key, err)
	}
	uploadID := aws.ToString(out.UploadId)
	if uploadID == "" {
		return "", storageerrors.NewObjectError(
			"createMultipartUpload", t.bucket, key, storageerrors.ErrMissingUploadID)
	}
	return uploadID, nil
}

// UploadPart uploads one numbered part and returns its integrity tag.
func (t *Transport) UploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	body []byte,
) (string, error) {
	out, err := t.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(t.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(body),
	})
	if err != nil {
		return "", storageerrors.NewObjectError("uploadPart", t.bucket, key, err)
	}
	etag := aws.ToString(out.ETag)
	if etag == "" {
		return "", storageerrors.NewObjectError("uploadPart", t.bucket, key, storageerrors.ErrMissingETag)
	}
	return etag, nil
}

// CompleteMultipartUpload finalizes a session. The store rejects parts that
// are out of order or have gaps, so parts are sorted ascending here before
// the request is issued.
func (t *Transport) CompleteMultipartUpload(
	ctx context.Context,
	key, uploadID string,
	parts []uploadtypes.CompletedPart,
) error {
	sorted := make([]uploadtypes.CompletedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PartNumber < sorted[j].PartNumber
	})

	completed := make([]awstypes.CompletedPart, 0, len(sorted))
	for _, p := range sorted {
		completed = append(completed, awstypes.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}

	_, err := t.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return storageerrors.NewObjectError("completeMultipartUpload", t.bucket, key, err)
	}
	return nil
}

// AbortMultipartUpload discards a multipart session on the remote store.
func (t *Transport) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := t.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return storageerrors.NewObjectError("abortMultipartUpload", t.bucket, key, err)
	}
	return nil
}

// ListObjects returns one page of the bucket's objects.
func (t *Transport) ListObjects(
	ctx context.Context,
	maxKeys int32,
	continuationToken string,
) (*uploadtypes.ObjectListResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(maxKeys)
	}
	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	out, err := t.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, storageerrors.NewError("listObjects", err).WithBucket(t.bucket)
	}

	result := &uploadtypes.ObjectListResult{
		Objects:           make([]uploadtypes.Object, 0, len(out.Contents)),
		IsTruncated:       aws.ToBool(out.IsTruncated),
		ContinuationToken: aws.ToString(out.NextContinuationToken),
		TotalCount:        int(aws.ToInt32(out.KeyCount)),
	}
	for _, obj := range out.Contents {
		result.Objects = append(result.Objects, uploadtypes.Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified).Unix(),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	return result, nil
}

// ListMultipartUploads returns the bucket's unfinished multipart sessions.
func (t *Transport) ListMultipartUploads(ctx context.Context) (*uploadtypes.MultipartUploadListResult, error) {
	out, err := t.api.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(t.bucket),
	})
	if err != nil {
		return nil, storageerrors.NewError("listMultipartUploads", err).WithBucket(t.bucket)
	}

	result := &uploadtypes.MultipartUploadListResult{
		Uploads:           make([]uploadtypes.MultipartUpload, 0, len(out.Uploads)),
		IsTruncated:       aws.ToBool(out.IsTruncated),
		ContinuationToken: aws.ToString(out.NextKeyMarker),
	}
	for _, u := range out.Uploads {
		result.Uploads = append(result.Uploads, uploadtypes.MultipartUpload{
			Key:       aws.ToString(u.Key),
			UploadID:  aws.ToString(u.UploadId),
			Initiated: aws.ToTime(u.Initiated).Unix(),
		})
	}
	return result, nil
}

// DeleteObject deletes a single object. Deleting a missing object is not
// an error on S3-compatible stores.
func (t *Transport) DeleteObject(ctx context.Context, key string) error {
	_, err := t.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storageerrors.NewObjectError("deleteObject", t.bucket, key, err)
	}
	return nil
}
