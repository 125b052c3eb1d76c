// Package signer produces time-limited download URLs. Two interchangeable
// strategies exist: the SDK's native presigner, and a manually implemented
// canonical-request signer for Alibaba Cloud OSS, whose V4 presigning has
// no SDK support here.
package signer

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	storageerrors "github.com/r2uploader/uploader/errors"
)

// DefaultTTL is the presigned URL lifetime when the caller does not
// specify one.
const DefaultTTL = 3600 * time.Second

// ossEndpointMarker selects the manual OSS signer by endpoint inspection.
const ossEndpointMarker = "aliyuncs.com"

// Signer produces a URL that allows one unauthenticated GET of an object
// for a limited time.
type Signer interface {
	PresignGetObject(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ForEndpoint picks the signing strategy for the configured endpoint.
// Endpoints carrying the OSS marker get the manual canonical-request
// signer; everything else uses the SDK presigner. client may be nil for
// mocked transports, in which case only the OSS strategy is usable.
func ForEndpoint(
	client *s3.Client,
	endpoint, bucket, accessKey, secretKey string,
	now func() time.Time,
) Signer {
	if strings.Contains(endpoint, ossEndpointMarker) {
		return &OSSV4Signer{
			Endpoint:  endpoint,
			Bucket:    bucket,
			AccessKey: accessKey,
			SecretKey: secretKey,
			Now:       now,
		}
	}
	if client == nil {
		return unavailableSigner{}
	}
	return &sdkSigner{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}
}

// sdkSigner delegates to the SDK's native presign support.
type sdkSigner struct {
	presigner *s3.PresignClient
	bucket    string
}

func (s *sdkSigner) PresignGetObject(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", storageerrors.NewObjectError("presign", s.bucket, key, err)
	}
	return request.URL, nil
}

// unavailableSigner stands in when the client was constructed around a
// mocked transport and the endpoint needs SDK presigning.
type unavailableSigner struct{}

func (unavailableSigner) PresignGetObject(_ context.Context, key string, _ time.Duration) (string, error) {
	return "", storageerrors.NewError("presign", storageerrors.ErrPresignUnavailable).WithKey(key)
}
