// Package uploader provides an upload orchestration client for
// S3-compatible object stores.
//
// The Client decides between a single put and a chunked multipart upload
// based on payload size, runs parts concurrently with bounded
// parallelism, publishes structured progress events, and supports
// cancelling in-flight tasks including aborting their remote multipart
// sessions. Presigned GET URLs are produced either through the AWS SDK
// or, for Alibaba Cloud OSS endpoints, through a local V4 query signer.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	storageerrors "github.com/r2uploader/uploader/errors"
	"github.com/r2uploader/uploader/internal/progress"
	"github.com/r2uploader/uploader/internal/s3api"
	"github.com/r2uploader/uploader/internal/signer"
	"github.com/r2uploader/uploader/internal/transfer"
	"github.com/r2uploader/uploader/internal/transport"
	"github.com/r2uploader/uploader/uploadtypes"
)

// Defaults applied when the corresponding option is not set.
const (
	// DefaultChunkSize is both the multipart threshold and the part size.
	DefaultChunkSize = 5 * 1024 * 1024

	// DefaultConcurrency caps in-flight part uploads per task.
	DefaultConcurrency = 16

	// Timeouts for the default HTTP transport.
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 30 * time.Second
)

// defaultEndpointFormat builds the provider endpoint from an account id
// when no explicit endpoint is configured.
const defaultEndpointFormat = "https://%s.r2.cloudflarestorage.com"

// Client orchestrates uploads against a single bucket. It is safe for
// concurrent use; all configuration is fixed at construction time.
type Client struct {
	transport    *transport.Transport
	orchestrator *transfer.Orchestrator
	reporter     *progress.Reporter
	registry     uploadtypes.TaskRegistry
	signer       signer.Signer
	endpoint     string
}

// New creates a client for the store described by cfg. Bucket, access
// key, and secret key are required; the endpoint is derived from the
// account id when not set explicitly.
func New(cfg uploadtypes.Config, opts ...uploadtypes.Option) (*Client, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, storageerrors.NewError("client initialization", storageerrors.ErrInvalidInput)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, storageerrors.NewError("client initialization", storageerrors.ErrMissingEndpoint)
		}
		endpoint = fmt.Sprintf(defaultEndpointFormat, cfg.AccountID)
	}

	clientCfg := &uploadtypes.ClientConfig{
		ChunkSize:   DefaultChunkSize,
		Concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}
	if clientCfg.ChunkSize <= 0 {
		clientCfg.ChunkSize = DefaultChunkSize
	}
	if clientCfg.Concurrency <= 0 {
		clientCfg.Concurrency = DefaultConcurrency
	}

	awsCfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, storageerrors.NewError("client initialization", err)
	}

	httpClient := clientCfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(clientCfg.DisableSystemProxy)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		// R2 and other non-AWS stores reject the default flexible
		// checksum headers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.HTTPClient = httpClient
	})

	filesystem := clientCfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewOSFS("/")
	}

	registry := clientCfg.Registry
	if registry == nil {
		registry = NewRegistry(clientCfg.Sink)
	}

	t := transport.New(s3Client, cfg.Bucket)
	reporter := progress.New(clientCfg.Sink, cfg.Domain, clientCfg.Now)

	client := &Client{
		transport:    t,
		orchestrator: transfer.New(t, filesystem, reporter, registry, clientCfg.ChunkSize, clientCfg.Concurrency),
		reporter:     reporter,
		registry:     registry,
		signer:       signer.ForEndpoint(s3Client, endpoint, cfg.Bucket, cfg.AccessKey, cfg.SecretKey, clientCfg.Now),
		endpoint:     endpoint,
	}

	slog.Info("storage client initialized",
		"bucket", cfg.Bucket,
		"endpoint", endpoint,
		"chunkSize", clientCfg.ChunkSize,
		"concurrency", clientCfg.Concurrency,
	)

	return client, nil
}

// NewWithClient creates a client backed by a custom S3API implementation.
// This is primarily used for testing with mocked clients. Presigning
// through the SDK is unavailable on such clients; OSS endpoints still
// presign locally.
func NewWithClient(api s3api.S3API, cfg uploadtypes.Config, opts ...uploadtypes.Option) *Client {
	clientCfg := &uploadtypes.ClientConfig{
		ChunkSize:   DefaultChunkSize,
		Concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}
	if clientCfg.ChunkSize <= 0 {
		clientCfg.ChunkSize = DefaultChunkSize
	}
	if clientCfg.Concurrency <= 0 {
		clientCfg.Concurrency = DefaultConcurrency
	}

	filesystem := clientCfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewOSFS("/")
	}
	registry := clientCfg.Registry
	if registry == nil {
		registry = NewRegistry(clientCfg.Sink)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf(defaultEndpointFormat, cfg.AccountID)
	}

	t := transport.New(api, cfg.Bucket)
	reporter := progress.New(clientCfg.Sink, cfg.Domain, clientCfg.Now)

	return &Client{
		transport:    t,
		orchestrator: transfer.New(t, filesystem, reporter, registry, clientCfg.ChunkSize, clientCfg.Concurrency),
		reporter:     reporter,
		registry:     registry,
		signer:       signer.ForEndpoint(nil, endpoint, cfg.Bucket, cfg.AccessKey, cfg.SecretKey, clientCfg.Now),
		endpoint:     endpoint,
	}
}

// Endpoint returns the resolved endpoint the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// newHTTPClient builds the default transport with fixed connect and read
// timeouts. System proxy settings are honored unless disabled.
func newHTTPClient(disableProxy bool) *http.Client {
	proxy := http.ProxyFromEnvironment
	if disableProxy {
		proxy = nil
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: proxy,
			DialContext: (&net.Dialer{
				Timeout: defaultConnectTimeout,
			}).DialContext,
			ResponseHeaderTimeout: defaultReadTimeout,
		},
	}
}
