// Package storage archives pipeline run reports in S3-compatible object
// storage.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Saul-Punybz/unbiased/internal/config"
)

// objectAPI is the subset of the S3 client used here.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client wraps an S3-compatible object storage client.
type Client struct {
	s3     objectAPI
	bucket string
}

// NewClient creates a new S3-compatible storage client. Without an endpoint
// the client is returned unconfigured and every call is a no-op.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("S3 endpoint not configured, run archive disabled")
		return &Client{bucket: cfg.Bucket}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		o.UsePathStyle = true
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
	}, nil
}

// Configured returns true if the S3 client has a valid connection configured.
func (c *Client) Configured() bool {
	return c.s3 != nil
}

// RunKey returns the object key of a run archive.
func RunKey(runID string, at time.Time) string {
	return fmt.Sprintf("runs/%s/%s.json.gz", at.UTC().Format("2006/01/02"), runID)
}

// ArchiveRun uploads report as gzip-compressed JSON under RunKey. The
// SHA-256 of the uncompressed JSON is stored as object metadata.
func (c *Client) ArchiveRun(ctx context.Context, runID string, at time.Time, report any) error {
	if c.s3 == nil {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("storage: marshal run %s: %w", runID, err)
	}
	body, err := gzipCompress(data)
	if err != nil {
		return fmt.Errorf("storage: compress run %s: %w", runID, err)
	}

	key := RunKey(runID, at)
	contentType := "application/json"
	contentEncoding := "gzip"
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          &c.bucket,
		Key:             &key,
		Body:            bytes.NewReader(body),
		ContentType:     &contentType,
		ContentEncoding: &contentEncoding,
		Metadata:        map[string]string{"sha256": sha256sum(data)},
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}

	slog.Debug("run archived", "key", key, "size", len(body))
	return nil
}

// FetchRun downloads and decompresses a run archive.
func (c *Client) FetchRun(ctx context.Context, runID string, at time.Time) ([]byte, error) {
	if c.s3 == nil {
		return nil, fmt.Errorf("storage: not configured")
	}

	key := RunKey(runID, at)
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	data, err := gzipDecompress(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: decompress %s: %w", key, err)
	}
	return data, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
