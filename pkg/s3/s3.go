// Package s3 keeps record ciphertext in a private bucket. Clients read it back
// through presigned GET URLs; the API never streams blobs itself.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Alijeyrad/medvault_backend/config"
)

type Client struct {
	api     *s3.Client
	presign *s3.PresignClient
	cfg     Config
}

// New builds a client from the s3 config section.
func New(c config.S3Config) (*Client, error) {
	return NewClient(context.Background(), FromCentralConfig(c))
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: aws config: %w", err)
	}

	api := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{api: api, presign: s3.NewPresignClient(api), cfg: cfg}, nil
}

func (c *Client) object(key string) (*string, *string) {
	return aws.String(c.cfg.Bucket), aws.String(key)
}

// Upload writes one private object of exactly size bytes.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	bucket, k := c.object(key)
	if _, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        bucket,
		Key:           k,
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPrivate,
	}); err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

// PresignDownload signs a GET for key valid for the configured TTL. Signing
// is local and does not check that the object exists.
func (c *Client) PresignDownload(ctx context.Context, key string) (string, error) {
	bucket, k := c.object(key)
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: k},
		s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete is idempotent; S3 reports success for missing keys.
func (c *Client) Delete(ctx context.Context, key string) error {
	bucket, k := c.object(key)
	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: k}); err != nil {
		return fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return nil
}
