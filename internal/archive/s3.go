// Package archive stores one JSON document per finished cycle in an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"liquidify/internal/domain"
)

// Config holds the S3 connection parameters.
type Config struct {
	// Endpoint of an S3-compatible provider. Empty for AWS S3.
	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string // key prefix, default "cycles"
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Uploader is the subset of manager.Uploader used by the archiver.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver writes cycle results as JSON objects.
type S3Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// New creates an archiver backed by the AWS SDK.
func New(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("archive: region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewWithUploader(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

// NewWithUploader creates an archiver on top of an existing uploader.
func NewWithUploader(u Uploader, bucket, prefix string) *S3Archiver {
	if prefix == "" {
		prefix = "cycles"
	}
	return &S3Archiver{uploader: u, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Archive uploads r and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, r *domain.CycleResult) (string, error) {
	if r == nil || r.CycleID == "" {
		return "", fmt.Errorf("archive: cycle id is required")
	}

	body, err := json.MarshalIndent(newDocument(r), "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal cycle %s: %w", r.CycleID, err)
	}

	key := ObjectKey(a.prefix, r)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey returns <prefix>/<mint>/<yyyy>/<mm>/<dd>/<cycle_id>.json,
// dated by the cycle start in UTC.
func ObjectKey(prefix string, r *domain.CycleResult) string {
	day := time.UnixMilli(r.StartedAt).UTC().Format("2006/01/02")
	mint := r.Mint
	if mint == "" {
		mint = "unknown"
	}
	return path.Join(prefix, mint, day, r.CycleID+".json")
}

// normaliseEndpoint ensures the endpoint has a scheme.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	// "host:port" parses as a URL with scheme "host", so require "://"
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
