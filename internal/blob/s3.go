// Package blob publishes local files to object storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignTTL is how long download links stay valid when not configured.
const DefaultPresignTTL = time.Hour

// S3Config holds bucket and credential settings for S3Uploader.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the service endpoint, e.g. for S3-compatible stores.
	Endpoint     string
	UsePathStyle bool
	PresignTTL   time.Duration
}

// S3Uploader uploads files to a bucket and returns presigned GET URLs.
// Each Upload builds its own client, so no connection state outlives a call.
type S3Uploader struct {
	cfg S3Config
}

// NewS3Uploader validates cfg and returns an uploader.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket must be set")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}
	return &S3Uploader{cfg: cfg}, nil
}

func (u *S3Uploader) client(ctx context.Context) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(u.cfg.Region),
	}
	if u.cfg.AccessKeyID != "" && u.cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(u.cfg.AccessKeyID, u.cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if u.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(u.cfg.Endpoint)
		}
		o.UsePathStyle = u.cfg.UsePathStyle
	}), nil
}

// ObjectKey is the key a local file is stored under: its base name.
func ObjectKey(localPath string) string {
	return filepath.Base(localPath)
}

// Upload stores the file under its base name and returns a presigned URL.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(localPath)

	client, err := u.client(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Error("failed to upload file to S3", "bucket", u.cfg.Bucket, "key", key, "error", err)
		return "", fmt.Errorf("put object %s/%s: %w", u.cfg.Bucket, key, err)
	}

	presigned, err := s3.NewPresignClient(client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", u.cfg.Bucket, key, err)
	}

	slog.Info("uploaded file to S3", "bucket", u.cfg.Bucket, "key", key)
	return presigned.URL, nil
}
