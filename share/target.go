package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Options describes how a shared file should be presented to the receiver
type Options struct {
	MimeType    string
	DialogTitle string
	UTI         string
}

// DefaultOptions are used for exported JSON reports
var DefaultOptions = Options{
	MimeType:    "application/json",
	DialogTitle: "Share Test Results",
	UTI:         "public.json",
}

// Target offers an exported file to somewhere outside the process
type Target interface {
	// Name identifies the target in logs and metrics
	Name() string
	// Available reports whether the target can currently accept a share
	Available(ctx context.Context) bool
	// Share hands the file at path to the target
	Share(ctx context.Context, path string, opts Options) error
}

var (
	_ Target = NopTarget{}
	_ Target = (*DirTarget)(nil)
	_ Target = (*S3Target)(nil)
)

// NopTarget is never available
type NopTarget struct{}

func (NopTarget) Name() string                                 { return "none" }
func (NopTarget) Available(context.Context) bool               { return false }
func (NopTarget) Share(context.Context, string, Options) error { return ErrSharingUnavailable }

// DirTarget shares a file by copying it into an outbox directory
type DirTarget struct {
	Dir string
}

func (t *DirTarget) Name() string { return "dir" }

func (t *DirTarget) Available(context.Context) bool {
	return t.Dir != ""
}

func (t *DirTarget) Share(ctx context.Context, src string, _ Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create share directory %s: %w", t.Dir, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	dst := filepath.Join(t.Dir, filepath.Base(src))
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", dst, err)
	}
	return out.Close()
}

// S3API is the subset of the S3 client used by S3Target
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Target shares a file by uploading it to an S3 bucket
type S3Target struct {
	Client S3API
	Bucket string
	Prefix string
}

// NewS3Target creates an S3 target using the default AWS credential chain
func NewS3Target(ctx context.Context, bucket, prefix string) (*S3Target, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Target{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
		Prefix: prefix,
	}, nil
}

func (t *S3Target) Name() string { return "s3" }

func (t *S3Target) Available(context.Context) bool {
	return t.Client != nil && t.Bucket != ""
}

// Key returns the object key used for the file at src
func (t *S3Target) Key(src string) string {
	return path.Join(t.Prefix, filepath.Base(src))
}

func (t *S3Target) Share(ctx context.Context, src string, opts Options) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(t.Bucket),
		Key:         aws.String(t.Key(src)),
		Body:        f,
		ContentType: aws.String(opts.MimeType),
		Metadata: map[string]string{
			"title": opts.DialogTitle,
			"uti":   opts.UTI,
		},
	}
	if _, err := t.Client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("failed to upload to s3://%s/%s (%s): %w", t.Bucket, *input.Key, apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", t.Bucket, *input.Key, err)
	}
	return nil
}
