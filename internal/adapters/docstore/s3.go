package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ammerola/stockbook/internal/core/ports"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config holds S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // For MinIO/LocalStack
	UsePathStyle    bool   // For MinIO/LocalStack
}

// S3Store keeps each document as one object and uses the object ETag as its
// version token.
type S3Store struct {
	client S3API
	bucket string
	region string
	prefix string
	logger *slog.Logger
}

var _ ports.DocumentStore = (*S3Store)(nil)

// NewS3Store creates an S3 document store and makes sure the bucket exists.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	store := NewS3StoreWithClient(client, cfg, logger)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}

	logger.Info("S3 document store initialized",
		slog.String("bucket", cfg.Bucket),
		slog.String("region", cfg.Region),
		slog.String("prefix", cfg.Prefix))
	return store, nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client S3API, cfg S3Config, logger *slog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With(slog.String("component", "docstore.s3")),
	}
}

func buildAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		)
	}
	return config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
}

// EnsureBucket creates the bucket when it is missing.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, createErr := s.client.CreateBucket(ctx, input); createErr != nil {
		return fmt.Errorf("bucket %s does not exist and could not be created: %w", s.bucket, createErr)
	}

	s.logger.Info("created S3 bucket", slog.String("bucket", s.bucket))
	return nil
}

// Load reads the object at path.
func (s *S3Store) Load(ctx context.Context, p string) (ports.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return ports.Document{}, s3Error("load", p, ports.NoVersion, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return ports.Document{}, &ports.TransportError{Op: "load", Path: p, Err: err}
	}
	return ports.Document{Path: p, Data: data, Version: ports.VersionToken(aws.ToString(out.ETag))}, nil
}

// Save writes the object conditionally: IfMatch on the expected ETag, or
// IfNoneMatch for a create.
func (s *S3Store) Save(ctx context.Context, p string, data []byte, expected ports.VersionToken, message string) (ports.VersionToken, error) {
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(p)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"message": asciiOnly(message)},
	}
	if expected.IsNull() {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(string(expected))
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return ports.NoVersion, s3Error("save", p, expected, err)
	}

	version := ports.VersionToken(aws.ToString(out.ETag))
	s.logger.DebugContext(ctx, "saved document",
		slog.String("key", s.key(p)),
		slog.String("version", string(version)),
		slog.Int("bytes", len(data)))
	return version, nil
}

// Delete removes the object at path. S3 addresses objects by key alone.
func (s *S3Store) Delete(ctx context.Context, p string, _ ports.VersionToken, message string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return s3Error("delete", p, ports.NoVersion, err)
	}
	s.logger.InfoContext(ctx, "deleted object",
		slog.String("key", s.key(p)),
		slog.String("message", message))
	return nil
}

// List returns the objects directly under dir.
func (s *S3Store) List(ctx context.Context, dir string) ([]ports.Entry, error) {
	prefix := s.key(strings.Trim(dir, "/")) + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	entries := []ports.Entry{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s3Error("list", dir, ports.NoVersion, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			entries = append(entries, ports.Entry{
				Path:    s.unkey(key),
				Version: ports.VersionToken(aws.ToString(obj.ETag)),
				Size:    aws.ToInt64(obj.Size),
			})
		}
	}

	s.logger.DebugContext(ctx, "listed objects",
		slog.String("prefix", prefix),
		slog.Int("count", len(entries)))
	return entries, nil
}

func (s *S3Store) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *S3Store) unkey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// s3Error maps SDK errors onto the store error contract.
func s3Error(op, p string, expected ports.VersionToken, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %s", ports.ErrNotFound, p)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ports.ErrNotFound, p)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return &ports.ConflictError{Path: p, Expected: expected}
		}
	}

	te := &ports.TransportError{Op: op, Path: p, Err: err}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		te.StatusCode = respErr.HTTPStatusCode()
		switch te.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ports.ErrNotFound, p)
		case http.StatusPreconditionFailed:
			return &ports.ConflictError{Path: p, Expected: expected}
		}
	}
	if apiErr != nil && apiErr.ErrorCode() == "SlowDown" {
		te.RateLimited = true
	}
	return te
}

// asciiOnly keeps user metadata within what S3 accepts in headers.
func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return b.String()
}
