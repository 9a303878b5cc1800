package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Storage implements Storage against any S3-compatible endpoint:
// AWS S3 by default, or MinIO/R2 via the Endpoint override.
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicURL     string
	logger        *slog.Logger
}

// NewS3Storage creates an S3Storage from static credentials.
func NewS3Storage(cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("initialized S3 storage",
		"bucket", cfg.BucketName,
		"endpoint", cfg.Endpoint,
		"public_url", cfg.PublicURL,
	)

	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    cfg.BucketName,
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:        logger,
	}, nil
}

// Put stores data at the specified key.
func (s *S3Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return &StorageError{Op: "Put", Key: key, Err: err}
		}
		if exists {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	}
	if opts.Public {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: wrapS3Error(err)}
	}

	s.logger.Debug("stored object",
		"key", key,
		"etag", aws.ToString(result.ETag),
		"content_type", contentType,
	)
	return nil
}

// Get retrieves the data at the specified key.
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapS3Error(err)}
	}

	info := ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
	}
	return result.Body, info, nil
}

// Delete removes the object at the specified key. Idempotent; S3 doesn't
// error on missing keys.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: wrapS3Error(err)}
	}
	return nil
}

// URL returns a public URL when one is configured and no expiry is
// requested, otherwise a presigned URL.
func (s *S3Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	if s.publicURL != "" && expires == 0 {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}

	if expires == 0 {
		expires = 15 * time.Minute
	}

	request, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: fmt.Errorf("presign: %w", err)}
	}
	return request.URL, nil
}

// Exists checks if an object exists via HeadObject.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(wrapS3Error(err)) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapS3Error(err)}
	}
	return true, nil
}

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// wrapS3Error converts SDK errors to the package sentinels.
func wrapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
		if httpErr, ok := err.(interface{ HTTPStatusCode() int }); ok {
			switch httpErr.HTTPStatusCode() {
			case http.StatusNotFound:
				return ErrNotFound
			case http.StatusForbidden:
				return ErrAccessDenied
			}
		}
	}

	return fmt.Errorf("s3 operation failed: %w", err)
}
