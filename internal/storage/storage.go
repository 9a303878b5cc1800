// Package storage provides object storage for rendered design artifacts.
//
// Two implementations exist: LocalStorage for development and S3Storage
// for any S3-compatible endpoint in production. The namespace is
// partitioned by design id, so concurrent uploads for different designs
// never collide, and retried uploads for the same design overwrite
// deterministically.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for artifact storage operations.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close
	// the reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a stable, fetchable URL for the object. For private
	// buckets this is a presigned URL valid for the given duration.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	ContentType string

	// Overwrite allows replacing an existing object at the same key.
	// Render retries rely on this being deterministic.
	Overwrite bool

	// Public marks the object publicly readable where the backend
	// supports ACLs.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// Provider identifiers.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where artifacts are stored.
	BasePath string

	// BaseURL is the public URL prefix for accessing artifacts.
	BaseURL string
}

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	// Endpoint overrides the S3 endpoint for compatible providers
	// (MinIO, R2). Empty means AWS S3.
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string

	// PublicURL is the public URL for the bucket (custom domain). If
	// empty, presigned URLs are used for all access.
	PublicURL string
}

// =============================================================================
// Key Helpers
// =============================================================================

// Artifact filenames are fixed per design so retried uploads land on the
// same keys.
const (
	previewFilename   = "preview.png"
	thumbnailFilename = "thumbnail.png"
)

// PreviewKey returns the storage key for a design's full preview image.
// Format: designs/{designID}/preview.png
func PreviewKey(designID uuid.UUID) string {
	return fmt.Sprintf("designs/%s/%s", designID, previewFilename)
}

// ThumbnailKey returns the storage key for a design's thumbnail.
// Format: designs/{designID}/thumbnail.png
func ThumbnailKey(designID uuid.UUID) string {
	return fmt.Sprintf("designs/%s/%s", designID, thumbnailFilename)
}

// DeleteArtifacts removes every stored artifact for a design. Idempotent.
func DeleteArtifacts(ctx context.Context, s Storage, designID uuid.UUID) error {
	for _, key := range []string{PreviewKey(designID), ThumbnailKey(designID)} {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
