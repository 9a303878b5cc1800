package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Storage on the local filesystem. Development
// only; artifacts are served from BaseURL by the surrounding server.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath, "base_url", cfg.BaseURL)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:   logger,
	}, nil
}

// Put stores data at the specified key.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("create directory: %w", err)}
	}

	file, err := os.Create(path)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("create file: %w", err)}
	}
	defer file.Close()

	written, err := io.Copy(file, data)
	if err != nil {
		os.Remove(path)
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("write file: %w", err)}
	}

	s.logger.Debug("stored file", "key", key, "size", written)
	return nil
}

// Get retrieves the data at the specified key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if ctx.Err() != nil {
		return nil, ObjectInfo{}, ctx.Err()
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
		}
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	info := ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  contentTypeForKey(key),
		LastModified: stat.ModTime(),
	}
	return file, info, nil
}

// Delete removes the object at the specified key. Idempotent.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// URL returns a public URL. Local files don't expire; the expires
// parameter is ignored.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}
	return true, nil
}

// resolvePath converts a storage key to an absolute file path, rejecting
// path traversal.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(key)
	if filepath.IsAbs(cleanKey) || strings.Contains(cleanKey, "..") {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath) {
		return "", ErrInvalidKey
	}
	return absPath, nil
}

// contentTypeForKey detects a MIME type from the key's extension.
func contentTypeForKey(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
