package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/logging"
)

const lockName = ".hmcert.lock"

// LocalStore keeps objects on the local filesystem below Root, grouped into
// color hash buckets by upload prefix:
//
//	<root>/<bucket>/<prefix>/<rest of key>
type LocalStore struct {
	Root        string
	MaxFileSize int64
	lock        *flock.Flock
	log         *zap.Logger
}

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// NewLocalStore creates root if needed and returns a store writing below it.
func NewLocalStore(root string, maxFileSize int64, log *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		Root:        root,
		MaxFileSize: maxFileSize,
		lock:        flock.New(filepath.Join(root, lockName)),
		log:         logging.OrNop(log),
	}, nil
}

// Path returns where key is stored on disk. Symlinks inside the bucket are
// resolved without leaving it.
func (s *LocalStore) Path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	bucketDir := filepath.Join(s.Root, BucketForPrefix(TopSegment(key)))
	p, err := securejoin.SecureJoin(bucketDir, filepath.FromSlash(key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return p, nil
}

// Put writes the object through a temporary file and renames it into place
// while holding the store's writer lock.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	dest, err := s.Path(key)
	if err != nil {
		return err
	}
	if s.MaxFileSize > 0 && size > s.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, s.MaxFileSize)
	}

	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock storage root: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("write object %s: wrote %d bytes, expected %d", key, n, size)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("store object %s: %w", key, err)
	}
	s.log.Debug("stored object", zap.String("key", key), zap.Int64("size", n), zap.String("content_type", contentType))
	return nil
}

// PresignPut returns a file:// URL for the object's final location. Local
// storage has no signing; the URL only tells a co-located client where to write.
func (s *LocalStore) PresignPut(ctx context.Context, req PresignRequest) (string, error) {
	if err := checkPresign(req, s.MaxFileSize); err != nil {
		return "", err
	}
	dest, err := s.Path(req.Key)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}
	return u.String(), nil
}

// Exists reports whether key is stored.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	dest, err := s.Path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// List returns every key stored under prefix.
func (s *LocalStore) List(prefix string) ([]string, error) {
	bucketDir := filepath.Join(s.Root, BucketForPrefix(TopSegment(prefix)))
	var keys []string
	err := filepath.WalkDir(bucketDir, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return fs.SkipAll
		}
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
