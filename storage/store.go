package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// DefaultMaxFileSize is the largest single object accepted: 5 GiB.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024 * 1024

// PresignRequest describes an object a client wants to upload directly.
type PresignRequest struct {
	Key         string
	ContentType string
	Size        int64
}

// Store is an object store addressed by slash-separated keys.
type Store interface {
	// Put writes size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// PresignPut returns a URL a client can PUT the object to.
	PresignPut(ctx context.Context, req PresignRequest) (string, error)
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ValidateKey rejects keys that are empty, absolute, or escape their prefix.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(strings.TrimSuffix(key, "/"), "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if path.Clean(key) != strings.TrimSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func checkPresign(req PresignRequest, maxSize int64) error {
	if err := ValidateKey(req.Key); err != nil {
		return err
	}
	if req.Size <= 0 {
		return ErrMissingSize
	}
	if maxSize > 0 && req.Size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, req.Size, maxSize)
	}
	return nil
}
