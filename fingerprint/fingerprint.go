package fingerprint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"
	"slices"

	"github.com/minio/sha256-simd"
)

// Size is the length in characters of every fingerprint.
const Size = sha256.Size * 2

type options struct {
	order   Order
	workers int
}

// Option configures Compute, ComputeBuffered and BuildManifest.
type Option func(*options)

// WithOrder selects the path ordering. The default is ByteOrder.
func WithOrder(o Order) Option {
	return func(opts *options) { opts.order = o }
}

// WithWorkers bounds the number of files ComputeBuffered reads at once.
func WithWorkers(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.workers = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{order: ByteOrder, workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Compute returns the folder fingerprint of files: the lowercase hex SHA-256
// of every file's content concatenated in path order, with no separators.
//
// Files are streamed into the digest one at a time, so memory use does not
// grow with the size of the input.
func Compute(ctx context.Context, files []File, opts ...Option) (string, error) {
	o := newOptions(opts)
	sorted, err := sortFiles(files, o.order)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, f := range sorted {
		if _, err := hashInto(ctx, h, f); err != nil {
			return "", err
		}
	}
	return encode(h), nil
}

// sortFiles returns a sorted copy of files and enforces the input contract:
// at least one file, every file named, no relative path used twice.
func sortFiles(files []File, order Order) ([]File, error) {
	if len(files) == 0 {
		return nil, ErrEmptyInput
	}
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b File) int {
		return order.Compare(a.RelativePath(), b.RelativePath())
	})
	for i, f := range sorted {
		p := f.RelativePath()
		if p == "" {
			return nil, ErrEmptyPath
		}
		if i > 0 && sorted[i-1].RelativePath() == p {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, p)
		}
	}
	return sorted, nil
}

// hashInto streams f into w and returns the number of bytes copied.
func hashInto(ctx context.Context, w io.Writer, f File) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, &ReadError{Path: f.RelativePath(), Err: err}
	}
	defer rc.Close()

	n, err := io.Copy(digestWriter{w}, ctxReader{ctx: ctx, r: rc})
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, ErrDigest):
		return n, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return n, err
	default:
		return n, &ReadError{Path: f.RelativePath(), Err: err}
	}
}

// digestWriter tags failures of the underlying hash so they are not mistaken
// for read failures.
type digestWriter struct {
	w io.Writer
}

func (d digestWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrDigest, err)
	}
	return n, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func encode(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader calculates the SHA-256 hash of data from an io.Reader.
// It returns the hash as a hexadecimal string.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return encode(h), nil
}

// HashFile hashes a single file on disk.
func HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", ErrExpectedFile
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return HashReader(file)
}

// IsValid reports whether s has the shape of a fingerprint.
func IsValid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
