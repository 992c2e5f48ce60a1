package fingerprint

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/minio/sha256-simd"
	"golang.org/x/sync/errgroup"
)

// ComputeBuffered produces the same fingerprint as Compute by reading every
// file fully into memory, concurrently, then hashing the ordered
// concatenation in one call. The whole input is held in memory at once.
func ComputeBuffered(ctx context.Context, files []File, opts ...Option) (string, error) {
	o := newOptions(opts)
	sorted, err := sortFiles(files, o.order)
	if err != nil {
		return "", err
	}

	buffers := make([][]byte, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, f := range sorted {
		g.Go(func() error {
			var buf bytes.Buffer
			if _, err := hashInto(gctx, &buf, f); err != nil {
				return err
			}
			buffers[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	joined := make([]byte, 0, total)
	for _, b := range buffers {
		joined = append(joined, b...)
	}
	sum := sha256.Sum256(joined)
	return hex.EncodeToString(sum[:]), nil
}
