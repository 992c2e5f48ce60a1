package bundle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"github.com/humanmadecert/hmcert/fingerprint"
)

// Report is the outcome of verifying a bundle.
type Report struct {
	Expected fingerprint.Manifest
	Actual   fingerprint.Manifest
	Problems []string
}

// OK reports whether the bundle matches its manifest.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

type zipEntry struct {
	f *zip.File
}

func (z zipEntry) RelativePath() string { return z.f.Name }

func (z zipEntry) Open() (io.ReadCloser, error) { return z.f.Open() }

// Verify re-fingerprints the content of the bundle at path with the ordering
// recorded in its manifest and compares the result with the manifest.
func Verify(ctx context.Context, path string) (Report, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return Report{}, err
	}
	defer zrc.Close()
	return VerifyReader(ctx, &zrc.Reader)
}

// VerifyReader is Verify for an already open archive.
func VerifyReader(ctx context.Context, zr *zip.Reader) (Report, error) {
	expected, err := readManifest(zr)
	if err != nil {
		return Report{}, err
	}
	order, err := expected.Order()
	if err != nil {
		return Report{}, fmt.Errorf("manifest order: %w", err)
	}

	var files []fingerprint.File
	for _, f := range zr.File {
		if f.Name == ManifestName || f.FileInfo().IsDir() {
			continue
		}
		files = append(files, zipEntry{f: f})
	}
	if len(files) == 0 {
		return Report{Expected: expected, Problems: expected.Diff(fingerprint.Manifest{})}, nil
	}

	actual, err := fingerprint.BuildManifest(ctx, files, fingerprint.WithOrder(order))
	if err != nil {
		return Report{}, err
	}
	return Report{Expected: expected, Actual: actual, Problems: expected.Diff(actual)}, nil
}
