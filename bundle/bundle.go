package bundle

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/humanmadecert/hmcert/fingerprint"
)

const (
	// ManifestName is the archive entry holding the fingerprint manifest.
	ManifestName = "manifest.hmcm"
	// Extension is the file extension of review bundles.
	Extension = ".hmcz"
)

// Sentinel errors for package bundle.
var (
	ErrNotBundleExtension = errors.New("file path extension is not '.hmcz'")
	ErrNoManifest         = errors.New("bundle has no manifest")
	ErrReservedName       = errors.New("file name is reserved for the bundle manifest")
)

// CheckExtension reports whether path names a bundle.
func CheckExtension(path string) error {
	if filepath.Ext(path) != Extension {
		return ErrNotBundleExtension
	}
	return nil
}

// Write fingerprints files and writes them to w as a zip archive, each under
// its relative path in fingerprint order, followed by the manifest.
func Write(ctx context.Context, w io.Writer, files []fingerprint.File, opts ...fingerprint.Option) (fingerprint.Manifest, error) {
	m, err := fingerprint.BuildManifest(ctx, files, opts...)
	if err != nil {
		return fingerprint.Manifest{}, err
	}
	byPath := make(map[string]fingerprint.File, len(files))
	for _, f := range files {
		if f.RelativePath() == ManifestName {
			return fingerprint.Manifest{}, ErrReservedName
		}
		byPath[f.RelativePath()] = f
	}

	zw := zip.NewWriter(w)
	for e := range m.Iterate {
		if err := addEntry(zw, e, byPath[e.Path]); err != nil {
			return fingerprint.Manifest{}, err
		}
	}
	mw, err := zw.Create(ManifestName)
	if err != nil {
		return fingerprint.Manifest{}, err
	}
	if err := writeManifest(mw, m); err != nil {
		return fingerprint.Manifest{}, err
	}
	if err := zw.Close(); err != nil {
		return fingerprint.Manifest{}, fmt.Errorf("finish bundle: %w", err)
	}
	return m, nil
}

func addEntry(zw *zip.Writer, e fingerprint.Entry, f fingerprint.File) error {
	rc, err := f.Open()
	if err != nil {
		return &fingerprint.ReadError{Path: e.Path, Err: err}
	}
	defer rc.Close()
	writer, err := zw.CreateHeader(&zip.FileHeader{
		Name:   strings.TrimPrefix(e.Path, "/"),
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(writer, rc); err != nil {
		return fmt.Errorf("write %s: %w", e.Path, err)
	}
	return nil
}

func writeManifest(w io.Writer, m fingerprint.Manifest) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Create writes a bundle of files to dest, replacing any existing file.
func Create(ctx context.Context, dest string, files []fingerprint.File, opts ...fingerprint.Option) (fingerprint.Manifest, error) {
	if err := CheckExtension(dest); err != nil {
		return fingerprint.Manifest{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".bundle-*")
	if err != nil {
		return fingerprint.Manifest{}, err
	}
	defer os.Remove(tmp.Name())

	m, err := Write(ctx, tmp, files, opts...)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fingerprint.Manifest{}, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fingerprint.Manifest{}, err
	}
	return m, nil
}

// LoadManifest reads the manifest stored in a bundle.
func LoadManifest(path string) (fingerprint.Manifest, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return fingerprint.Manifest{}, err
	}
	defer zrc.Close()
	return readManifest(&zrc.Reader)
}

func readManifest(zr *zip.Reader) (fingerprint.Manifest, error) {
	f, err := zr.Open(ManifestName)
	if err != nil {
		return fingerprint.Manifest{}, fmt.Errorf("%w: %v", ErrNoManifest, err)
	}
	defer f.Close()
	return fingerprint.DecodeManifest(bufio.NewReader(f))
}

// CountFiles returns the number of content entries in a bundle.
func CountFiles(path string) (int, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer zrc.Close()
	n := 0
	for _, f := range zrc.File {
		if f.Name != ManifestName && !f.FileInfo().IsDir() {
			n++
		}
	}
	return n, nil
}

// Contains reports whether a bundle has an entry named filename.
func Contains(path string, filename string) (bool, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return false, err
	}
	defer zrc.Close()
	for _, v := range zrc.File {
		if v.Name == filename {
			return true, nil
		}
	}
	return false, nil
}
