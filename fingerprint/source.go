package fingerprint

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// File is one member of a fingerprint input.
type File interface {
	// RelativePath is the file's path inside the uploaded folder hierarchy,
	// or its bare name when it has no hierarchy.
	RelativePath() string
	// Open returns the full byte content of the file.
	Open() (io.ReadCloser, error)
}

type memFile struct {
	path string
	data []byte
}

func (m memFile) RelativePath() string { return m.path }

func (m memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Bytes returns an in-memory File.
func Bytes(relPath string, data []byte) File {
	return memFile{path: relPath, data: data}
}

// DiskFile is a File backed by the local filesystem.
type DiskFile struct {
	Path string // location on disk
	Rel  string // relative path used for ordering; base name of Path when empty
	Size int64
}

func (f DiskFile) RelativePath() string {
	if f.Rel != "" {
		return f.Rel
	}
	return filepath.Base(f.Path)
}

func (f DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// NewDiskFile stats path and returns it as a DiskFile without hierarchy.
func NewDiskFile(p string) (DiskFile, error) {
	info, err := os.Stat(p)
	if err != nil {
		return DiskFile{}, err
	}
	if info.IsDir() {
		return DiskFile{}, ErrExpectedFile
	}
	return DiskFile{Path: p, Size: info.Size()}, nil
}

// FromDir lists every regular file below root. Relative paths use forward
// slashes and start with the name of root itself, the same shape a browser
// folder picker reports ("project/drums/kick.wav").
// Symlinks and other non-regular files are skipped.
func FromDir(root string) ([]DiskFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrExpectedDirectory
	}
	// "." and ".." must still name the folder they point at.
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(root)

	var files []DiskFile
	err = filepath.WalkDir(root, func(subpath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error walking path %s: %w", subpath, err)
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, subpath)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, DiskFile{
			Path: subpath,
			Rel:  path.Join(base, filepath.ToSlash(rel)),
			Size: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// FromProject returns the master file (identified by its bare name) followed
// by every file of the project folder.
func FromProject(master, projectDir string) ([]DiskFile, error) {
	m, err := NewDiskFile(master)
	if err != nil {
		return nil, fmt.Errorf("master file: %w", err)
	}
	project, err := FromDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("project folder: %w", err)
	}
	return append([]DiskFile{m}, project...), nil
}

// AsFiles converts a slice of concrete sources to the File interface.
func AsFiles[T File](in []T) []File {
	out := make([]File, len(in))
	for i, f := range in {
		out[i] = f
	}
	return out
}
