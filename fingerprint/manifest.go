package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/minio/sha256-simd"
)

type (
	Entry struct {
		Path   string `json:"path"`   // relative path as hashed
		Size   int64  `json:"size"`   // size of the file in bytes
		SHA256 string `json:"sha256"` // digest of this file alone
	}
	Manifest struct {
		fingerprint string
		order       string
		entries     []Entry
	}
)

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Fingerprint string  `json:"fingerprint"`
		Order       string  `json:"order"`
		Entries     []Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.fingerprint = aux.Fingerprint
	m.order = aux.Order
	m.entries = aux.Entries
	return nil
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Fingerprint string  `json:"fingerprint"`
		Order       string  `json:"order"`
		Entries     []Entry `json:"entries"`
	}{
		Fingerprint: m.fingerprint,
		Order:       m.order,
		Entries:     m.entries,
	})
}

// Fingerprint returns the folder fingerprint the manifest was built with.
func (m Manifest) Fingerprint() string { return m.fingerprint }

// Order returns the path ordering the manifest was built with.
func (m Manifest) Order() (Order, error) { return ParseOrder(m.order) }

func (m Manifest) Iterate(yield func(Entry) bool) {
	for _, e := range m.entries {
		if !yield(e) {
			return
		}
	}
}

func (m Manifest) Len() int { return len(m.entries) }

func (m Manifest) Get(index int) Entry {
	if index < 0 || index >= len(m.entries) {
		return Entry{}
	}
	return m.entries[index]
}

// TotalSize returns the sum of all entry sizes.
func (m Manifest) TotalSize() int64 {
	var total int64
	for e := range m.Iterate {
		total += e.Size
	}
	return total
}

// BuildManifest fingerprints files and records a per-file digest for each
// entry in the same pass. Entries are stored in fingerprint order.
func BuildManifest(ctx context.Context, files []File, opts ...Option) (Manifest, error) {
	o := newOptions(opts)
	sorted, err := sortFiles(files, o.order)
	if err != nil {
		return Manifest{}, err
	}

	folder := sha256.New()
	m := Manifest{order: o.order.String(), entries: make([]Entry, 0, len(sorted))}
	for _, f := range sorted {
		single := sha256.New()
		n, err := hashInto(ctx, io.MultiWriter(folder, single), f)
		if err != nil {
			return Manifest{}, err
		}
		m.entries = append(m.entries, Entry{
			Path:   f.RelativePath(),
			Size:   n,
			SHA256: encode(single),
		})
	}
	m.fingerprint = encode(folder)
	return m, nil
}

// Diff lists every difference between the expected manifest m and actual.
// An empty result means the two describe the same input.
func (m Manifest) Diff(actual Manifest) []string {
	var problems []string
	have := make(map[string]Entry, actual.Len())
	for e := range actual.Iterate {
		have[e.Path] = e
	}
	for want := range m.Iterate {
		got, ok := have[want.Path]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing file: %s", want.Path))
			continue
		}
		delete(have, want.Path)
		if got.Size != want.Size {
			problems = append(problems, fmt.Sprintf("size mismatch for %s: expected %d, got %d", want.Path, want.Size, got.Size))
		} else if got.SHA256 != want.SHA256 {
			problems = append(problems, fmt.Sprintf("content mismatch for %s", want.Path))
		}
	}
	for e := range actual.Iterate {
		if _, extra := have[e.Path]; extra {
			problems = append(problems, fmt.Sprintf("unexpected file: %s", e.Path))
		}
	}
	if m.fingerprint != actual.fingerprint {
		problems = append(problems, fmt.Sprintf("fingerprint mismatch: expected %s, got %s", m.fingerprint, actual.fingerprint))
	}
	return problems
}

// Save writes the manifest as JSON to path.
func (m Manifest) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(m)
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()
	return DecodeManifest(f)
}

// DecodeManifest reads a JSON manifest from r.
func DecodeManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if !IsValid(m.fingerprint) {
		return Manifest{}, fmt.Errorf("%w: invalid fingerprint %q", ErrManifestMismatch, m.fingerprint)
	}
	return m, nil
}
