package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/humanmadecert/hmcert/fingerprint"
)

func sampleFiles() []fingerprint.File {
	return []fingerprint.File{
		fingerprint.Bytes("project/track.flp", []byte("FLdata...")),
		fingerprint.Bytes("master.wav", []byte("RIFF...")),
	}
}

func TestCheckExtension(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"review.hmcz", false},
		{"/some/path/review.hmcz", false},
		{"reviewhmcz", true},
		{"review.zip", true},
		{"review", true},
	}
	for _, tt := range tests {
		err := CheckExtension(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckExtension(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if tt.wantErr && err != ErrNotBundleExtension {
			t.Errorf("CheckExtension(%q) error = %v, want ErrNotBundleExtension", tt.path, err)
		}
	}
}

func TestCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	dest := filepath.Join(t.TempDir(), "review.hmcz")

	m, err := Create(ctx, dest, sampleFiles())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want, _ := fingerprint.Compute(ctx, sampleFiles())
	if m.Fingerprint() != want {
		t.Errorf("manifest fingerprint = %s, want %s", m.Fingerprint(), want)
	}

	n, err := CountFiles(dest)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 2 {
		t.Errorf("CountFiles = %d, want 2", n)
	}
	for _, name := range []string{"master.wav", "project/track.flp", ManifestName} {
		ok, err := Contains(dest, name)
		if err != nil || !ok {
			t.Errorf("Contains(%q) = %v, %v", name, ok, err)
		}
	}

	loaded, err := LoadManifest(dest)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Fingerprint() != want || loaded.Len() != 2 {
		t.Errorf("loaded manifest = %s with %d entries", loaded.Fingerprint(), loaded.Len())
	}

	report, err := Verify(ctx, dest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK() {
		t.Errorf("Verify problems: %v", report.Problems)
	}
	if report.Actual.Fingerprint() != want {
		t.Errorf("actual fingerprint = %s, want %s", report.Actual.Fingerprint(), want)
	}
}

func TestCreate_WrongExtension(t *testing.T) {
	_, err := Create(context.Background(), filepath.Join(t.TempDir(), "x.zip"), sampleFiles())
	if err != ErrNotBundleExtension {
		t.Errorf("Create error = %v, want ErrNotBundleExtension", err)
	}
}

func TestWrite_ReservedName(t *testing.T) {
	files := append(sampleFiles(), fingerprint.Bytes(ManifestName, []byte("{}")))
	_, err := Write(context.Background(), &bytes.Buffer{}, files)
	if err != ErrReservedName {
		t.Errorf("Write error = %v, want ErrReservedName", err)
	}
}

// tamper rewrites a bundle, replacing or dropping entries and adding extras.
func tamper(t *testing.T, src, dest string, replace map[string]string, extra map[string]string) {
	t.Helper()
	zr, err := zip.OpenReader(src)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	out, err := os.Create(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	for _, f := range zr.File {
		content, ok := replace[f.Name]
		if ok && content == "" {
			continue
		}
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			w.Write([]byte(content))
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		buf.ReadFrom(rc)
		rc.Close()
		w.Write(buf.Bytes())
	}
	for name, content := range extra {
		w, _ := zw.Create(name)
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	orig := filepath.Join(dir, "orig.hmcz")
	if _, err := Create(ctx, orig, sampleFiles()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		replace map[string]string
		extra   map[string]string
		want    string
	}{
		{"content changed", map[string]string{"master.wav": "RIFF!.."}, nil, "content mismatch for master.wav"},
		{"size changed", map[string]string{"master.wav": "RIFF"}, nil, "size mismatch for master.wav"},
		{"file removed", map[string]string{"project/track.flp": ""}, nil, "missing file: project/track.flp"},
		{"file added", nil, map[string]string{"project/extra.wav": "x"}, "unexpected file: project/extra.wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".hmcz")
			tamper(t, orig, dest, tt.replace, tt.extra)
			report, err := Verify(ctx, dest)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if report.OK() {
				t.Fatal("expected problems")
			}
			found := false
			for _, p := range report.Problems {
				if strings.HasPrefix(p, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("problems %v do not include %q", report.Problems, tt.want)
			}
			last := report.Problems[len(report.Problems)-1]
			if !strings.HasPrefix(last, "fingerprint mismatch") {
				t.Errorf("last problem = %q, want fingerprint mismatch", last)
			}
		})
	}
}

func TestVerify_NoManifest(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "orig.hmcz")
	if _, err := Create(context.Background(), orig, sampleFiles()); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "bare.hmcz")
	tamper(t, orig, dest, map[string]string{ManifestName: ""}, nil)
	if _, err := Verify(context.Background(), dest); err == nil {
		t.Error("expected error for bundle without manifest")
	}
}
