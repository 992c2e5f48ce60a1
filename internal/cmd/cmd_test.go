package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/humanmadecert/hmcert/auth"
	"github.com/humanmadecert/hmcert/fingerprint"
)

const testSecret = "cli-test-secret"

// writeTestConfig writes a config that keeps all state below a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[auth]
jwt_secret = "` + testSecret + `"
issuer = "hmcert-test"

[logging]
level = "error"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// testSubmission lays out master.wav and project/ below a temp dir.
func testSubmission(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"master.wav":                "master take",
		"project/session.als":       "session",
		"project/stems/vocals.wav":  "vocals",
		"project/stems/drums/k.wav": "kick",
	})
	return filepath.Join(dir, "master.wav"), filepath.Join(dir, "project")
}

func TestFingerprintCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	master, project := testSubmission(t)

	files, err := fingerprint.FromProject(master, project)
	if err != nil {
		t.Fatal(err)
	}
	want, err := fingerprint.Compute(context.Background(), fingerprint.AsFiles(files))
	if err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, cfg, "fingerprint", "--master", master, project)
	if err != nil {
		t.Fatalf("fingerprint: %v\n%s", err, out)
	}
	if got := strings.TrimSpace(out); got != want {
		t.Errorf("fingerprint = %q, want %q", got, want)
	}

	// argument order does not matter
	a, err := runCLI(t, cfg, "fingerprint", master, project)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runCLI(t, cfg, "fingerprint", project, master)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("fingerprint depends on argument order: %q vs %q", a, b)
	}
	if strings.TrimSpace(a) != want {
		t.Errorf("plain paths = %q, want the --master result %q", strings.TrimSpace(a), want)
	}
}

func TestFingerprintManifest(t *testing.T) {
	cfg := writeTestConfig(t)
	master, project := testSubmission(t)
	manifest := filepath.Join(t.TempDir(), "out.json")

	out, err := runCLI(t, cfg, "fingerprint", "--master", master, "--manifest", manifest, "-v", project)
	if err != nil {
		t.Fatalf("fingerprint: %v\n%s", err, out)
	}
	m, err := fingerprint.LoadManifest(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 4 {
		t.Errorf("manifest has %d entries, want 4", m.Len())
	}
	if !strings.Contains(out, m.Fingerprint()) || !strings.Contains(out, "project/stems/vocals.wav") {
		t.Errorf("verbose output missing entries:\n%s", out)
	}
}

func TestFingerprintMasterNeedsOneFolder(t *testing.T) {
	cfg := writeTestConfig(t)
	master, project := testSubmission(t)

	_, err := runCLI(t, cfg, "fingerprint", "--master", master, project, project)
	if !errors.Is(err, errMasterNeedsOneDir) {
		t.Errorf("err = %v, want errMasterNeedsOneDir", err)
	}
}

func TestBundleAndVerify(t *testing.T) {
	cfg := writeTestConfig(t)
	master, project := testSubmission(t)
	dest := filepath.Join(t.TempDir(), "review.hmcz")

	out, err := runCLI(t, cfg, "bundle", "-m", master, "-p", project, "-o", dest)
	if err != nil {
		t.Fatalf("bundle: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	hash := lines[len(lines)-1]
	if !fingerprint.IsValid(hash) {
		t.Fatalf("bundle output does not end in a fingerprint:\n%s", out)
	}

	out, err = runCLI(t, cfg, "verify", "--bundle", filepath.Dir(dest))
	if err != nil {
		t.Fatalf("verify bundle: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Bundles checked: 1") {
		t.Errorf("unexpected verify output:\n%s", out)
	}

	out, err = runCLI(t, cfg, "verify", "--dir", project, "--master", master, "--hash", hash)
	if err != nil {
		t.Fatalf("verify dir: %v\n%s", err, out)
	}

	writeFiles(t, project, map[string]string{"extra.txt": "late addition"})
	_, err = runCLI(t, cfg, "verify", "--dir", project, "--master", master, "--hash", hash)
	if !errors.Is(err, errVerifyFailed) {
		t.Errorf("verify after change: err = %v, want errVerifyFailed", err)
	}
}

func TestVerifyModes(t *testing.T) {
	cfg := writeTestConfig(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"nothing", []string{"verify"}, errVerifyMode},
		{"both", []string{"verify", "--bundle", "x.hmcz", "--dir", "d", "--hash", "h"}, errVerifyMode},
		{"bad hash", []string{"verify", "--dir", t.TempDir(), "--hash", "xyz"}, errInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, cfg, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUploadSearchCertify(t *testing.T) {
	cfg := writeTestConfig(t)
	master, project := testSubmission(t)

	out, err := runCLI(t, cfg, "upload",
		"-m", master, "-p", project,
		"-n", "Ada Lovelace", "-e", "ada@example.com", "-t", "Analytical Blues",
	)
	if err != nil {
		t.Fatalf("upload: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[100%] 4/4") {
		t.Errorf("missing final progress line:\n%s", out)
	}

	files, err := fingerprint.FromProject(master, project)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := fingerprint.Compute(context.Background(), fingerprint.AsFiles(files))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, hash) {
		t.Errorf("upload output does not name the fingerprint %s:\n%s", hash, out)
	}

	out, err = runCLI(t, cfg, "search", "analytical")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "Analytical Blues") || !strings.Contains(out, "pending") {
		t.Errorf("search output:\n%s", out)
	}

	out, err = runCLI(t, cfg, "certify", hash, "--status", "yes", "--tx", "0xabcdef0123456789")
	if err != nil {
		t.Fatalf("certify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "yes") || !strings.Contains(out, "0xabcd...6789") {
		t.Errorf("certify output: %q", out)
	}

	out, err = runCLI(t, cfg, "tracks", "--full")
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	if !strings.Contains(out, hash) || !strings.Contains(out, "yes") {
		t.Errorf("tracks output:\n%s", out)
	}

	// the same folder cannot be recorded twice
	if _, err := runCLI(t, cfg, "upload", "-q",
		"-m", master, "-p", project,
		"-n", "Ada Lovelace", "-e", "ada@example.com", "-t", "Analytical Blues",
	); err == nil {
		t.Error("second upload of the same folder succeeded")
	}
}

func TestCertifyRejects(t *testing.T) {
	cfg := writeTestConfig(t)
	hash := fingerprint.Sum([]byte("not recorded"))

	if _, err := runCLI(t, cfg, "certify", hash, "--status", "maybe"); !errors.Is(err, errBadStatus) {
		t.Errorf("bad status: err = %v", err)
	}
	if _, err := runCLI(t, cfg, "certify", "abc", "--status", "yes"); !errors.Is(err, errInvalidHash) {
		t.Errorf("bad hash: err = %v", err)
	}
	if _, err := runCLI(t, cfg, "certify", hash, "--status", "yes"); err == nil {
		t.Error("certifying an unknown track succeeded")
	}
}

func TestSearchShortQuery(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := runCLI(t, cfg, "search", "a")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No matches.") {
		t.Errorf("output = %q", out)
	}
}

func TestTokenCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := runCLI(t, cfg, "token", "artist-1", "--name", "Ada")
	if err != nil {
		t.Fatal(err)
	}

	v, err := auth.NewVerifier(testSecret, "hmcert-test")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := v.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "artist-1" || claims.Name != "Ada" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestConfigCommands(t *testing.T) {
	cfg := writeTestConfig(t)
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, cfg, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Errorf("output = %q", out)
	}
	if _, err := runCLI(t, cfg, "config", "init", "--path", target); err == nil {
		t.Error("config init overwrote an existing file")
	}

	out, err = runCLI(t, cfg, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, testSecret) || !strings.Contains(out, "<redacted>") {
		t.Errorf("secret not redacted:\n%s", out)
	}

	out, err = runCLI(t, cfg, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("output = %q", out)
	}
}

func TestCountFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":     "12345",
		"b/c.txt":   "123",
		"b/d/e.wav": "1234567890",
	})

	count, size, err := countFiles(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 || size != 18 {
		t.Errorf("countFiles() = %d, %d, want 3, 18", count, size)
	}
}

func TestSeedProject(t *testing.T) {
	dir := t.TempDir()
	master, project, total, err := seedProject(dir, 12, 5)
	if err != nil {
		t.Fatal(err)
	}

	files, err := fingerprint.FromProject(master, project)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 14 {
		t.Errorf("seeded %d files, want 14", len(files))
	}
	var sum int64
	for _, f := range files {
		sum += f.Size
	}
	if sum != total {
		t.Errorf("reported %d bytes, files hold %d", total, sum)
	}
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"Title", "Plays"}, [][]string{{"Song", "12"}, {"Short"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Title", "Plays", "Song", "12", "Short"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}

func TestVersionCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := runCLI(t, cfg, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"package": "hmcert"`) {
		t.Errorf("output = %s", out)
	}
}
