package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/metrics"
	"github.com/humanmadecert/hmcert/storage"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Jane Doe ", "jane_doe"},
		{"Jane@Example.COM", "jane@example.com"},
		{"Track #1 (Final Mix)", "track_1_final_mix"},
		{"a  \t b", "a_b"},
		{"DJ\u00a0Shadow", "dj_shadow"},
		{"a\vb", "a_b"},
		{"a\u2003b", "a_b"},
		{"a\u2028\ufeffb", "a_b"},
		{"__x___y__", "_x_y_"},
		{"Ünïcode", "ncode"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrefixAndKeys(t *testing.T) {
	prefix := Prefix("Jane@Example.com", "Jane Doe", "Night Drive", "abc123")
	assert.Equal(t, "Email_jane@example.com_Name_jane_doe_TrackName_night_drive_hash_abc123/", prefix)
	assert.Equal(t, prefix+"master_song.wav", MasterKey(prefix, "/tmp/x/song.wav"))
	assert.Equal(t, prefix+"project/beat/drums/kick.wav", ProjectKey(prefix, "beat/drums/kick.wav"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 100, Percent(3, 3))
	assert.Equal(t, 50, Percent(1, 2))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "5.0 GiB", FormatBytes(MaxTotalSize))
	assert.Equal(t, "0 B", FormatBytes(-1))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("cover.png"))
	assert.Equal(t, defaultContentType, ContentType("project.hmcertunknown"))
	assert.Equal(t, defaultContentType, ContentType("README"))
}

func TestSubmissionValidate(t *testing.T) {
	full := Submission{
		Name:      "n",
		Email:     "e",
		TrackName: "t",
		Master:    fingerprint.DiskFile{Path: "m.wav"},
		Project:   []fingerprint.DiskFile{{Path: "p"}},
	}
	require.NoError(t, full.Validate())

	cases := map[string]func(*Submission){
		"name":    func(s *Submission) { s.Name = " " },
		"email":   func(s *Submission) { s.Email = "" },
		"track":   func(s *Submission) { s.TrackName = "" },
		"master":  func(s *Submission) { s.Master = fingerprint.DiskFile{} },
		"project": func(s *Submission) { s.Project = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := full
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrIncomplete)
		})
	}
}

func TestSubmissionCheckSize(t *testing.T) {
	s := Submission{
		Master:  fingerprint.DiskFile{Size: 6},
		Project: []fingerprint.DiskFile{{Size: 5}},
	}
	assert.Equal(t, int64(11), s.TotalSize())
	assert.NoError(t, s.CheckSize(11))
	assert.ErrorIs(t, s.CheckSize(10), ErrTooLarge)
	assert.NoError(t, s.CheckSize(0))
}

func writeSubmission(t *testing.T) Submission {
	t.Helper()
	dir := t.TempDir()
	master := filepath.Join(dir, "master.wav")
	require.NoError(t, os.WriteFile(master, []byte("RIFF..."), 0o644))
	project := filepath.Join(dir, "beat")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "stems"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "track.flp"), []byte("FLdata..."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "stems", "kick.wav"), []byte("kick"), 0o644))

	sub, err := NewSubmission("Jane Doe", "jane@example.com", "Night Drive", master, project)
	require.NoError(t, err)
	sub.AuthorID = "user_1"
	return sub
}

type recorder struct {
	tracks []catalogue.Track
	err    error
}

func (r *recorder) AddTrack(_ context.Context, t *catalogue.Track) error {
	if r.err != nil {
		return r.err
	}
	t.ID = "track-1"
	r.tracks = append(r.tracks, *t)
	return nil
}

func TestWorkflowRun(t *testing.T) {
	sub := writeSubmission(t)
	store := storage.NewMemoryStore()
	rec := &recorder{}
	m := metrics.New(prometheus.NewRegistry())
	var events []Event

	w := &Workflow{
		Store:     store,
		Catalogue: rec,
		Metrics:   m,
		Progress:  func(e Event) { events = append(events, e) },
	}
	res, err := w.Run(context.Background(), sub)
	require.NoError(t, err)

	want, err := fingerprint.Compute(context.Background(), fingerprint.AsFiles(sub.Files()))
	require.NoError(t, err)
	assert.Equal(t, want, res.Track.FolderHash)
	assert.Equal(t, "Email_jane@example.com_Name_jane_doe_TrackName_night_drive_hash_"+want+"/", res.Prefix)

	assert.Equal(t, []string{
		res.Prefix + "master_master.wav",
		res.Prefix + "project/beat/stems/kick.wav",
		res.Prefix + "project/beat/track.flp",
	}, store.Keys())
	data, ok := store.Get(res.Prefix + "master_master.wav")
	require.True(t, ok)
	assert.Equal(t, "RIFF...", string(data))

	require.Len(t, events, 3)
	assert.Equal(t, res.Prefix+"master_master.wav", events[0].Key, "master is uploaded first")
	assert.Equal(t, []int{33, 67, 100}, []int{events[0].Percent, events[1].Percent, events[2].Percent})

	require.Len(t, rec.tracks, 1)
	assert.Equal(t, "Night Drive", rec.tracks[0].Title)
	assert.Equal(t, "Jane Doe", rec.tracks[0].ArtistName)
	assert.Equal(t, "user_1", rec.tracks[0].AuthorID)
	assert.Equal(t, "track-1", res.Track.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fingerprints.WithLabelValues("ok")))
}

func TestWorkflowRejectsBeforeTransfer(t *testing.T) {
	sub := writeSubmission(t)
	store := storage.NewMemoryStore()
	w := &Workflow{Store: store, MaxTotalSize: 4}

	_, err := w.Run(context.Background(), sub)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, store.Keys())

	sub.Email = ""
	_, err = w.Run(context.Background(), sub)
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = (&Workflow{}).Run(context.Background(), sub)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestWorkflowAbortsOnStoreFailure(t *testing.T) {
	sub := writeSubmission(t)
	store := storage.NewMemoryStore()
	store.MaxFileSize = 5 // master (7 bytes) is refused
	rec := &recorder{}
	w := &Workflow{Store: store, Catalogue: rec}

	_, err := w.Run(context.Background(), sub)
	assert.ErrorIs(t, err, storage.ErrFileTooLarge)
	assert.Empty(t, store.Keys())
	assert.Empty(t, rec.tracks, "nothing is recorded after a failed transfer")
}

func TestWorkflowRecordFailure(t *testing.T) {
	sub := writeSubmission(t)
	rec := &recorder{err: catalogue.ErrDuplicateTrack}
	w := &Workflow{Store: storage.NewMemoryStore(), Catalogue: rec}

	_, err := w.Run(context.Background(), sub)
	assert.True(t, errors.Is(err, catalogue.ErrDuplicateTrack))
}

func TestWorkflowCancelled(t *testing.T) {
	sub := writeSubmission(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := storage.NewMemoryStore()
	_, err := (&Workflow{Store: store}).Run(ctx, sub)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Keys())
}
