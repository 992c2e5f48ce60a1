package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/humanmadecert/hmcert/auth"
	"github.com/humanmadecert/hmcert/captcha"
	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/metrics"
	"github.com/humanmadecert/hmcert/storage"
)

const (
	jwtSecret = "test-secret"
	hashA     = "165154bb7c01f3f536851b7a93087b4f65f2791682d978cb1778867f881f3319"
	hashB     = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubCaptcha struct {
	err error
}

func (s stubCaptcha) Check(context.Context, string, string) error { return s.err }

type fixture struct {
	srv     *Server
	store   *storage.MemoryStore
	cat     *catalogue.Store
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	cat, err := catalogue.Open(context.Background(), filepath.Join(t.TempDir(), "catalogue.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	verifier, err := auth.NewVerifier(jwtSecret, "")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := storage.NewMemoryStore()
	opts := Options{
		Store:       store,
		Catalogue:   cat,
		Captcha:     stubCaptcha{},
		Auth:        verifier,
		Metrics:     m,
		Gatherer:    reg,
		MaxFileSize: 1024,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &fixture{srv: New(opts), store: store, cat: cat, metrics: m, reg: reg}
}

func (f *fixture) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func issue(t *testing.T, subject, name string) string {
	t.Helper()
	token, err := auth.Issue(jwtSecret, "", subject, name, time.Hour)
	require.NoError(t, err)
	return token
}

func TestPresign(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/upload", map[string]any{
		"filename":     "prefix/master_song.wav",
		"contentType":  "audio/wav",
		"fileSize":     100,
		"captchaToken": "tok",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PresignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "memory://prefix/master_song.wav", resp.URL)
	assert.Equal(t, resp.URL, resp.SignedURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Presigns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("presign", "200")))
}

func TestPresignAliases(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/upload", map[string]any{
		"fileName": "prefix/project/a.flp",
		"fileType": "application/octet-stream",
		"fileSize": 5,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "memory://prefix/project/a.flp")
}

func TestPresignErrors(t *testing.T) {
	tests := []struct {
		name    string
		captcha captcha.Checker
		body    any
		want    int
	}{
		{"missing size", stubCaptcha{}, map[string]any{"filename": "p/a"}, http.StatusBadRequest},
		{"oversized", stubCaptcha{}, map[string]any{"filename": "p/a", "fileSize": 2048}, http.StatusBadRequest},
		{"bad json", stubCaptcha{}, "not an object", http.StatusBadRequest},
		{"bad key", stubCaptcha{}, map[string]any{"filename": "../etc/passwd", "fileSize": 10}, http.StatusBadRequest},
		{"captcha rejected", stubCaptcha{err: captcha.ErrRejected}, map[string]any{"filename": "p/a", "fileSize": 10}, http.StatusForbidden},
		{"captcha missing", stubCaptcha{err: captcha.ErrMissing}, map[string]any{"filename": "p/a", "fileSize": 10}, http.StatusForbidden},
		{"captcha down", stubCaptcha{err: fmt.Errorf("%w: boom", captcha.ErrUnavailable)}, map[string]any{"filename": "p/a", "fileSize": 10}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(o *Options) { o.Captcha = tt.captcha })
			rec := f.do(t, http.MethodPost, "/api/upload", tt.body, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

type brokenStore struct{ storage.Store }

func (brokenStore) PresignPut(context.Context, storage.PresignRequest) (string, error) {
	return "", fmt.Errorf("endpoint unreachable")
}

func TestPresignStorageFailure(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Store = brokenStore{} })
	rec := f.do(t, http.MethodPost, "/api/upload", map[string]any{"filename": "p/a", "fileSize": 10}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Presigns.WithLabelValues("error")))
}

func TestPresignRateLimit(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.PresignRate = 0.001
		o.PresignBurst = 2
	})
	body := map[string]any{"filename": "p/a", "fileSize": 10}
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/upload", body, "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/upload", body, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/upload", body, "").Code)
}

func TestRecordUploadAndLookup(t *testing.T) {
	f := newFixture(t, nil)
	token := issue(t, "user_1", "jane")

	rec := f.do(t, http.MethodPost, "/api/uploads", RecordRequest{
		ArtistName: "Jane Doe",
		TrackName:  "Night Drive",
		FolderHash: hashA,
		Email:      "jane@example.com",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created catalogue.Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "user_1", created.AuthorID)
	assert.Equal(t, "jane", created.UserName)
	assert.Equal(t, catalogue.VerificationPending, created.Verification)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UploadsRecorded))

	rec = f.do(t, http.MethodPost, "/api/uploads", RecordRequest{ArtistName: "x", TrackName: "y", FolderHash: hashA}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tracks/"+hashA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got catalogue.Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Night Drive", got.Title)

	rec = f.do(t, http.MethodGet, "/api/tracks/"+hashB, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/tracks/NOTAHASH", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordUploadValidation(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name  string
		body  RecordRequest
		token string
		want  int
	}{
		{"uppercase hash", RecordRequest{ArtistName: "a", TrackName: "t", FolderHash: strings.ToUpper(hashA)}, "", http.StatusBadRequest},
		{"short hash", RecordRequest{ArtistName: "a", TrackName: "t", FolderHash: "abc"}, "", http.StatusBadRequest},
		{"missing track", RecordRequest{ArtistName: "a", FolderHash: hashA}, "", http.StatusBadRequest},
		{"bad token", RecordRequest{ArtistName: "a", TrackName: "t", FolderHash: hashA}, "garbage", http.StatusUnauthorized},
		{"anonymous", RecordRequest{ArtistName: "a", TrackName: "t", FolderHash: hashB}, "", http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/uploads", tt.body, tt.token)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.cat.AddTrack(ctx, &catalogue.Track{Title: "first", ArtistName: "Jane Doe Orchestra", AuthorID: "user_1", FolderHash: hashA, CreatedAt: base}))
	require.NoError(t, f.cat.AddTrack(ctx, &catalogue.Track{Title: "second", AuthorID: "user_1", FolderHash: hashB, CreatedAt: base.Add(time.Hour)}))

	rec := f.do(t, http.MethodGet, "/api/tracks", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tracks", nil, issue(t, "user_1", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tracks []DashboardTrack `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tracks, 2)
	assert.Equal(t, "second", resp.Tracks[0].Title)
	assert.Equal(t, "2cf24d...9824", resp.Tracks[0].FolderHashShort)
	assert.Equal(t, "n/a", resp.Tracks[0].TxHashShort)
	assert.Equal(t, "Jane D...stra", resp.Tracks[1].ArtistNameShort)

	rec = f.do(t, http.MethodGet, "/api/tracks", nil, issue(t, "someone_else", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tracks":[]}`, rec.Body.String())
}

func TestDashboardWithoutVerifier(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Auth = nil })
	rec := f.do(t, http.MethodGet, "/api/tracks", nil, issue(t, "user_1", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.cat.AddTrack(context.Background(), &catalogue.Track{Title: "Night Drive", FolderHash: hashA}))

	rec := f.do(t, http.MethodGet, "/api/search?q=night", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res catalogue.SearchResults
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, catalogue.UnknownArtist, res.Tracks[0].ArtistName)
	assert.Equal(t, catalogue.VerificationPending, res.Tracks[0].VerificationStatus)

	rec = f.do(t, http.MethodGet, "/api/search?q=n", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tracks":[],"users":[]}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.do(t, http.MethodGet, "/api/search?q=abc", nil, "")
	rec = f.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hmcert_http_requests_total{code="200",route="search"} 1`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln, time.Second) }()

	client := &http.Client{Transport: &http.Transport{}}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
