package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/auth"
	"github.com/humanmadecert/hmcert/captcha"
	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/logging"
	"github.com/humanmadecert/hmcert/metrics"
	"github.com/humanmadecert/hmcert/storage"
)

// Catalogue is the subset of *catalogue.Store the API uses.
type Catalogue interface {
	AddTrack(ctx context.Context, t *catalogue.Track) error
	TrackByHash(ctx context.Context, hash string) (*catalogue.Track, error)
	TracksByAuthor(ctx context.Context, authorID string) ([]catalogue.Track, error)
	Search(ctx context.Context, query string) (catalogue.SearchResults, error)
}

// Options configures a Server.
type Options struct {
	Store     storage.Store
	Catalogue Catalogue
	// Captcha verifies presign requests. Nil disables verification.
	Captcha captcha.Checker
	// Auth verifies bearer tokens. Nil rejects every authenticated route.
	Auth        *auth.Verifier
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
	MaxFileSize int64
	// PresignRate and PresignBurst limit presign requests per client address.
	// A zero rate disables limiting.
	PresignRate  float64
	PresignBurst int
}

// Server serves the hmcert HTTP API.
type Server struct {
	store       storage.Store
	cat         Catalogue
	captcha     captcha.Checker
	auth        *auth.Verifier
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	log         *zap.Logger
	maxFileSize int64
	limiter     *clientLimiter
	handler     http.Handler
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	s := &Server{
		store:       opts.Store,
		cat:         opts.Catalogue,
		captcha:     opts.Captcha,
		auth:        opts.Auth,
		metrics:     opts.Metrics,
		gatherer:    opts.Gatherer,
		log:         logging.OrNop(opts.Logger),
		maxFileSize: opts.MaxFileSize,
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = storage.DefaultMaxFileSize
	}
	if opts.PresignRate > 0 {
		s.limiter = newClientLimiter(opts.PresignRate, opts.PresignBurst)
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.handler = mux
	return s
}

// RegisterRoutes registers the API routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/upload", s.instrument("presign", s.rateLimited(http.HandlerFunc(s.handlePresign))))
	mux.Handle("POST /api/uploads", s.instrument("record_upload", http.HandlerFunc(s.handleRecordUpload)))
	mux.Handle("GET /api/search", s.instrument("search", http.HandlerFunc(s.handleSearch)))
	mux.Handle("GET /api/tracks", s.instrument("dashboard", http.HandlerFunc(s.handleDashboard)))
	mux.Handle("GET /api/tracks/{hash}", s.instrument("track", http.HandlerFunc(s.handleTrack)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down,
// waiting up to shutdownTimeout for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
