// Package server exposes snapshots, comparisons, downloads and map sessions
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/layers"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/session"
)

// Downloader lists the published layer files for a city and year.
type Downloader interface {
	Downloads(city model.City, year model.Year) []layers.Download
}

// Defaults fill in query parameters a request leaves out.
type Defaults struct {
	City       model.City
	Year       model.Year
	BeforeYear model.Year
	AfterYear  model.Year
	Weights    model.WeightSet
}

// Options configures a Server.
type Options struct {
	Defaults    Defaults
	CORSOrigins []string
	// WaitTimeout bounds GET /api/sessions/{id}?wait=true.
	WaitTimeout time.Duration
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	loader   session.Loader
	files    Downloader
	sessions *session.Manager
	opts     Options
}

// New creates a Server.
func New(loader session.Loader, files Downloader, sessions *session.Manager, opts Options) *Server {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.Defaults.Weights == nil {
		opts.Defaults.Weights = model.DefaultWeights()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		loader:   loader,
		files:    files,
		sessions: sessions,
		opts:     opts,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/compare", s.handleCompare)
		r.Get("/downloads", s.handleDownloads)
		r.Get("/legend", s.handleLegend)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Patch("/", s.handlePatchSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/features/{geoid}", s.handleSessionFeature)
			})
		})
	})

	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func attachmentName(kind string, city model.City, years string, ext string) string {
	return fmt.Sprintf("%s_blockgroup_%s_%s.%s", city, kind, years, ext)
}
