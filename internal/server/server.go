package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"releasetrack/internal/release"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 120 * time.Second // batch runs make many remote calls
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 120 * time.Second

	// GlobalRateLimit is the per-IP requests-per-minute ceiling.
	GlobalRateLimit = 60
)

// Server exposes the release tracker over HTTP.
type Server struct {
	Tracker  *release.Tracker
	Logger   *slog.Logger
	TestMode bool
}

// NewServer creates a new server instance.
func NewServer(tracker *release.Tracker, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Tracker:  tracker,
		Logger:   logger,
		TestMode: testMode,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", req.Method,
					"path", req.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, req)
		})
	})

	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(GlobalRateLimit, s.Logger))
	}

	r.Get("/health", s.HandleHealth)
	r.Get("/releases", s.HandleListReleases)
	r.Get("/releases/{version}", s.HandleGetRelease)
	r.Post("/releases/{version}/{action}", s.HandleReleaseAction)
	r.Post("/batch/{operation}", s.HandleBatch)
	r.Post("/crawl", s.HandleCrawl)
	r.Post("/register", s.HandleRegister)

	return r
}

// Start starts the HTTP server.
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("Starting server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}
	return server.ListenAndServe()
}
