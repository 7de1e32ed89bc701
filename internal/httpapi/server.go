// Package httpapi exposes format listing, downloading and the downloads
// directory over HTTP, and serves the browser UI.
package httpapi

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clipdeck/internal/media"
	"clipdeck/internal/metrics"
	"clipdeck/internal/registry"
	"clipdeck/internal/toolexec"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// FormatLister lists the formats of a video.
type FormatLister interface {
	List(ctx context.Context, url string) (*media.VideoInfo, error)
}

// Downloader fetches one format of a video.
type Downloader interface {
	Download(ctx context.Context, req media.DownloadRequest) (*media.DownloadResult, error)
}

// Files is the downloads directory.
type Files interface {
	Dir() string
	List(ctx context.Context) ([]media.DownloadedFile, error)
	Open(name string) (*os.File, os.FileInfo, error)
	Usage() (*registry.Usage, error)
}

// HistoryReader returns recent journal entries.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]media.HistoryEntry, error)
}

// Prober reports whether an external tool is usable.
type Prober interface {
	Probe(ctx context.Context, tool toolexec.Tool) (string, error)
}

// Config wires a Server.
type Config struct {
	Formats   FormatLister
	Downloads Downloader
	Files     Files
	History   HistoryReader // optional
	Prober    Prober
	Tools     []toolexec.Tool
	Static    fs.FS
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	// RateLimit is tool-spawning requests per second shared by all clients; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Server holds the HTTP handlers.
type Server struct {
	cfg     Config
	logger  zerolog.Logger
	limiter *rate.Limiter
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "http").Logger(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/formats", s.handleFormats)
			r.Post("/download", s.handleDownload)
		})
		r.Get("/downloads", s.handleListDownloads)
		r.Get("/history", s.handleHistory)
		r.Get("/status", s.handleStatus)
	})

	r.Get("/downloads/{filename}", s.handleServeFile)

	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics.Handler())
	}
	if s.cfg.Static != nil {
		r.Handle("/*", http.FileServer(http.FS(s.cfg.Static)))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// NewHTTPServer wraps h with the timeouts used in production. Write timeout
// is left unset since downloads can run for a long time.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
