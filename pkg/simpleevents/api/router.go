package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
)

// RouterConfig holds the dependencies of the HTTP adapter
type RouterConfig struct {
	Service   simpleevents.Service
	BlobStore simpleevents.BlobStore // served under /files/ when it implements BlobReader
	Signer    *presigned.Signer
	Upload    UploadPolicy
	LinkTTL   time.Duration
	Logger    *slog.Logger

	// Optional
	Metrics        func(http.Handler) http.Handler
	MetricsHandler http.Handler
}

// NewRouter mounts the events, attendees and files routes plus /healthz and,
// when configured, /metrics.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Upload.MaxFileSize == 0 {
		cfg.Upload = DefaultUploadPolicy()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics)
	}

	r.Get("/healthz", Healthz)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Mount("/events", NewEventHandler(cfg.Service, cfg.Upload, cfg.LinkTTL).Routes())
	r.Mount("/attendees", NewAttendeeHandler(cfg.Service).Routes())
	if reader, ok := cfg.BlobStore.(simpleevents.BlobReader); ok {
		r.Mount("/files", NewFilesHandler(reader, cfg.Signer).Routes())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, r, http.StatusNotFound, "Route not found")
	})

	return r
}

// Healthz reports that the process is serving requests
func Healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RequestLogger logs one line per request with its status and latency
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
