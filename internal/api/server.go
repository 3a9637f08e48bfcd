package api

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/metrics"
)

//go:embed static
var staticFiles embed.FS

type ServerOptions struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type Server struct {
	http *http.Server
	log  *logging.Logger
}

func NewServer(opts ServerOptions, p Pipeline, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      NewRouter(p, opts.MaxUploadBytes, log),
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter wires middleware and routes. Exposed for tests.
func NewRouter(p Pipeline, maxUploadBytes int64, log *logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(Recoverer(log))
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", serveIndex)

	NewHandler(p, maxUploadBytes, log).Routes(r)
	return r
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "index page missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) Start() error {
	s.log.Infow("http server starting", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("http server shutting down")
	return s.http.Shutdown(ctx)
}
