// Package api serves the QR form over HTTP: an HTML page per form session,
// a JSON API over the same sessions, SVG download and one-shot rendering.
package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/form"
	"qrcode-workers/internal/qrrender"
)

//go:embed templates/*.html
var templateFS embed.FS

const defaultMaxUploadBytes = 10 << 20

// Options wires the server's collaborators.
type Options struct {
	Store          *form.Store
	Renderer       *qrrender.Renderer
	Logger         logger.Logger
	MaxUploadBytes int64
	// SubmitWait bounds how long a form submission waits for its build
	// before redirecting back to the page.
	SubmitWait time.Duration
	// ReadyCheck reports whether dependencies are reachable. Nil means ready.
	ReadyCheck func(ctx context.Context) error
}

type Server struct {
	store      *form.Store
	renderer   *qrrender.Renderer
	logger     logger.Logger
	maxUpload  int64
	submitWait time.Duration
	ready      func(ctx context.Context) error
	page       *template.Template
}

func NewServer(opts Options) *Server {
	s := &Server{
		store:      opts.Store,
		renderer:   opts.Renderer,
		logger:     opts.Logger,
		maxUpload:  opts.MaxUploadBytes,
		submitWait: opts.SubmitWait,
		ready:      opts.ReadyCheck,
		page:       template.Must(template.ParseFS(templateFS, "templates/form.html")),
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUploadBytes
	}
	if s.submitWait <= 0 {
		s.submitWait = 15 * time.Second
	}
	return s
}

// NewRouter registers every route on a fresh mux.Router.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ready", s.handleReady).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/sessions/{id}", s.handleSessionPage).Methods("GET")
	r.HandleFunc("/sessions/{id}", s.handleSessionSubmit).Methods("POST")
	r.HandleFunc("/sessions/{id}/qrcode.svg", s.handleDownload).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handlePatchSession).Methods("PATCH")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/qrcode", s.handleRender).Methods("POST")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}
