// Package web serves the timeline over HTTP: a health probe, the scene as
// JSON or CBOR, control endpoints that drive the timeline, and an HTML
// rendering of the scene that headless capture waits on.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"tlview/internal/config"
	appLog "tlview/internal/log"
	"tlview/internal/model"
	"tlview/internal/render"
	"tlview/internal/timeline"
)

// Controller is the part of a timeline the server drives.
type Controller interface {
	State() timeline.State
	SetPosition(ms int64)
	Pan(dx float64)
	Step(fraction float64)
	SetViewport(v float64)
	Resize(width float64)
	Retry()
	Refresh()
	Click(id string)
	Lookup(id string) (model.Event, bool)
}

// Server provides the HTTP API and view of one timeline.
type Server struct {
	cfg   *config.Config
	tl    Controller
	scene *render.Scene
	loc   *time.Location
	mux   *http.ServeMux
}

// NewServer constructs a new Server. loc formats times in the HTML view.
func NewServer(cfg *config.Config, tl Controller, scene *render.Scene, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:   cfg,
		tl:    tl,
		scene: scene,
		loc:   loc,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's handler with compression and, when
// configured, basic auth applied.
func (s *Server) Handler() http.Handler {
	h := http.Handler(gzhttp.GzipHandler(s.mux))
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/events/{id...}", s.handleEvent)

	s.mux.HandleFunc("POST /api/position", s.handlePosition)
	s.mux.HandleFunc("POST /api/pan", s.handlePan)
	s.mux.HandleFunc("POST /api/step", s.handleStep)
	s.mux.HandleFunc("POST /api/zoom", s.handleZoom)
	s.mux.HandleFunc("POST /api/resize", s.handleResize)
	s.mux.HandleFunc("POST /api/retry", s.handleRetry)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/click", s.handleClick)

	s.mux.HandleFunc("GET /{$}", s.handleView)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
// Empty credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tlview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
