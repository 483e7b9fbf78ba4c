// Package status serves a small HTTP endpoint for health checks and
// session introspection.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Session reports the state of the qBittorrent session.
type Session interface {
	LoggedIn() bool
	APIVersion() string
	IndexLen() int
}

// Flows reports the number of chats inside a conversation flow.
type Flows interface {
	ActiveFlows() int
}

// Report is the body of GET /status
type Report struct {
	LoggedIn        bool   `json:"logged_in"`
	WebAPIVersion   string `json:"webapi_version"`
	IndexedTorrents int    `json:"indexed_torrents"`
	ActiveFlows     int    `json:"active_flows"`
}

// Server is the status HTTP server
type Server struct {
	addr    string
	session Session
	flows   Flows
	router  chi.Router
	logger  zerolog.Logger
}

// NewServer creates a server listening on addr once Run is called.
func NewServer(addr string, session Session, flows Flows, logger zerolog.Logger) *Server {
	s := &Server{
		addr:    addr,
		session: session,
		flows:   flows,
		logger:  logger.With().Str("component", "status").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Status server shutdown")
		}
	}()

	s.logger.Info().Str("addr", s.addr).Msg("Status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := Report{
		LoggedIn:        s.session.LoggedIn(),
		WebAPIVersion:   s.session.APIVersion(),
		IndexedTorrents: s.session.IndexLen(),
	}
	if s.flows != nil {
		report.ActiveFlows = s.flows.ActiveFlows()
	}

	code := http.StatusOK
	if !report.LoggedIn {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
