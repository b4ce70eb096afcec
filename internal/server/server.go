package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/degrade/internal/counter"
)

// Store is the host store the server exposes. Both the SQLite and the Redis
// stores satisfy it.
type Store interface {
	counter.Keyspace
	KeyType(ctx context.Context, key string) (string, error)
	Journal(ctx context.Context) ([][]string, error)
	ReplaceJournal(ctx context.Context, cmds [][]string) error
	PingContext(ctx context.Context) error
}

// Server is the degrade HTTP API server.
type Server struct {
	store   Store
	ctrl    *counter.Controller
	router  chi.Router
	version string
	started time.Time
	log     *slog.Logger
	limiter *rateLimiter
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRateLimit limits each client IP to rps requests per second with the
// given burst. A zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = newRateLimiter(rps, burst)
		}
	}
}

// New creates a new Server over st, running counter operations through ctrl.
func New(st Store, ctrl *counter.Controller, version string, opts ...Option) *Server {
	s := &Server{
		store:   st,
		ctrl:    ctrl,
		version: version,
		started: time.Now(),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/counters/{key}", s.handlePeek)
		r.Post("/counters/{key}/incr", s.handleIncr)
		r.Post("/counters/{key}/decr", s.handleDecr)

		r.Get("/keys/{key}", s.handleKeyType)
		r.Put("/keys/{key}", s.handlePutRaw)
		r.Delete("/keys/{key}", s.handleDeleteKey)

		r.Get("/journal", s.handleJournal)
		r.Post("/journal/rewrite", s.handleRewrite)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if err := s.store.PingContext(r.Context()); err != nil {
		storeOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
