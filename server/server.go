// Package server exposes integrald over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/petal-labs/integrald"
)

const (
	defaultMaxBody    = 1 << 20
	defaultBatchLimit = 64
)

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Solver *integrald.Solver
	// History records every /integrate outcome. Nil disables history routes.
	History HistoryStore
	// CORSOrigins is the allow-list for browser callers. "*" allows any
	// origin without credentials.
	CORSOrigins []string
	MaxBody     int64
	// BatchLimit caps both the items per batch request and the number of
	// items integrated concurrently.
	BatchLimit int
	Logger     *slog.Logger
	Now        func() time.Time
}

// Server is the integrald HTTP API server.
type Server struct {
	solver      *integrald.Solver
	history     HistoryStore
	corsOrigins []string
	corsAny     bool
	maxBody     int64
	batchLimit  int
	logger      *slog.Logger
	now         func() time.Time
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	solver := cfg.Solver
	if solver == nil {
		solver = integrald.NewSolver(integrald.SolverConfig{Logger: logger})
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	batchLimit := cfg.BatchLimit
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	origins := make([]string, 0, len(cfg.CORSOrigins))
	corsAny := false
	for _, origin := range cfg.CORSOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			corsAny = true
		default:
			origins = append(origins, origin)
		}
	}

	return &Server{
		solver:      solver,
		history:     cfg.History,
		corsOrigins: origins,
		corsAny:     corsAny,
		maxBody:     maxBody,
		batchLimit:  batchLimit,
		logger:      logger,
		now:         now,
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the API routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /integrate", s.handleIntegrate)
	mux.HandleFunc("POST /api/integrate/batch", s.handleIntegrateBatch)
	mux.HandleFunc("POST /api/sample", s.handleSample)
	mux.HandleFunc("GET /api/functions", s.handleFunctions)
	mux.HandleFunc("GET /api/history", s.handleListHistory)
	mux.HandleFunc("GET /api/history/{id}", s.handleGetHistory)
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			switch {
			case slices.Contains(s.corsOrigins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			case s.corsAny:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the error envelope for the /api routes.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}
