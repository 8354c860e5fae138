// Package httpapi serves the session, status and token endpoints under /api.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chriscow/lk-voice/internal/observability"
	"github.com/chriscow/lk-voice/pkg/session"
	"github.com/chriscow/lk-voice/pkg/token"
)

// Sessions is the session service the API exposes.
type Sessions interface {
	CreateStatusCheck(ctx context.Context, clientName string) (session.StatusCheck, error)
	ListStatusChecks(ctx context.Context) ([]session.StatusCheck, error)
	CreateSession(ctx context.Context, in session.SessionCreate) (session.ConversationSession, error)
	AddMessage(ctx context.Context, sessionID string, in session.MessageAdd) error
	EndSession(ctx context.Context, sessionID string) (int64, error)
	GetSession(ctx context.Context, sessionID string) (session.ConversationSession, error)
}

// TokenIssuer mints participant tokens.
type TokenIssuer interface {
	Issue(userID, roomName string) (token.Grant, error)
}

type Server struct {
	sessions Sessions
	tokens   TokenIssuer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func New(sessions Sessions, tokens TokenIssuer, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions: sessions,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Post("/status", s.handleCreateStatus)
		r.Get("/status", s.handleListStatus)
		r.Post("/livekit/token", s.handleToken)
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/messages", s.handleAddMessage)
		r.Post("/sessions/{id}/end", s.handleEndSession)
		r.Get("/sessions/{id}", s.handleGetSession)
	})

	return r
}

// requestLogger logs each request and counts it by route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, status)
		}
		s.logger.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "LiveKit Voice Agent API"})
}
