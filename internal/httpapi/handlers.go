package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chriscow/lk-voice/pkg/session"
)

type statusCreateRequest struct {
	ClientName *string `json:"client_name"`
}

type tokenRequest struct {
	UserID   *string `json:"user_id"`
	RoomName *string `json:"room_name"`
	AgentID  *string `json:"agent_id"`
}

type sessionCreateRequest struct {
	UserID   *string        `json:"user_id"`
	AgentID  *string        `json:"agent_id"`
	Metadata map[string]any `json:"metadata"`
}

type sessionCreateResponse struct {
	SessionID string `json:"session_id"`
	RoomName  string `json:"room_name"`
	Success   bool   `json:"success"`
}

type messageAddRequest struct {
	Sender   *string `json:"sender"`
	Content  *string `json:"content"`
	Type     string  `json:"type"`
	Duration *int64  `json:"duration"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type endResponse struct {
	Success  bool  `json:"success"`
	Duration int64 `json:"duration"`
}

func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := required(fieldSet{"client_name": req.ClientName}); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := s.sessions.CreateStatusCheck(r.Context(), *req.ClientName)
	if err != nil {
		s.storeFailure(w, "insert_status_check", "Failed to create status check", err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

func (s *Server) handleListStatus(w http.ResponseWriter, r *http.Request) {
	checks, err := s.sessions.ListStatusChecks(r.Context())
	if err != nil {
		s.storeFailure(w, "list_status_checks", "Failed to list status checks", err)
		return
	}
	respondJSON(w, http.StatusOK, checks)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := required(fieldSet{"user_id": req.UserID, "room_name": req.RoomName, "agent_id": req.AgentID}); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	grant, err := s.tokens.Issue(*req.UserID, *req.RoomName)
	if err != nil {
		s.logger.Error("Token generation failed",
			slog.String("user_id", *req.UserID),
			slog.String("room_name", *req.RoomName),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate token: %v", err))
		return
	}
	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
	respondJSON(w, http.StatusOK, grant)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := required(fieldSet{"user_id": req.UserID, "agent_id": req.AgentID}); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cs, err := s.sessions.CreateSession(r.Context(), session.SessionCreate{
		UserID:   *req.UserID,
		AgentID:  *req.AgentID,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.storeFailure(w, "insert_session", "Failed to create session", err)
		return
	}
	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	respondJSON(w, http.StatusOK, sessionCreateResponse{
		SessionID: cs.ID,
		RoomName:  cs.RoomName,
		Success:   true,
	})
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req messageAddRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := required(fieldSet{"sender": req.Sender, "content": req.Content}); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.sessions.AddMessage(r.Context(), chi.URLParam(r, "id"), session.MessageAdd{
		Sender:   *req.Sender,
		Content:  *req.Content,
		Type:     req.Type,
		Duration: req.Duration,
	})
	if s.sessionFailure(w, "append_message", "Failed to add message", err) {
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	duration, err := s.sessions.EndSession(r.Context(), chi.URLParam(r, "id"))
	if s.sessionFailure(w, "end_session", "Failed to end session", err) {
		return
	}
	respondJSON(w, http.StatusOK, endResponse{Success: true, Duration: duration})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if s.sessionFailure(w, "find_session", "Failed to get session", err) {
		return
	}
	respondJSON(w, http.StatusOK, cs)
}

// sessionFailure writes the response for a failed session operation and
// reports whether it did.
func (s *Server) sessionFailure(w http.ResponseWriter, op, prefix string, err error) bool {
	switch session.Classify(err) {
	case session.OutcomeOK:
		return false
	case session.OutcomeNotFound:
		respondError(w, http.StatusNotFound, "Session not found")
	default:
		s.storeFailure(w, op, prefix, err)
	}
	return true
}

func (s *Server) storeFailure(w http.ResponseWriter, op, prefix string, err error) {
	s.logger.Error("Session store operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()))
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", prefix, err))
}
