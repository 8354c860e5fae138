package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service implements the session operations on top of a Store.
type Service struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// ServiceConfig configures a Service. Now and NewID default to the UTC wall
// clock and random UUIDs.
type ServiceConfig struct {
	Store  Store
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// NewService creates a Service backed by cfg.Store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	s := &Service{
		store:  cfg.Store,
		now:    cfg.Now,
		newID:  cfg.NewID,
		logger: cfg.Logger,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// RoomName derives the media room name for a session id.
func RoomName(id string) string {
	return "room-" + id
}

// CreateStatusCheck records a status check for clientName.
func (s *Service) CreateStatusCheck(ctx context.Context, clientName string) (StatusCheck, error) {
	sc := StatusCheck{
		ID:         s.newID(),
		ClientName: clientName,
		Timestamp:  s.now(),
	}
	if err := s.store.InsertStatusCheck(ctx, sc); err != nil {
		return StatusCheck{}, fmt.Errorf("insert status check: %w", err)
	}
	return sc, nil
}

// ListStatusChecks returns up to StatusListLimit status checks in store order.
func (s *Service) ListStatusChecks(ctx context.Context) ([]StatusCheck, error) {
	checks, err := s.store.ListStatusChecks(ctx, StatusListLimit)
	if err != nil {
		return nil, fmt.Errorf("list status checks: %w", err)
	}
	if checks == nil {
		checks = []StatusCheck{}
	}
	return checks, nil
}

// CreateSession persists a new session with a freshly generated room name.
func (s *Service) CreateSession(ctx context.Context, in SessionCreate) (ConversationSession, error) {
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	cs := ConversationSession{
		ID:        s.newID(),
		UserID:    in.UserID,
		AgentID:   in.AgentID,
		RoomName:  RoomName(s.newID()),
		StartTime: s.now(),
		Messages:  []Message{},
		Metadata:  metadata,
	}
	if err := s.store.InsertSession(ctx, cs); err != nil {
		return ConversationSession{}, fmt.Errorf("insert session: %w", err)
	}

	s.logger.Info("Created session",
		slog.String("session_id", cs.ID),
		slog.String("room_name", cs.RoomName),
		slog.String("user_id", cs.UserID))

	return cs, nil
}

// AddMessage appends a message to the session. Type defaults to "voice".
func (s *Service) AddMessage(ctx context.Context, sessionID string, in MessageAdd) error {
	msgType := in.Type
	if msgType == "" {
		msgType = MessageTypeVoice
	}

	m := Message{
		Timestamp: s.now(),
		Sender:    in.Sender,
		Content:   in.Content,
		Type:      msgType,
		Duration:  in.Duration,
	}

	matched, err := s.store.AppendMessage(ctx, sessionID, m)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}

// EndSession stamps the end time and whole-second duration on the session and
// returns the duration. Ending an already ended session recomputes both.
func (s *Service) EndSession(ctx context.Context, sessionID string) (int64, error) {
	cs, ok, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("find session: %w", err)
	}
	if !ok {
		return 0, ErrNotFound
	}

	end := s.now()
	duration := elapsedSeconds(cs.StartTime, end)

	matched, err := s.store.SetSessionEnd(ctx, sessionID, end, duration)
	if err != nil {
		return 0, fmt.Errorf("set session end: %w", err)
	}
	if !matched {
		return 0, ErrNotFound
	}

	s.logger.Info("Ended session",
		slog.String("session_id", sessionID),
		slog.Int64("duration", duration))

	return duration, nil
}

// GetSession returns the stored session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (ConversationSession, error) {
	cs, ok, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		return ConversationSession{}, fmt.Errorf("find session: %w", err)
	}
	if !ok {
		return ConversationSession{}, ErrNotFound
	}
	if cs.Messages == nil {
		cs.Messages = []Message{}
	}
	if cs.Metadata == nil {
		cs.Metadata = map[string]any{}
	}
	return cs, nil
}

// elapsedSeconds is floor(end-start) in seconds, 0 for a zero start and never
// negative.
func elapsedSeconds(start, end time.Time) int64 {
	if start.IsZero() {
		return 0
	}
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
