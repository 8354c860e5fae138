package session

import (
	"context"
	"time"
)

// Store is the persistence backend behind Service. AppendMessage and
// SetSessionEnd report matched=false when no session has the given id.
type Store interface {
	InsertStatusCheck(ctx context.Context, sc StatusCheck) error
	ListStatusChecks(ctx context.Context, limit int) ([]StatusCheck, error)

	InsertSession(ctx context.Context, s ConversationSession) error
	AppendMessage(ctx context.Context, sessionID string, m Message) (bool, error)
	FindSession(ctx context.Context, sessionID string) (ConversationSession, bool, error)
	SetSessionEnd(ctx context.Context, sessionID string, end time.Time, duration int64) (bool, error)

	Close(ctx context.Context) error
}
