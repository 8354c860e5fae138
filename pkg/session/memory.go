package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// "memory" store backend.
type MemoryStore struct {
	mu       sync.RWMutex
	checks   []StatusCheck
	sessions map[string]*ConversationSession
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*ConversationSession),
	}
}

func (m *MemoryStore) InsertStatusCheck(_ context.Context, sc StatusCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, sc)
	return nil
}

func (m *MemoryStore) ListStatusChecks(_ context.Context, limit int) ([]StatusCheck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.checks)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]StatusCheck, n)
	copy(out, m.checks[:n])
	return out, nil
}

func (m *MemoryStore) InsertSession(_ context.Context, s ConversationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneSession(s)
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, sessionID string, msg Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	s.Messages = append(s.Messages, msg)
	return true, nil
}

func (m *MemoryStore) FindSession(_ context.Context, sessionID string) (ConversationSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ConversationSession{}, false, nil
	}
	return cloneSession(*s), true, nil
}

func (m *MemoryStore) SetSessionEnd(_ context.Context, sessionID string, end time.Time, duration int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	s.EndTime = &end
	s.Duration = &duration
	return true, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

func cloneSession(s ConversationSession) ConversationSession {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.Metadata != nil {
		out.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Duration != nil {
		d := *s.Duration
		out.Duration = &d
	}
	return out
}
