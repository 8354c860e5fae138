package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in Postgres with messages and metadata held
// as JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the schema if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSessionSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSessionSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS status_checks (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			client_name TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			room_name TEXT NOT NULL UNIQUE,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NULL,
			duration BIGINT NULL,
			messages JSONB NOT NULL DEFAULT '[]'::jsonb,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init session schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) InsertStatusCheck(ctx context.Context, sc StatusCheck) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO status_checks (id, client_name, timestamp) VALUES ($1, $2, $3)`,
		sc.ID, sc.ClientName, sc.Timestamp)
	return err
}

func (s *PostgresStore) ListStatusChecks(ctx context.Context, limit int) ([]StatusCheck, error) {
	if limit <= 0 {
		limit = StatusListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, client_name, timestamp FROM status_checks ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCheck
	for rows.Next() {
		var sc StatusCheck
		if err := rows.Scan(&sc.ID, &sc.ClientName, &sc.Timestamp); err != nil {
			return nil, err
		}
		sc.Timestamp = sc.Timestamp.UTC()
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertSession(ctx context.Context, cs ConversationSession) error {
	messages, err := json.Marshal(nonNilMessages(cs.Messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	metadata, err := json.Marshal(nonNilMetadata(cs.Metadata))
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_sessions (
			id, user_id, agent_id, room_name, start_time, end_time, duration, messages, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9::jsonb)`,
		cs.ID, cs.UserID, cs.AgentID, cs.RoomName, cs.StartTime, cs.EndTime, cs.Duration,
		string(messages), string(metadata))
	return err
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID string, m Message) (bool, error) {
	encoded, err := json.Marshal([]Message{m})
	if err != nil {
		return false, fmt.Errorf("encode message: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_sessions SET messages = messages || $2::jsonb WHERE id = $1`,
		sessionID, string(encoded))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) FindSession(ctx context.Context, sessionID string) (ConversationSession, bool, error) {
	var (
		cs       ConversationSession
		messages []byte
		metadata []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, agent_id, room_name, start_time, end_time, duration, messages, metadata
		FROM conversation_sessions WHERE id = $1`, sessionID).
		Scan(&cs.ID, &cs.UserID, &cs.AgentID, &cs.RoomName, &cs.StartTime, &cs.EndTime, &cs.Duration, &messages, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationSession{}, false, nil
	}
	if err != nil {
		return ConversationSession{}, false, err
	}

	if err := json.Unmarshal(messages, &cs.Messages); err != nil {
		return ConversationSession{}, false, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(metadata, &cs.Metadata); err != nil {
		return ConversationSession{}, false, fmt.Errorf("decode metadata: %w", err)
	}
	cs.StartTime = cs.StartTime.UTC()
	if cs.EndTime != nil {
		end := cs.EndTime.UTC()
		cs.EndTime = &end
	}
	return cs, true, nil
}

func (s *PostgresStore) SetSessionEnd(ctx context.Context, sessionID string, end time.Time, duration int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_sessions SET end_time = $2, duration = $3 WHERE id = $1`,
		sessionID, end, duration)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func nonNilMessages(m []Message) []Message {
	if m == nil {
		return []Message{}
	}
	return m
}

func nonNilMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
