// Package session holds the conversation session data model and the
// persistence operations the HTTP API exposes over it.
package session

import "time"

// MessageTypeVoice is the message type used when a caller does not name one.
const MessageTypeVoice = "voice"

// StatusListLimit bounds the number of status checks returned by a listing.
const StatusListLimit = 1000

// StatusCheck is a liveness record posted by a client.
type StatusCheck struct {
	ID         string    `json:"id" bson:"id"`
	ClientName string    `json:"client_name" bson:"client_name"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// Message is one utterance appended to a session.
type Message struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Sender    string    `json:"sender" bson:"sender"`
	Content   string    `json:"content" bson:"content"`
	Type      string    `json:"type" bson:"type"`
	Duration  *int64    `json:"duration" bson:"duration"`
}

// ConversationSession is the persisted record of one voice conversation.
// EndTime and Duration stay nil until the session is ended.
type ConversationSession struct {
	ID        string         `json:"id" bson:"id"`
	UserID    string         `json:"user_id" bson:"user_id"`
	AgentID   string         `json:"agent_id" bson:"agent_id"`
	RoomName  string         `json:"room_name" bson:"room_name"`
	StartTime time.Time      `json:"start_time" bson:"start_time"`
	EndTime   *time.Time     `json:"end_time" bson:"end_time"`
	Duration  *int64         `json:"duration" bson:"duration"`
	Messages  []Message      `json:"messages" bson:"messages"`
	Metadata  map[string]any `json:"metadata" bson:"metadata"`

	// StoreID is the backend's native record id, set only by stores that
	// have one (the MongoDB ObjectID in hex).
	StoreID string `json:"_id,omitempty" bson:"-"`
}

// SessionCreate carries the caller supplied fields of a new session.
type SessionCreate struct {
	UserID   string
	AgentID  string
	Metadata map[string]any
}

// MessageAdd carries the caller supplied fields of a new message.
type MessageAdd struct {
	Sender   string
	Content  string
	Type     string
	Duration *int64
}
