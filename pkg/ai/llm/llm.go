// Package llm defines the chat completion interface the voice agent uses to
// produce replies.
package llm

import (
	"context"

	"github.com/chriscow/lk-voice/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// MessageRole is the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// ChatRequest asks for the next assistant turn. A system message, if any, is
// first in Messages.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// ChatResponse is the assistant turn produced for a ChatRequest.
type ChatResponse struct {
	Message      Message
	TokensUsed   int
	FinishReason string
}

// LLM is a chat completion provider.
type LLM interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
