package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chriscow/lk-voice/pkg/ai/llm"
)

// FakeLLM answers from a fixed list of responses and records every request.
type FakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []llm.ChatRequest
}

// NewFakeLLM creates a fake provider that cycles through responses.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{"This is a fake response from the fake LLM provider."}
	}
	return &FakeLLM{responses: responses}
}

// NewFailingLLM creates a fake provider whose every call fails with err.
func NewFailingLLM(err error) *FakeLLM {
	return &FakeLLM{err: err}
}

// Chat records req and returns the next canned response. The reply echoes
// the last user message so callers can tell turns apart.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, cloneRequest(req))
	if f.err != nil {
		return llm.ChatResponse{}, f.err
	}
	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}

	response := f.responses[(len(f.requests)-1)%len(f.responses)]
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == llm.RoleUser {
		response = fmt.Sprintf("%s (You said: %s)", response, req.Messages[n-1].Content)
	}

	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: response},
		TokensUsed:   len(strings.Fields(response)) + 10,
		FinishReason: "stop",
	}, nil
}

// Requests returns a copy of every request seen so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func cloneRequest(req llm.ChatRequest) llm.ChatRequest {
	req.Messages = append([]llm.Message(nil), req.Messages...)
	return req
}
