package openai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/ai/llm"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

// DefaultChatModel is used when no model option is set.
const DefaultChatModel = "gpt-4o-mini"

// ChatLLM implements llm.LLM with the chat completions API.
type ChatLLM struct {
	client *openai.Client
	model  string
}

func newOpenAILLM(cfg map[string]any) (any, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ChatLLM{
		client: client,
		model:  plugin.String(cfg, "model", DefaultChatModel),
	}, nil
}

// Chat sends the conversation and returns the first choice.
func (o *ChatLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		slog.Error("OpenAI chat completion failed",
			slog.String("model", o.model),
			slog.String("error", err.Error()))
		return llm.ChatResponse{}, classify("chat", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return llm.ChatResponse{}, fmt.Errorf("%s chat: %w", providerName, ai.ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	slog.Debug("OpenAI chat completion",
		slog.String("model", o.model),
		slog.Int("messages", len(req.Messages)),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)))

	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: choice.Message.Content,
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}
