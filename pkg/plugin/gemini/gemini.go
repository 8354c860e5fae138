// Package gemini registers a Google Gemini chat provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/ai/llm"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

const (
	providerName = "gemini"
	DefaultModel = "gemini-2.0-flash"
)

var ErrMissingAPIKey = errors.New("Gemini API key is required (set GEMINI_API_KEY or provide api_key in config)")

// LLM implements llm.LLM with GenerateContent.
type LLM struct {
	client *genai.Client
	model  string
}

// New creates a Gemini chat provider. baseURL may be empty.
func New(ctx context.Context, apiKey, model, baseURL string) (*LLM, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &LLM{client: client, model: model}, nil
}

func newGeminiLLM(cfg map[string]any) (any, error) {
	return New(context.Background(),
		plugin.String(cfg, "api_key", "", "GEMINI_API_KEY", "GOOGLE_API_KEY"),
		plugin.String(cfg, "model", DefaultModel),
		plugin.String(cfg, "base_url", ""))
}

// Chat maps system messages to the system instruction and the remaining
// turns to user and model contents.
func (g *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()
	system, contents := toContents(req.Messages)

	conf := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		conf.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system != "" {
		conf.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, conf)
	if err != nil {
		slog.Error("Gemini generate content failed",
			slog.String("model", g.model),
			slog.String("error", err.Error()))
		return llm.ChatResponse{}, classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return llm.ChatResponse{}, fmt.Errorf("%s chat: %w", providerName, ai.ErrEmptyResponse)
	}

	out := llm.ChatResponse{
		Message: llm.Message{Role: llm.RoleAssistant, Content: text},
	}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = strings.ToLower(string(resp.Candidates[0].FinishReason))
	}

	slog.Debug("Gemini chat completion",
		slog.String("model", g.model),
		slog.Int("tokens", out.TokensUsed),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

func toContents(msgs []llm.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s chat: %w", providerName, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.ClassifyStatus(providerName, "chat", apiErr.Code, err)
	}
	return ai.NewRecoverableError(providerName, "chat", err)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        providerName,
		Factory:     newGeminiLLM,
		Description: "Google Gemini chat via the Gemini API",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "Gemini API key (or GEMINI_API_KEY)",
			"model":    DefaultModel,
			"base_url": "API base URL override",
		},
	})
}
