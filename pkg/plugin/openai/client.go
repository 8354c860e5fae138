// Package openai registers OpenAI-backed chat, speech and transcription
// providers. Any OpenAI compatible endpoint works through base_url.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

const providerName = "openai"

// ErrMissingAPIKey is returned by the factories when no key is configured.
var ErrMissingAPIKey = errors.New("OpenAI API key is required (set OPENAI_API_KEY or provide api_key in config)")

// newClient builds a client from the api_key and base_url options, falling
// back to OPENAI_API_KEY, EMERGENT_LLM_KEY and OPENAI_BASE_URL.
func newClient(cfg map[string]any) (*openai.Client, error) {
	key := plugin.String(cfg, "api_key", "", "OPENAI_API_KEY", "EMERGENT_LLM_KEY")
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	conf := openai.DefaultConfig(key)
	if base := plugin.String(cfg, "base_url", "", "OPENAI_BASE_URL"); base != "" {
		conf.BaseURL = base
	}
	return openai.NewClientWithConfig(conf), nil
}

// classify wraps a client error as recoverable or fatal. Errors without an
// HTTP status are network failures and count as recoverable; cancellation is
// passed through untouched.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", providerName, op, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ai.ClassifyStatus(providerName, op, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ai.ClassifyStatus(providerName, op, reqErr.HTTPStatusCode, err)
	}
	return ai.NewRecoverableError(providerName, op, err)
}
