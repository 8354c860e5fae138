// Package fake registers the in-memory providers so a worker can run end to
// end without network access.
package fake

import (
	llmfake "github.com/chriscow/lk-voice/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/lk-voice/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/lk-voice/pkg/ai/tts/fake"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

func newFakeSTT(cfg map[string]any) (any, error) {
	return sttfake.NewFakeSTT(plugin.String(cfg, "transcript", sttfake.DefaultTranscript)), nil
}

func newFakeTTS(map[string]any) (any, error) {
	return ttsfake.NewFakeTTS(), nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	switch r := cfg["responses"].(type) {
	case []string:
		return llmfake.NewFakeLLM(r...), nil
	case string:
		return llmfake.NewFakeLLM(r), nil
	}
	return llmfake.NewFakeLLM(
		"This is a fake LLM response",
		"I'm a test AI assistant",
		"How can I help you today?",
	), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Fixed transcript for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{"transcript": sttfake.DefaultTranscript},
	})
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Silent Ogg Opus sized to the input text",
		Version:     "1.0.0",
	})
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Canned responses for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{"responses": "[]string of canned replies"},
	})
}
