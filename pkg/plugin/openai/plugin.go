package openai

import "github.com/chriscow/lk-voice/pkg/plugin"

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        providerName,
		Factory:     newOpenAILLM,
		Description: "OpenAI chat completions",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or OPENAI_API_KEY / EMERGENT_LLM_KEY)",
			"base_url": "API base URL (or OPENAI_BASE_URL)",
			"model":    DefaultChatModel,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        providerName,
		Factory:     newOpenAITTS,
		Description: "OpenAI text-to-speech, Ogg Opus output",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or OPENAI_API_KEY / EMERGENT_LLM_KEY)",
			"base_url": "API base URL (or OPENAI_BASE_URL)",
			"model":    DefaultSpeechModel,
			"voice":    DefaultVoice,
			"speed":    1.0,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        providerName,
		Factory:     newOpenAISTT,
		Description: "OpenAI Whisper transcription",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or OPENAI_API_KEY / EMERGENT_LLM_KEY)",
			"base_url": "API base URL (or OPENAI_BASE_URL)",
			"model":    "whisper-1",
			"language": "auto-detect when empty",
		},
	})
}
