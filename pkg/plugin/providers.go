package plugin

import (
	"os"
	"strconv"

	"github.com/chriscow/lk-voice/pkg/ai/llm"
	"github.com/chriscow/lk-voice/pkg/ai/stt"
	"github.com/chriscow/lk-voice/pkg/ai/tts"
)

// NewLLM builds the named chat provider from the global registry.
func NewLLM(name string, cfg map[string]any) (llm.LLM, error) {
	return build[llm.LLM](globalRegistry, KindLLM, name, cfg)
}

// NewSTT builds the named transcription provider from the global registry.
func NewSTT(name string, cfg map[string]any) (stt.STT, error) {
	return build[stt.STT](globalRegistry, KindSTT, name, cfg)
}

// NewTTS builds the named speech provider from the global registry.
func NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	return build[tts.TTS](globalRegistry, KindTTS, name, cfg)
}

// String reads a string option, then the first non-empty env var, then def.
func String(cfg map[string]any, key, def string, envs ...string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	for _, env := range envs {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return def
}

// Float reads a numeric option. Strings are parsed so values can come
// straight from the environment.
func Float(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
