package config

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/lk-voice/pkg/agent"
	"github.com/chriscow/lk-voice/pkg/persona"
	"github.com/chriscow/lk-voice/pkg/session"
)

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"WORKER_METRICS_ADDR",
		"STORE_BACKEND",
		"MONGO_URL",
		"DB_NAME",
		"DATABASE_URL",
		"LIVEKIT_URL",
		"LIVEKIT_API_KEY",
		"LIVEKIT_API_SECRET",
		"AGENT_NAME",
		"OPENAI_API_KEY",
		"EMERGENT_LLM_KEY",
		"OPENAI_BASE_URL",
		"GEMINI_API_KEY",
		"LLM_PROVIDER",
		"TTS_PROVIDER",
		"STT_PROVIDER",
		"LLM_MODEL",
		"TTS_MODEL",
		"STT_MODEL",
		"LLM_TEMPERATURE",
		"LLM_MAX_TOKENS",
		"TTS_SPEED",
		"MAYA_VOICE",
		"MILES_VOICE",
		"LISTEN_MODE",
		"LISTEN_ACK_DELAY",
		"HISTORY_WINDOW",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)

	cfg, err := Load()
	is.NoErr(err)

	is.Equal(cfg.BindAddr, ":8001")
	is.Equal(cfg.ShutdownTimeout, 15*time.Second)
	is.Equal(cfg.MetricsNamespace, "lkvoice")
	is.Equal(cfg.StoreBackend, session.BackendMongo)
	is.Equal(cfg.MongoURL, "mongodb://localhost:27017")
	is.Equal(cfg.DBName, "lkvoice")
	is.Equal(cfg.LiveKitURL, "ws://localhost:7880")
	is.Equal(cfg.AgentName, "voice-assistant")
	is.Equal(cfg.LLMProvider, "openai")
	is.Equal(cfg.LLMModel, "")
	is.Equal(cfg.TTSModel, "tts-1")
	is.Equal(cfg.STTModel, "whisper-1")
	is.Equal(cfg.LLMTemperature, 0.8)
	is.Equal(cfg.LLMMaxTokens, 150)
	is.Equal(cfg.TTSSpeed, 1.0)
	is.Equal(cfg.MayaVoice, "nova")
	is.Equal(cfg.MilesVoice, "onyx")
	is.Equal(cfg.ListenMode, agent.ListenTranscribe)
	is.Equal(cfg.AckDelay, 3*time.Second)
	is.Equal(cfg.HistoryWindow, 10)
}

func TestLoadOverrides(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/lk")
	t.Setenv("LISTEN_MODE", "acknowledge")
	t.Setenv("LISTEN_ACK_DELAY", "500ms")
	t.Setenv("HISTORY_WINDOW", "4")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("MILES_VOICE", "echo")

	cfg, err := Load()
	is.NoErr(err)
	is.Equal(cfg.BindAddr, ":9090")
	is.Equal(cfg.StoreBackend, session.BackendPostgres)
	is.Equal(cfg.ListenMode, agent.ListenAcknowledge)
	is.Equal(cfg.AckDelay, 500*time.Millisecond)
	is.Equal(cfg.HistoryWindow, 4)
	is.Equal(cfg.LLMTemperature, 0.2)
	is.Equal(cfg.Voices()[persona.Miles], "echo")
	is.Equal(cfg.StoreConfig().DatabaseURL, "postgres://localhost/lk")
}

func TestAgentConfig(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)

	cfg, err := Load()
	is.NoErr(err)
	ac := cfg.AgentConfig()
	is.True(ac.Temperature != nil)
	is.Equal(*ac.Temperature, float32(agent.DefaultTemperature))
	is.Equal(ac.MaxTokens, 150)
	is.Equal(ac.HistoryWindow, 10)
	is.Equal(ac.ListenMode, agent.ListenTranscribe)

	t.Setenv("LLM_TEMPERATURE", "0")
	cfg, err = Load()
	is.NoErr(err)
	ac = cfg.AgentConfig()
	is.True(ac.Temperature != nil)
	is.Equal(*ac.Temperature, float32(0)) // zero is a real setting, not "unset"
}

func TestLoadOpenAIKeyFallback(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)
	t.Setenv("EMERGENT_LLM_KEY", "sk-emergent")

	cfg, err := Load()
	is.NoErr(err)
	is.Equal(cfg.OpenAIAPIKey, "sk-emergent")

	t.Setenv("OPENAI_API_KEY", "sk-direct")
	cfg, err = Load()
	is.NoErr(err)
	is.Equal(cfg.OpenAIAPIKey, "sk-direct")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_BACKEND", "redis"},
		{"APP_SHUTDOWN_TIMEOUT", "soon"},
		{"LLM_TEMPERATURE", "hot"},
		{"LLM_TEMPERATURE", "3"},
		{"LLM_MAX_TOKENS", "0"},
		{"TTS_SPEED", "9"},
		{"HISTORY_WINDOW", "zero"},
		{"LISTEN_MODE", "mumble"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadPostgresNeedsURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("STORE_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestValidateWorker(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)

	cfg, err := Load()
	is.NoErr(err)
	is.True(cfg.ValidateWorker() != nil) // no credentials

	cfg.LiveKitAPIKey = "key"
	cfg.LiveKitAPISecret = "secret"
	is.True(cfg.ValidateWorker() != nil) // openai providers need a key

	cfg.OpenAIAPIKey = "sk-test"
	is.NoErr(cfg.ValidateWorker())

	cfg.LLMProvider = "gemini"
	is.True(cfg.ValidateWorker() != nil)
	cfg.GeminiAPIKey = "g-key"
	is.NoErr(cfg.ValidateWorker())
}

func TestProviderOptions(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "https://gateway.example.com/v1")
	t.Setenv("TTS_SPEED", "1.25")

	cfg, err := Load()
	is.NoErr(err)

	llmOpts := cfg.ProviderOptions("llm")
	is.Equal(llmOpts["api_key"], "sk-test")
	is.Equal(llmOpts["base_url"], "https://gateway.example.com/v1")
	_, hasModel := llmOpts["model"]
	is.True(!hasModel) // provider default

	ttsOpts := cfg.ProviderOptions("tts")
	is.Equal(ttsOpts["model"], "tts-1")
	is.Equal(ttsOpts["speed"], 1.25)

	cfg.LLMProvider = "gemini"
	cfg.GeminiAPIKey = "g-key"
	cfg.LLMModel = "gemini-2.5-pro"
	gem := cfg.ProviderOptions("llm")
	is.Equal(gem["api_key"], "g-key")
	is.Equal(gem["model"], "gemini-2.5-pro")
	_, hasBase := gem["base_url"]
	is.True(!hasBase)
}

func TestIssuerHasFixedTTL(t *testing.T) {
	is := is.New(t)
	setCoreEnvEmpty(t)
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")

	cfg, err := Load()
	is.NoErr(err)
	iss := cfg.Issuer()
	is.Equal(iss.TTL, 2*time.Hour)
	is.Equal(iss.URL, "ws://localhost:7880")
}
