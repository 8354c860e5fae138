// Package config loads process settings for the API server and the agent
// worker from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chriscow/lk-voice/pkg/agent"
	"github.com/chriscow/lk-voice/pkg/persona"
	"github.com/chriscow/lk-voice/pkg/session"
	"github.com/chriscow/lk-voice/pkg/token"
)

// Config contains all runtime settings.
type Config struct {
	BindAddr          string
	ShutdownTimeout   time.Duration
	MetricsNamespace  string
	WorkerMetricsAddr string

	StoreBackend string
	MongoURL     string
	DBName       string
	DatabaseURL  string

	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	AgentName        string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	LLMProvider    string
	TTSProvider    string
	STTProvider    string
	LLMModel       string
	TTSModel       string
	STTModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	TTSSpeed       float64

	MayaVoice  string
	MilesVoice string

	ListenMode    agent.ListenMode
	AckDelay      time.Duration
	HistoryWindow int
}

// Load reads an optional .env file, then the environment, and applies
// defaults. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8001"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "lkvoice"),
		WorkerMetricsAddr: trimmed("WORKER_METRICS_ADDR"),

		StoreBackend: strings.ToLower(envOrDefault("STORE_BACKEND", session.BackendMongo)),
		MongoURL:     envOrDefault("MONGO_URL", "mongodb://localhost:27017"),
		DBName:       envOrDefault("DB_NAME", "lkvoice"),
		DatabaseURL:  trimmed("DATABASE_URL"),

		LiveKitURL:       envOrDefault("LIVEKIT_URL", "ws://localhost:7880"),
		LiveKitAPIKey:    trimmed("LIVEKIT_API_KEY"),
		LiveKitAPISecret: trimmed("LIVEKIT_API_SECRET"),
		AgentName:        envOrDefault("AGENT_NAME", "voice-assistant"),

		OpenAIAPIKey:  envOrDefault("OPENAI_API_KEY", trimmed("EMERGENT_LLM_KEY")),
		OpenAIBaseURL: trimmed("OPENAI_BASE_URL"),
		GeminiAPIKey:  trimmed("GEMINI_API_KEY"),

		LLMProvider: strings.ToLower(envOrDefault("LLM_PROVIDER", "openai")),
		TTSProvider: strings.ToLower(envOrDefault("TTS_PROVIDER", "openai")),
		STTProvider: strings.ToLower(envOrDefault("STT_PROVIDER", "openai")),
		// Empty lets the provider pick its default model.
		LLMModel:    trimmed("LLM_MODEL"),
		TTSModel:    envOrDefault("TTS_MODEL", agent.DefaultTTSModel),
		STTModel:    envOrDefault("STT_MODEL", "whisper-1"),

		MayaVoice:  envOrDefault("MAYA_VOICE", persona.Get(persona.Maya).Voice),
		MilesVoice: envOrDefault("MILES_VOICE", persona.Get(persona.Miles).Voice),
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AckDelay, err = durationFromEnv("LISTEN_ACK_DELAY", agent.DefaultAckDelay); err != nil {
		return Config{}, err
	}
	if cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", agent.DefaultTemperature); err != nil {
		return Config{}, err
	}
	if cfg.TTSSpeed, err = floatFromEnv("TTS_SPEED", 1.0); err != nil {
		return Config{}, err
	}
	if cfg.LLMMaxTokens, err = intFromEnv("LLM_MAX_TOKENS", agent.DefaultMaxTokens); err != nil {
		return Config{}, err
	}
	if cfg.HistoryWindow, err = intFromEnv("HISTORY_WINDOW", agent.DefaultHistoryWindow); err != nil {
		return Config{}, err
	}
	if cfg.ListenMode, err = agent.ParseListenMode(os.Getenv("LISTEN_MODE")); err != nil {
		return Config{}, fmt.Errorf("LISTEN_MODE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case session.BackendMongo, session.BackendPostgres, session.BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of mongo|postgres|memory, got %q", c.StoreBackend)
	}
	if c.StoreBackend == session.BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if c.TTSSpeed < 0.25 || c.TTSSpeed > 4 {
		return fmt.Errorf("TTS_SPEED must be between 0.25 and 4")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive")
	}
	if c.AckDelay <= 0 {
		return fmt.Errorf("LISTEN_ACK_DELAY must be positive")
	}
	return nil
}

// ValidateWorker checks the settings a worker needs beyond Load's defaults.
func (c Config) ValidateWorker() error {
	var missing []string
	if c.LiveKitAPIKey == "" {
		missing = append(missing, "LIVEKIT_API_KEY")
	}
	if c.LiveKitAPISecret == "" {
		missing = append(missing, "LIVEKIT_API_SECRET")
	}
	for _, p := range []string{c.LLMProvider, c.TTSProvider, c.STTProvider} {
		if p == "openai" && c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
			break
		}
	}
	if c.LLMProvider == "gemini" && c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// StoreConfig returns the session store selection.
func (c Config) StoreConfig() session.StoreConfig {
	return session.StoreConfig{
		Backend:     c.StoreBackend,
		MongoURL:    c.MongoURL,
		DBName:      c.DBName,
		DatabaseURL: c.DatabaseURL,
	}
}

// Issuer returns a token issuer for the configured LiveKit project.
func (c Config) Issuer() *token.Issuer {
	return token.NewIssuer(c.LiveKitAPIKey, c.LiveKitAPISecret, c.LiveKitURL)
}

// ProviderOptions returns the plugin options for provider kind "llm", "tts"
// or "stt".
func (c Config) ProviderOptions(kind string) map[string]any {
	opts := map[string]any{}
	var provider string
	switch kind {
	case "llm":
		provider = c.LLMProvider
		if c.LLMModel != "" {
			opts["model"] = c.LLMModel
		}
	case "tts":
		provider = c.TTSProvider
		opts["model"] = c.TTSModel
		opts["speed"] = c.TTSSpeed
	case "stt":
		provider = c.STTProvider
		opts["model"] = c.STTModel
	}

	switch provider {
	case "openai":
		if c.OpenAIAPIKey != "" {
			opts["api_key"] = c.OpenAIAPIKey
		}
		if c.OpenAIBaseURL != "" {
			opts["base_url"] = c.OpenAIBaseURL
		}
	case "gemini":
		if c.GeminiAPIKey != "" {
			opts["api_key"] = c.GeminiAPIKey
		}
	}
	return opts
}

// AgentConfig returns the agent tuning taken from the environment. Providers,
// room and observer are filled in by the caller.
func (c Config) AgentConfig() agent.Config {
	temperature := float32(c.LLMTemperature)
	return agent.Config{
		ListenMode:    c.ListenMode,
		AckDelay:      c.AckDelay,
		HistoryWindow: c.HistoryWindow,
		MaxTokens:     c.LLMMaxTokens,
		Temperature:   &temperature,
		TTSModel:      c.TTSModel,
		TTSSpeed:      c.TTSSpeed,
	}
}

// Voices returns per-persona voice overrides.
func (c Config) Voices() map[persona.Kind]string {
	return map[persona.Kind]string{
		persona.Maya:  c.MayaVoice,
		persona.Miles: c.MilesVoice,
	}
}

func envOrDefault(key, fallback string) string {
	v := trimmed(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
