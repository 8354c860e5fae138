package openai

import (
	"context"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/lk-voice/pkg/ai/tts"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

const (
	DefaultSpeechModel = "tts-1"
	DefaultVoice       = "nova"
)

// SpeechTTS implements tts.TTS with the speech API. Responses are requested
// as Ogg Opus so they can be written to a LiveKit track without decoding.
type SpeechTTS struct {
	client *openai.Client
	model  string
	voice  string
	speed  float64
}

func newOpenAITTS(cfg map[string]any) (any, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &SpeechTTS{
		client: client,
		model:  plugin.String(cfg, "model", DefaultSpeechModel),
		voice:  plugin.String(cfg, "voice", DefaultVoice),
		speed:  plugin.Float(cfg, "speed", 1.0),
	}, nil
}

// Synthesize starts a speech request and returns the streaming body.
func (o *SpeechTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (io.ReadCloser, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}
	speed := req.Speed
	if speed <= 0 {
		speed = o.speed
	}

	slog.Debug("OpenAI speech request",
		slog.String("model", model),
		slog.String("voice", voice),
		slog.Int("chars", len(req.Text)))

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatOpus,
		Speed:          speed,
	})
	if err != nil {
		return nil, classify("speech", err)
	}
	return resp, nil
}
