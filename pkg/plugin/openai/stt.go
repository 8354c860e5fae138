package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/ai/stt"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

// WhisperSTT implements stt.STT with the transcriptions API.
type WhisperSTT struct {
	client   *openai.Client
	model    string
	language string
}

func newOpenAISTT(cfg map[string]any) (any, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &WhisperSTT{
		client:   client,
		model:    plugin.String(cfg, "model", openai.Whisper1),
		language: plugin.String(cfg, "language", ""),
	}, nil
}

// Transcribe uploads one utterance. An empty transcript is reported as
// ai.ErrEmptyResponse so callers can skip the turn.
func (w *WhisperSTT) Transcribe(ctx context.Context, req stt.TranscribeRequest) (stt.Transcript, error) {
	if req.Audio == nil {
		return stt.Transcript{}, fmt.Errorf("%s transcribe: no audio", providerName)
	}

	filename := req.Filename
	if filename == "" {
		filename = "utterance.ogg"
	}
	language := req.Language
	if language == "" {
		language = w.language
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   req.Audio,
		FilePath: filename,
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return stt.Transcript{}, classify("transcribe", err)
	}

	text := strings.TrimSpace(resp.Text)
	slog.Debug("Whisper transcription",
		slog.String("model", w.model),
		slog.Int("chars", len(text)),
		slog.Duration("duration", time.Since(start)))

	if text == "" {
		return stt.Transcript{}, fmt.Errorf("%s transcribe: %w", providerName, ai.ErrEmptyResponse)
	}
	if resp.Language != "" {
		language = resp.Language
	}
	return stt.Transcript{Text: text, Language: language}, nil
}
