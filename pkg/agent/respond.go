package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/ai/llm"
	"github.com/chriscow/lk-voice/pkg/ai/tts"
	"github.com/chriscow/lk-voice/pkg/job"
)

func (a *VoiceAgent) handleData(ctx context.Context, e *job.Event) {
	if !utf8.Valid(e.Data) {
		a.logger.Warn("Dropping data message that is not UTF-8",
			slog.String("participant", e.Identity()),
			slog.Int("bytes", len(e.Data)))
		return
	}
	if len(e.Data) == 0 {
		return
	}
	text := string(e.Data)

	a.logger.Info("Received text message",
		slog.String("participant", e.Identity()),
		slog.String("message", text))
	a.answer(ctx, text, TriggerText)
}

// answer generates a reply to text and emits it.
func (a *VoiceAgent) answer(ctx context.Context, text string, trigger Trigger) {
	start := time.Now()
	reply, degraded := a.respond(ctx, text)
	a.obs.Responded(trigger, time.Since(start), degraded)
	a.emit(ctx, reply)
}

// respond appends the user turn, trims history to the window and asks the
// LLM for the next turn. Any provider failure yields FallbackResponse, which
// is not recorded in history.
func (a *VoiceAgent) respond(ctx context.Context, text string) (reply string, degraded bool) {
	a.mu.Lock()
	a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: text})
	if n := len(a.history); n > a.cfg.HistoryWindow {
		a.history = append([]llm.Message(nil), a.history[n-a.cfg.HistoryWindow:]...)
	}
	messages := make([]llm.Message, 0, len(a.history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.persona.Instructions})
	messages = append(messages, a.history...)
	a.mu.Unlock()

	resp, err := a.cfg.LLM.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: *a.cfg.Temperature,
	})
	if err == nil && strings.TrimSpace(resp.Message.Content) == "" {
		err = ai.ErrEmptyResponse
	}
	if err != nil {
		a.logger.Error("Error generating response",
			slog.String("error", err.Error()),
			slog.Bool("recoverable", ai.IsRecoverable(err)))
		return FallbackResponse, true
	}

	reply = resp.Message.Content
	a.mu.Lock()
	a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: reply})
	a.mu.Unlock()
	return reply, false
}

// emit sends text as a reliable data message and then speaks it. A failed
// send does not stop the audio.
func (a *VoiceAgent) emit(ctx context.Context, text string) {
	if err := a.room.PublishData([]byte(text)); err != nil {
		a.logger.Error("Error sending message", slog.String("error", err.Error()))
	} else {
		a.logger.Info("Sent message", slog.String("message", text))
	}
	a.speak(ctx, text)
}

func (a *VoiceAgent) speak(ctx context.Context, text string) {
	if a.player == nil {
		return
	}

	body, err := a.cfg.TTS.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  text,
		Voice: a.persona.Voice,
		Model: a.cfg.TTSModel,
		Speed: a.cfg.TTSSpeed,
	})
	if err != nil {
		a.logger.Error("Error in text-to-speech", slog.String("error", err.Error()))
		return
	}
	defer body.Close()

	release := a.gate.Hold()
	defer release()

	played, err := a.player.Play(ctx, body)
	if err != nil && ctx.Err() == nil {
		a.logger.Error("Error playing audio",
			slog.String("error", err.Error()),
			slog.Duration("played", played))
		return
	}
	a.logger.Debug("Played audio response", slog.Duration("duration", played))
}
