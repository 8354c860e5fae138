// Package tts defines the text-to-speech interface the agent speaks through.
package tts

import (
	"context"
	"io"

	"github.com/chriscow/lk-voice/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// SynthesizeRequest describes one utterance to speak. Zero Model and Speed
// leave the provider defaults in place.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Model string
	Speed float64
}

// TTS synthesizes speech. The returned stream is Ogg encapsulated Opus at
// 48 kHz and must be closed by the caller.
type TTS interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (io.ReadCloser, error)
}
