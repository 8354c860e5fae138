// Package stt defines the speech-to-text interface used to transcribe
// complete user utterances.
package stt

import (
	"context"
	"io"

	"github.com/chriscow/lk-voice/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// TranscribeRequest carries one encoded utterance. Filename names the
// container so providers can infer the format, for example "utterance.ogg".
type TranscribeRequest struct {
	Audio    io.Reader
	Filename string
	Language string
}

// Transcript is the recognized text of an utterance.
type Transcript struct {
	Text     string
	Language string
}

// STT transcribes whole utterances.
type STT interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcript, error)
}
