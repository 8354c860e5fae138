package fake

import (
	"context"
	"io"
	"sync"

	"github.com/chriscow/lk-voice/pkg/ai/stt"
)

// DefaultTranscript is used when no transcript is provided.
const DefaultTranscript = "This is a fake transcript from the fake STT provider."

// FakeSTT returns a fixed transcript for every utterance and remembers the
// size of each payload it was given.
type FakeSTT struct {
	mu         sync.Mutex
	transcript string
	err        error
	sizes      []int
}

// NewFakeSTT creates a fake provider with a fixed transcript.
func NewFakeSTT(transcript string) *FakeSTT {
	if transcript == "" {
		transcript = DefaultTranscript
	}
	return &FakeSTT{transcript: transcript}
}

// NewFailingSTT creates a fake provider whose every call fails with err.
func NewFailingSTT(err error) *FakeSTT {
	return &FakeSTT{err: err}
}

// Transcribe drains the audio and returns the configured transcript.
func (f *FakeSTT) Transcribe(ctx context.Context, req stt.TranscribeRequest) (stt.Transcript, error) {
	var n int64
	if req.Audio != nil {
		var err error
		n, err = io.Copy(io.Discard, req.Audio)
		if err != nil {
			return stt.Transcript{}, err
		}
	}

	f.mu.Lock()
	f.sizes = append(f.sizes, int(n))
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return stt.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}

	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	return stt.Transcript{Text: f.transcript, Language: lang}, nil
}

// Calls returns the audio payload size of every call so far.
func (f *FakeSTT) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.sizes...)
}
