package fake

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/chriscow/lk-voice/pkg/ai/tts"
	"github.com/chriscow/lk-voice/pkg/rtc"
)

// PerCharacter is how much silent audio the fake produces per input rune.
const PerCharacter = 60 * time.Millisecond

// FakeTTS synthesizes silence whose length tracks the input text and records
// every request.
type FakeTTS struct {
	mu       sync.Mutex
	err      error
	requests []tts.SynthesizeRequest
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// NewFailingTTS creates a fake provider whose every call fails with err.
func NewFailingTTS(err error) *FakeTTS {
	return &FakeTTS{err: err}
}

// Synthesize returns an Ogg Opus stream of silence.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := time.Duration(len([]rune(req.Text))) * PerCharacter
	if d < 200*time.Millisecond {
		d = 200 * time.Millisecond
	}
	data, err := rtc.SilentOgg(d)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Requests returns a copy of every request seen so far.
func (f *FakeTTS) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.SynthesizeRequest(nil), f.requests...)
}
