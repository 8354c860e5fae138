// Package agent runs one persona in one LiveKit room. It greets the room,
// answers text data messages and spoken utterances through the LLM, and
// speaks every reply on its own audio track.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/lk-voice/pkg/ai/llm"
	"github.com/chriscow/lk-voice/pkg/ai/stt"
	"github.com/chriscow/lk-voice/pkg/ai/tts"
	"github.com/chriscow/lk-voice/pkg/ai/vad"
	"github.com/chriscow/lk-voice/pkg/job"
	"github.com/chriscow/lk-voice/pkg/persona"
	"github.com/chriscow/lk-voice/pkg/voice"
)

const (
	// FallbackResponse is spoken when the LLM fails.
	FallbackResponse = "I'm sorry, I'm having trouble responding right now."

	// AckUtterance stands in for the user's words in acknowledge mode.
	AckUtterance = "The user is speaking to me (audio detected)"

	// TrackName is the name of the agent's published audio track.
	TrackName = "agent-voice"

	DefaultAckDelay      = 3 * time.Second
	DefaultHistoryWindow = 10
	DefaultMaxTokens     = 150
	DefaultTemperature   = 0.8
	DefaultTTSModel      = "tts-1"
)

var (
	ErrNotConnected  = errors.New("agent could not connect to the room")
	ErrMissingRoom   = errors.New("room is required")
	ErrMissingLLM    = errors.New("LLM is required")
	ErrMissingTTS    = errors.New("TTS is required")
	ErrMissingSTT    = errors.New("STT is required in transcribe mode")
	ErrBadListenMode = errors.New("unknown listen mode")
)

// State is the agent's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateListening
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnected:
		return "Connected"
	case StateListening:
		return "Listening"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// ListenMode selects what the agent does with a subscribed audio track.
type ListenMode string

const (
	// ListenTranscribe segments speech, transcribes each utterance and
	// answers it.
	ListenTranscribe ListenMode = "transcribe"

	// ListenAcknowledge waits AckDelay after the track appears and answers
	// AckUtterance once.
	ListenAcknowledge ListenMode = "acknowledge"
)

// ParseListenMode accepts "transcribe" or "acknowledge". Empty means
// transcribe.
func ParseListenMode(s string) (ListenMode, error) {
	switch ListenMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ListenTranscribe:
		return ListenTranscribe, nil
	case ListenAcknowledge:
		return ListenAcknowledge, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadListenMode, s)
}

// Trigger labels what caused a response.
type Trigger string

const (
	TriggerText  Trigger = "text"
	TriggerAudio Trigger = "audio"
)

// Player plays an Ogg Opus stream into the room.
type Player interface {
	Play(ctx context.Context, r io.Reader) (time.Duration, error)
}

// Room is the part of a LiveKit room the agent uses.
type Room interface {
	Name() string
	Connect() error
	Disconnect()
	PublishData(data []byte) error
	PublishAudio(trackName string) (Player, error)
	EventStream() <-chan *job.Event
}

// Observer receives agent metrics.
type Observer interface {
	StateChanged(s State)
	Responded(trigger Trigger, latency time.Duration, degraded bool)
	UtteranceDetected()
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)                     {}
func (nopObserver) Responded(Trigger, time.Duration, bool) {}
func (nopObserver) UtteranceDetected()                     {}

// Config wires an agent. Zero values take the defaults above.
type Config struct {
	Room Room
	LLM  llm.LLM
	TTS  tts.TTS
	STT  stt.STT

	// Persona defaults to persona.Select(Room.Name()).
	Persona *persona.Persona

	ListenMode    ListenMode
	AckDelay      time.Duration
	HistoryWindow int
	MaxTokens     int
	TTSModel      string
	TTSSpeed      float64
	Segmenter     vad.Config

	// Temperature is sent as given, zero included. Nil means
	// DefaultTemperature.
	Temperature *float32

	// Gate defaults to a gate that drops captured audio while speaking.
	Gate     voice.AudioGate
	Observer Observer
	Logger   *slog.Logger
}

// VoiceAgent is a running agent. Create with New and start with Run.
type VoiceAgent struct {
	cfg     Config
	persona persona.Persona
	room    Room
	gate    voice.AudioGate
	obs     Observer
	logger  *slog.Logger

	state  atomic.Int32
	player Player

	// mu guards history. Concurrent responses may still interleave their
	// turns.
	mu      sync.Mutex
	history []llm.Message

	wg sync.WaitGroup
}

// New validates cfg and creates an idle agent.
func New(cfg Config) (*VoiceAgent, error) {
	if cfg.Room == nil {
		return nil, ErrMissingRoom
	}
	if cfg.LLM == nil {
		return nil, ErrMissingLLM
	}
	if cfg.TTS == nil {
		return nil, ErrMissingTTS
	}
	if cfg.ListenMode == "" {
		cfg.ListenMode = ListenTranscribe
	}
	if _, err := ParseListenMode(string(cfg.ListenMode)); err != nil {
		return nil, err
	}
	if cfg.ListenMode == ListenTranscribe && cfg.STT == nil {
		return nil, ErrMissingSTT
	}
	if cfg.AckDelay <= 0 {
		cfg.AckDelay = DefaultAckDelay
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == nil {
		t := float32(DefaultTemperature)
		cfg.Temperature = &t
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.TTSSpeed <= 0 {
		cfg.TTSSpeed = 1.0
	}

	p := persona.Select(cfg.Room.Name())
	if cfg.Persona != nil {
		p = *cfg.Persona
	}

	a := &VoiceAgent{
		cfg:     cfg,
		persona: p,
		room:    cfg.Room,
		gate:    cfg.Gate,
		obs:     cfg.Observer,
		logger:  cfg.Logger,
	}
	if a.gate == nil {
		a.gate = voice.NewAudioGate()
	}
	if a.obs == nil {
		a.obs = nopObserver{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With(
		slog.String("room_name", cfg.Room.Name()),
		slog.String("persona", p.Name))

	a.setState(StateIdle)
	return a, nil
}

// State returns the current lifecycle state.
func (a *VoiceAgent) State() State {
	return State(a.state.Load())
}

// Persona returns the persona this agent speaks as.
func (a *VoiceAgent) Persona() persona.Persona {
	return a.persona
}

// History returns a copy of the rolling conversation history.
func (a *VoiceAgent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Message(nil), a.history...)
}

func (a *VoiceAgent) setState(s State) {
	old := State(a.state.Swap(int32(s)))
	a.obs.StateChanged(s)
	a.logger.Debug("Agent state", slog.String("from", old.String()), slog.String("to", s.String()))
}

// Run connects, greets and serves room events until the room disconnects or
// ctx ends. It returns an error only when the room cannot be joined.
func (a *VoiceAgent) Run(ctx context.Context) error {
	a.logger.Info("Voice agent starting")

	if err := a.room.Connect(); err != nil {
		a.setState(StateClosed)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	a.setState(StateConnected)
	a.logger.Info("Connected to room")

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.room.Disconnect()
		a.wg.Wait()
		a.setState(StateClosed)
		a.logger.Info("Voice agent stopped")
	}()

	player, err := a.room.PublishAudio(TrackName)
	if err != nil {
		a.logger.Error("Failed to publish audio track, replies will be text only",
			slog.String("error", err.Error()))
	} else {
		a.player = player
	}

	a.emit(ctx, a.persona.Greeting())
	a.setState(StateListening)
	a.logger.Info("Ready and listening")

	events := a.room.EventStream()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok || e.Type == job.EventDisconnected {
				return nil
			}
			a.dispatch(ctx, e)
		}
	}
}

func (a *VoiceAgent) dispatch(ctx context.Context, e *job.Event) {
	switch e.Type {
	case job.EventTrackSubscribed:
		if !e.IsAudioTrack() || e.Packets == nil {
			return
		}
		a.logger.Info("Subscribed to audio track", slog.String("participant", e.Identity()))
		a.spawn(func() { a.listen(ctx, e) })

	case job.EventDataReceived:
		a.spawn(func() { a.handleData(ctx, e) })

	case job.EventParticipantConnected, job.EventParticipantDisconnected:
		a.logger.Info("Participant event",
			slog.String("event", string(e.Type)),
			slog.String("participant", e.Identity()))
	}
}

func (a *VoiceAgent) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}
