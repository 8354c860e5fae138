package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/matryer/is"
	"github.com/pion/rtp"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/ai/llm"
	llmfake "github.com/chriscow/lk-voice/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/lk-voice/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/lk-voice/pkg/ai/tts/fake"
	"github.com/chriscow/lk-voice/pkg/job"
	"github.com/chriscow/lk-voice/pkg/persona"
	"github.com/chriscow/lk-voice/pkg/voice"
)

type fakePlayer struct {
	gate  voice.AudioGate
	mu    sync.Mutex
	plays int
	gated []bool
}

func (p *fakePlayer) Play(ctx context.Context, r io.Reader) (time.Duration, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	if p.gate != nil {
		p.gated = append(p.gated, p.gate.ShouldDiscardAudio())
	}
	return 100 * time.Millisecond, nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

type fakeRoom struct {
	name       string
	events     chan *job.Event
	connectErr error
	publishErr error
	player     *fakePlayer

	mu           sync.Mutex
	sent         []string
	disconnected atomic.Bool
}

func newFakeRoom(name string) *fakeRoom {
	return &fakeRoom{
		name:   name,
		events: make(chan *job.Event, 16),
		player: &fakePlayer{},
	}
}

func (r *fakeRoom) Name() string   { return r.name }
func (r *fakeRoom) Connect() error { return r.connectErr }
func (r *fakeRoom) Disconnect()    { r.disconnected.Store(true) }

func (r *fakeRoom) PublishData(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, string(data))
	return nil
}

func (r *fakeRoom) PublishAudio(string) (Player, error) {
	if r.publishErr != nil {
		return nil, r.publishErr
	}
	return r.player, nil
}

func (r *fakeRoom) EventStream() <-chan *job.Event { return r.events }

func (r *fakeRoom) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type fakeObserver struct {
	mu         sync.Mutex
	states     []State
	responses  map[Trigger]int
	degraded   int
	utterances int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{responses: map[Trigger]int{}}
}

func (o *fakeObserver) StateChanged(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *fakeObserver) Responded(t Trigger, _ time.Duration, degraded bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses[t]++
	if degraded {
		o.degraded++
	}
}

func (o *fakeObserver) UtteranceDetected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.utterances++
}

// packetList replays packets and then reports the track as ended.
type packetList struct {
	mu      sync.Mutex
	packets []*rtp.Packet
}

func (l *packetList) ReadPacket() (*rtp.Packet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.packets) == 0 {
		return nil, io.EOF
	}
	p := l.packets[0]
	l.packets = l.packets[1:]
	return p, nil
}

func voicedPackets(n int) []*rtp.Packet {
	out := make([]*rtp.Packet, n)
	for i := range out {
		payload := make([]byte, 80)
		payload[0] = 0xF8
		out[i] = &rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: uint16(i), Timestamp: uint32(i * 960)},
			Payload: payload,
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	room  *fakeRoom
	llm   *llmfake.FakeLLM
	tts   *ttsfake.FakeTTS
	stt   *sttfake.FakeSTT
	obs   *fakeObserver
	agent *VoiceAgent
	done  chan error
	stop  context.CancelFunc
}

func start(t *testing.T, room *fakeRoom, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		room: room,
		llm:  llmfake.NewFakeLLM("Sure thing"),
		tts:  ttsfake.NewFakeTTS(),
		stt:  sttfake.NewFakeSTT("what's the weather"),
		obs:  newFakeObserver(),
		done: make(chan error, 1),
	}
	cfg := Config{
		Room:     room,
		LLM:      h.llm,
		TTS:      h.tts,
		STT:      h.stt,
		Observer: h.obs,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.agent = a
	room.player.gate = a.gate

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	go func() { h.done <- a.Run(ctx) }()

	waitFor(t, "greeting", func() bool { return len(room.messages()) >= 1 })
	waitFor(t, "listening", func() bool { return a.State() == StateListening })

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(3 * time.Second):
			t.Error("agent did not stop")
		}
	})
	return h
}

func (h *harness) sendText(text string) {
	h.room.events <- job.NewEvent(job.EventDataReceived).
		WithParticipant(&livekit.ParticipantInfo{Identity: "user-1"}).
		WithData([]byte(text), "")
}

func TestNew_Validation(t *testing.T) {
	room := newFakeRoom("room-a")
	model := llmfake.NewFakeLLM()
	speech := ttsfake.NewFakeTTS()

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing room", Config{LLM: model, TTS: speech}, ErrMissingRoom},
		{"missing llm", Config{Room: room, TTS: speech}, ErrMissingLLM},
		{"missing tts", Config{Room: room, LLM: model}, ErrMissingTTS},
		{"transcribe needs stt", Config{Room: room, LLM: model, TTS: speech}, ErrMissingSTT},
		{"bad mode", Config{Room: room, LLM: model, TTS: speech, ListenMode: "shout"}, ErrBadListenMode},
		{"acknowledge without stt", Config{Room: room, LLM: model, TTS: speech, ListenMode: ListenAcknowledge}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			a, err := New(tt.cfg)
			if tt.want != nil {
				is.True(errors.Is(err, tt.want))
				return
			}
			is.NoErr(err)
			is.Equal(a.State(), StateIdle)
		})
	}
}

func TestParseListenMode(t *testing.T) {
	is := is.New(t)
	for in, want := range map[string]ListenMode{
		"":            ListenTranscribe,
		"transcribe":  ListenTranscribe,
		"Acknowledge": ListenAcknowledge,
	} {
		got, err := ParseListenMode(in)
		is.NoErr(err)
		is.Equal(got, want)
	}
	_, err := ParseListenMode("yell")
	is.True(errors.Is(err, ErrBadListenMode))
}

func TestStateString(t *testing.T) {
	is := is.New(t)
	is.Equal(StateIdle.String(), "Idle")
	is.Equal(StateListening.String(), "Listening")
	is.Equal(State(42).String(), "Unknown(42)")
}

func TestRun_GreetsAsSelectedPersona(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("Room-MILES-42"), nil)

	is.Equal(h.agent.Persona().Kind, persona.Miles)
	is.Equal(h.room.messages()[0], "Hi! I'm Miles. How can I help you today?")

	waitFor(t, "greeting audio", func() bool { return h.room.player.count() == 1 })
	reqs := h.tts.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Voice, "onyx")
	is.Equal(reqs[0].Model, DefaultTTSModel)
	is.Equal(reqs[0].Speed, 1.0)

	// the greeting is not part of the conversation
	is.Equal(len(h.agent.History()), 0)
}

func TestRun_ZeroTemperatureIsKept(t *testing.T) {
	is := is.New(t)
	zero := float32(0)
	h := start(t, newFakeRoom("room-a"), func(c *Config) { c.Temperature = &zero })

	h.sendText("hello")
	waitFor(t, "reply", func() bool { return len(h.llm.Requests()) == 1 })
	is.Equal(h.llm.Requests()[0].Temperature, float32(0))
}

func TestRun_DefaultsToMaya(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-1234"), nil)
	is.Equal(h.room.messages()[0], "Hi! I'm Maya. How can I help you today?")
}

func TestRun_AnswersTextMessages(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), nil)

	h.sendText("hello")
	waitFor(t, "reply", func() bool { return len(h.room.messages()) == 2 })

	is.Equal(h.room.messages()[1], "Sure thing (You said: hello)")
	waitFor(t, "reply audio", func() bool { return h.room.player.count() == 2 })

	req := h.llm.Requests()[0]
	is.Equal(req.MaxTokens, DefaultMaxTokens)
	is.Equal(req.Temperature, float32(DefaultTemperature))
	is.Equal(len(req.Messages), 2)
	is.Equal(req.Messages[0].Role, llm.RoleSystem)
	is.True(strings.Contains(req.Messages[0].Content, "Maya"))
	is.Equal(req.Messages[1].Content, "hello")

	hist := h.agent.History()
	is.Equal(len(hist), 2)
	is.Equal(hist[1].Role, llm.RoleAssistant)

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	is.Equal(h.obs.responses[TriggerText], 1)
}

func TestRun_DropsInvalidUTF8(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), nil)

	h.room.events <- job.NewEvent(job.EventDataReceived).WithData([]byte{0xff, 0xfe, 0xfd}, "")
	h.sendText("")
	h.sendText("real question")

	waitFor(t, "reply", func() bool { return len(h.room.messages()) == 2 })
	time.Sleep(50 * time.Millisecond)
	is.Equal(len(h.llm.Requests()), 1)
	is.Equal(len(h.room.messages()), 2)
}

func TestRun_AnswersWhitespaceMessage(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), nil)

	h.sendText("   ")
	waitFor(t, "reply", func() bool { return len(h.room.messages()) == 2 })

	reqs := h.llm.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Messages[1].Content, "   ")
}

func TestRun_FallbackOnLLMFailure(t *testing.T) {
	is := is.New(t)
	failing := llmfake.NewFailingLLM(ai.NewRecoverableError("test", "chat", errors.New("rate limited")))
	h := start(t, newFakeRoom("room-a"), func(c *Config) { c.LLM = failing })

	h.sendText("hello")
	waitFor(t, "fallback", func() bool { return len(h.room.messages()) == 2 })
	is.Equal(h.room.messages()[1], FallbackResponse)

	hist := h.agent.History()
	is.Equal(len(hist), 1) // user turn kept, no assistant turn
	is.Equal(hist[0].Content, "hello")

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	is.Equal(h.obs.degraded, 1)
}

func TestRun_HistoryWindow(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), func(c *Config) { c.HistoryWindow = 4 })

	for i := 0; i < 5; i++ {
		h.sendText("message")
		want := i + 2
		waitFor(t, "reply", func() bool { return len(h.room.messages()) == want })
	}

	reqs := h.llm.Requests()
	is.Equal(len(reqs), 5)
	last := reqs[4]
	is.Equal(len(last.Messages), 1+4) // system prompt plus the window
	is.Equal(last.Messages[0].Role, llm.RoleSystem)
	is.Equal(last.Messages[4].Role, llm.RoleUser)
}

func TestRun_AcknowledgeMode(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), func(c *Config) {
		c.ListenMode = ListenAcknowledge
		c.STT = nil
		c.AckDelay = 10 * time.Millisecond
	})

	h.room.events <- job.NewEvent(job.EventTrackSubscribed).
		WithParticipant(&livekit.ParticipantInfo{Identity: "user-1"}).
		WithTrack(&livekit.TrackInfo{Type: livekit.TrackType_AUDIO}, &packetList{})

	waitFor(t, "acknowledgement", func() bool { return len(h.room.messages()) == 2 })
	is.Equal(h.room.messages()[1], "Sure thing (You said: "+AckUtterance+")")

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	is.Equal(h.obs.responses[TriggerAudio], 1)
	is.Equal(h.obs.utterances, 1)
}

func TestRun_IgnoresVideoTracks(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), func(c *Config) {
		c.ListenMode = ListenAcknowledge
		c.AckDelay = 10 * time.Millisecond
	})

	h.room.events <- job.NewEvent(job.EventTrackSubscribed).
		WithTrack(&livekit.TrackInfo{Type: livekit.TrackType_VIDEO}, &packetList{})

	time.Sleep(60 * time.Millisecond)
	is.Equal(len(h.room.messages()), 1)
}

func TestRun_TranscribesUtterances(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), nil)

	h.room.events <- job.NewEvent(job.EventTrackSubscribed).
		WithParticipant(&livekit.ParticipantInfo{Identity: "user-1"}).
		WithTrack(&livekit.TrackInfo{Type: livekit.TrackType_AUDIO}, &packetList{packets: voicedPackets(30)})

	waitFor(t, "spoken reply", func() bool { return len(h.room.messages()) == 2 })
	is.Equal(h.room.messages()[1], "Sure thing (You said: what's the weather)")

	calls := h.stt.Calls()
	is.Equal(len(calls), 1)
	is.True(calls[0] > 0) // an Ogg stream was uploaded

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	is.Equal(h.obs.utterances, 1)
	is.Equal(h.obs.responses[TriggerAudio], 1)
}

func TestRun_GateClosedWhileSpeaking(t *testing.T) {
	is := is.New(t)
	h := start(t, newFakeRoom("room-a"), nil)

	waitFor(t, "greeting audio", func() bool { return h.room.player.count() == 1 })
	waitFor(t, "gate to open", func() bool { return !h.agent.gate.ShouldDiscardAudio() })

	h.room.player.mu.Lock()
	defer h.room.player.mu.Unlock()
	is.Equal(h.room.player.gated, []bool{true}) // closed during playback
}

func TestRun_TextOnlyWhenAudioUnavailable(t *testing.T) {
	is := is.New(t)
	room := newFakeRoom("room-a")
	room.publishErr = errors.New("no track")
	h := start(t, room, nil)

	h.sendText("hello")
	waitFor(t, "reply", func() bool { return len(room.messages()) == 2 })
	is.Equal(len(h.tts.Requests()), 0)
}

func TestRun_StopsOnDisconnect(t *testing.T) {
	is := is.New(t)
	room := newFakeRoom("room-a")
	h := start(t, room, nil)

	room.events <- job.NewEvent(job.EventDisconnected)

	select {
	case err := <-h.done:
		is.NoErr(err)
	case <-time.After(3 * time.Second):
		t.Fatal("agent kept running after disconnect")
	}
	h.done <- nil // let cleanup drain
	is.Equal(h.agent.State(), StateClosed)
	is.True(room.disconnected.Load())
}

func TestRun_ConnectFailure(t *testing.T) {
	is := is.New(t)
	room := newFakeRoom("room-a")
	room.connectErr = errors.New("bad token")

	a, err := New(Config{Room: room, LLM: llmfake.NewFakeLLM(), TTS: ttsfake.NewFakeTTS(), ListenMode: ListenAcknowledge})
	is.NoErr(err)

	err = a.Run(context.Background())
	is.True(errors.Is(err, ErrNotConnected))
	is.Equal(a.State(), StateClosed)
	is.Equal(len(room.messages()), 0)
}

func TestEntrypoint_RejectsIncompleteJob(t *testing.T) {
	is := is.New(t)
	handler := NewEntrypoint(EntrypointConfig{
		Template: Config{LLM: llmfake.NewFakeLLM(), TTS: ttsfake.NewFakeTTS(), ListenMode: ListenAcknowledge},
	})

	j, err := job.New(context.Background(), job.Config{RoomName: "room-a"})
	is.NoErr(err)
	defer j.Shutdown("test")

	err = handler(j.Context.Ctx, j) // no URL or token
	is.True(err != nil)
}
