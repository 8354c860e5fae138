package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/chriscow/lk-voice/pkg/rtc"
)

var (
	ErrNotConnected     = errors.New("room not connected")
	ErrAlreadyConnected = errors.New("room is already connected")
)

// Room wraps a LiveKit room connection and turns its callbacks into Events.
type Room struct {
	// Events receives room events until Disconnect closes it. Events are
	// dropped when the buffer is full.
	Events chan *Event

	config RoomConfig
	room   *lksdk.Room
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	connected    bool
	connecting   bool
	eventsClosed bool
	participants map[string]*livekit.ParticipantInfo
}

// RoomConfig describes how to join a room.
type RoomConfig struct {
	URL      string
	Token    string
	RoomName string

	// EventBufferSize defaults to 100.
	EventBufferSize int
}

// NewRoom validates config and prepares a Room. Call Connect to join.
func NewRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	switch {
	case config.URL == "":
		return nil, fmt.Errorf("URL is required")
	case config.Token == "":
		return nil, fmt.Errorf("token is required")
	case config.RoomName == "":
		return nil, fmt.Errorf("room name is required")
	}

	size := config.EventBufferSize
	if size <= 0 {
		size = 100
	}

	roomCtx, cancel := context.WithCancel(ctx)
	return &Room{
		Events:       make(chan *Event, size),
		config:       config,
		ctx:          roomCtx,
		cancel:       cancel,
		participants: make(map[string]*livekit.ParticipantInfo),
	}, nil
}

// Connect joins the room. Participants already present are reported as
// EventParticipantConnected.
func (r *Room) Connect() error {
	r.mu.Lock()
	if r.connected || r.connecting {
		r.mu.Unlock()
		return ErrAlreadyConnected
	}
	r.connecting = true
	r.mu.Unlock()

	cb := &lksdk.RoomCallback{
		OnDisconnected:            r.onDisconnected,
		OnParticipantConnected:    r.onParticipantConnected,
		OnParticipantDisconnected: r.onParticipantDisconnected,
		OnRoomMetadataChanged:     r.onRoomMetadataChanged,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   r.onTrackSubscribed,
			OnTrackUnsubscribed: r.onTrackUnsubscribed,
			OnDataPacket:        r.onDataPacket,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(r.config.URL, r.config.Token, cb)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connecting = false
	if err != nil {
		return fmt.Errorf("failed to connect to room: %w", err)
	}
	r.room = room
	r.connected = true

	slog.Info("Connected to LiveKit room",
		slog.String("room_name", r.config.RoomName),
		slog.String("url", r.config.URL))
	return nil
}

// Disconnect leaves the room and closes Events. Safe to call more than once.
func (r *Room) Disconnect() {
	r.cancel()

	r.mu.Lock()
	room := r.room
	wasConnected := r.connected
	r.connected = false
	r.room = nil
	if !r.eventsClosed {
		close(r.Events)
		r.eventsClosed = true
	}
	r.mu.Unlock()

	if room != nil {
		room.Disconnect()
	}
	if wasConnected {
		slog.Info("Disconnected from LiveKit room", slog.String("room_name", r.config.RoomName))
	}
}

func (r *Room) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// Name returns the configured room name.
func (r *Room) Name() string {
	return r.config.RoomName
}

// LocalParticipant returns the agent's own participant, or nil before
// Connect.
func (r *Room) LocalParticipant() *lksdk.LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.room == nil {
		return nil
	}
	return r.room.LocalParticipant
}

// Participants returns a copy of the remote participants keyed by identity.
func (r *Room) Participants() map[string]*livekit.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*livekit.ParticipantInfo, len(r.participants))
	for k, v := range r.participants {
		out[k] = v
	}
	return out
}

// PublishData sends data reliably to every participant.
func (r *Room) PublishData(data []byte) error {
	lp := r.LocalParticipant()
	if lp == nil {
		return ErrNotConnected
	}
	return lp.PublishDataPacket(lksdk.UserData(data), lksdk.WithDataPublishReliable(true))
}

// PublishSpeaker publishes an Opus microphone track and returns the speaker
// that plays onto it.
func (r *Room) PublishSpeaker(trackName string, logger *slog.Logger) (*rtc.Speaker, error) {
	lp := r.LocalParticipant()
	if lp == nil {
		return nil, ErrNotConnected
	}
	return rtc.PublishSpeaker(lp, trackName, logger)
}

// lksdk callbacks

func (r *Room) onDisconnected() {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	r.sendEvent(NewEvent(EventDisconnected))
}

func (r *Room) onParticipantConnected(p *lksdk.RemoteParticipant) {
	r.participantJoined(participantInfo(p, livekit.ParticipantInfo_ACTIVE))
}

func (r *Room) onParticipantDisconnected(p *lksdk.RemoteParticipant) {
	r.participantLeft(participantInfo(p, livekit.ParticipantInfo_DISCONNECTED))
}

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	r.trackSubscribed(participantInfo(p, livekit.ParticipantInfo_ACTIVE), trackInfo(pub), remoteTrack{track})
}

func (r *Room) onTrackUnsubscribed(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackUnsubscribed).
		WithParticipant(participantInfo(p, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(pub), nil))
}

func (r *Room) onDataPacket(packet lksdk.DataPacket, params lksdk.DataReceiveParams) {
	user, ok := packet.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	r.dataReceived(&livekit.ParticipantInfo{Identity: params.SenderIdentity}, user.Payload, user.Topic)
}

func (r *Room) onRoomMetadataChanged(metadata string) {
	r.sendEvent(NewEvent(EventRoomMetadataChanged).WithMetadata(metadata))
}

// SDK independent handlers

func (r *Room) participantJoined(info *livekit.ParticipantInfo) {
	r.mu.Lock()
	r.participants[info.Identity] = info
	r.mu.Unlock()

	r.sendEvent(NewEvent(EventParticipantConnected).WithParticipant(info))
	slog.Info("Participant connected",
		slog.String("identity", info.Identity),
		slog.String("sid", info.Sid))
}

func (r *Room) participantLeft(info *livekit.ParticipantInfo) {
	r.mu.Lock()
	delete(r.participants, info.Identity)
	r.mu.Unlock()

	r.sendEvent(NewEvent(EventParticipantDisconnected).WithParticipant(info))
	slog.Info("Participant disconnected",
		slog.String("identity", info.Identity),
		slog.String("sid", info.Sid))
}

func (r *Room) trackSubscribed(p *livekit.ParticipantInfo, t *livekit.TrackInfo, packets PacketReader) {
	r.sendEvent(NewEvent(EventTrackSubscribed).WithParticipant(p).WithTrack(t, packets))
	slog.Info("Track subscribed",
		slog.String("participant", p.Identity),
		slog.String("track_sid", t.Sid),
		slog.String("track_type", t.Type.String()))
}

func (r *Room) dataReceived(p *livekit.ParticipantInfo, data []byte, topic string) {
	r.sendEvent(NewEvent(EventDataReceived).WithParticipant(p).WithData(data, topic))
}

// sendEvent delivers without blocking. The read lock keeps Disconnect from
// closing the channel mid-send.
func (r *Room) sendEvent(e *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.eventsClosed || r.ctx.Err() != nil {
		return
	}
	select {
	case r.Events <- e:
	default:
		slog.Warn("Events channel is full, dropping event",
			slog.String("event_type", string(e.Type)))
	}
}

func participantInfo(p *lksdk.RemoteParticipant, state livekit.ParticipantInfo_State) *livekit.ParticipantInfo {
	return &livekit.ParticipantInfo{
		Sid:      p.SID(),
		Identity: p.Identity(),
		Name:     p.Name(),
		State:    state,
	}
}

func trackInfo(pub *lksdk.RemoteTrackPublication) *livekit.TrackInfo {
	return &livekit.TrackInfo{
		Sid:    pub.SID(),
		Name:   pub.Name(),
		Type:   pub.Kind().ProtoType(),
		Source: pub.Source(),
	}
}

type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (t remoteTrack) ReadPacket() (*rtp.Packet, error) {
	p, _, err := t.track.ReadRTP()
	return p, err
}
