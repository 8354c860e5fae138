package job

import (
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/pion/rtp"
)

// EventType is the kind of room event.
type EventType string

const (
	EventParticipantConnected    EventType = "participant_connected"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventTrackSubscribed         EventType = "track_subscribed"
	EventTrackUnsubscribed       EventType = "track_unsubscribed"
	EventDataReceived            EventType = "data_received"
	EventRoomMetadataChanged     EventType = "room_metadata_changed"
	EventDisconnected            EventType = "disconnected"
)

// PacketReader yields the RTP packets of a subscribed track until the track
// ends.
type PacketReader interface {
	ReadPacket() (*rtp.Packet, error)
}

// Event is a room event delivered on Room.Events.
type Event struct {
	Type      EventType
	Timestamp time.Time

	// Participant is the remote participant involved, if any.
	Participant *livekit.ParticipantInfo

	// Track describes the subscribed or unsubscribed track.
	Track *livekit.TrackInfo

	// Packets reads the media of a subscribed track.
	Packets PacketReader

	// Data is the payload of a data event.
	Data  []byte
	Topic string

	Metadata string
}

// NewEvent creates an event stamped with the current time.
func NewEvent(t EventType) *Event {
	return &Event{Type: t, Timestamp: time.Now()}
}

func (e *Event) WithParticipant(p *livekit.ParticipantInfo) *Event {
	e.Participant = p
	return e
}

func (e *Event) WithTrack(t *livekit.TrackInfo, packets PacketReader) *Event {
	e.Track = t
	e.Packets = packets
	return e
}

func (e *Event) WithData(data []byte, topic string) *Event {
	e.Data = data
	e.Topic = topic
	return e
}

func (e *Event) WithMetadata(metadata string) *Event {
	e.Metadata = metadata
	return e
}

// IsAudioTrack reports whether a track event carries audio.
func (e *Event) IsAudioTrack() bool {
	return e.Track != nil && e.Track.Type == livekit.TrackType_AUDIO
}

// Identity returns the participant identity, or "" when there is none.
func (e *Event) Identity() string {
	if e.Participant == nil {
		return ""
	}
	return e.Participant.Identity
}
