// Package vad segments a live Opus RTP stream into utterances without
// decoding it. Opus encoders spend far fewer bytes on silence and comfort
// noise than on speech, and browsers with DTX stop sending packets entirely,
// so payload size and arrival gaps are enough to find utterance boundaries.
package vad

import (
	"context"
	"time"

	"github.com/pion/rtp"

	"github.com/chriscow/lk-voice/pkg/rtc"
)

// Config tunes the segmenter. Zero fields take the defaults below.
type Config struct {
	// VoicedPayloadBytes is the payload size at or above which a packet
	// counts as speech.
	VoicedPayloadBytes int

	// MinSpeech is the voiced audio an utterance needs to be emitted.
	MinSpeech time.Duration

	// Silence ends an utterance once no voiced packet has arrived for this
	// long.
	Silence time.Duration

	// MaxUtterance force-ends an utterance that runs this long.
	MaxUtterance time.Duration
}

const (
	DefaultVoicedPayloadBytes = 24
	DefaultMinSpeech          = 300 * time.Millisecond
	DefaultSilence            = 800 * time.Millisecond
	DefaultMaxUtterance       = 15 * time.Second
)

func (c Config) withDefaults() Config {
	if c.VoicedPayloadBytes <= 0 {
		c.VoicedPayloadBytes = DefaultVoicedPayloadBytes
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = DefaultMinSpeech
	}
	if c.Silence <= 0 {
		c.Silence = DefaultSilence
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = DefaultMaxUtterance
	}
	return c
}

// Packet is an RTP packet stamped with its arrival time.
type Packet struct {
	RTP *rtp.Packet
	At  time.Time
}

// Segment is one detected utterance.
type Segment struct {
	Packets []*rtp.Packet
	Start   time.Time
	End     time.Time
	Voiced  time.Duration
}

// Segmenter is a single-stream utterance detector. It is not safe for
// concurrent use; Run owns it when used as a pipeline stage.
type Segmenter struct {
	cfg Config

	active    bool
	start     time.Time
	lastVoice time.Time
	voiced    time.Duration
	packets   []*rtp.Packet
}

// NewSegmenter creates a Segmenter with cfg.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg.withDefaults()}
}

// Active reports whether an utterance is in progress.
func (s *Segmenter) Active() bool {
	return s.active
}

// Push feeds one packet. It returns a segment when the packet closes an
// utterance.
func (s *Segmenter) Push(p *rtp.Packet, at time.Time) (Segment, bool) {
	voiced := len(p.Payload) >= s.cfg.VoicedPayloadBytes

	if !s.active {
		if !voiced {
			return Segment{}, false
		}
		s.active = true
		s.start = at
		s.lastVoice = at
		s.voiced = 0
		s.packets = s.packets[:0]
	}

	if !voiced && at.Sub(s.lastVoice) >= s.cfg.Silence {
		return s.finish(s.lastVoice)
	}

	s.packets = append(s.packets, p)
	if voiced {
		s.lastVoice = at
		s.voiced += rtc.DurationOrDefault(p.Payload)
	}

	if at.Sub(s.start) >= s.cfg.MaxUtterance {
		return s.finish(at)
	}
	return Segment{}, false
}

// Tick closes an utterance whose speaker went quiet without sending packets.
func (s *Segmenter) Tick(now time.Time) (Segment, bool) {
	if s.active && now.Sub(s.lastVoice) >= s.cfg.Silence {
		return s.finish(s.lastVoice)
	}
	return Segment{}, false
}

// Flush closes whatever utterance is in progress.
func (s *Segmenter) Flush() (Segment, bool) {
	if !s.active {
		return Segment{}, false
	}
	return s.finish(s.lastVoice)
}

// Reset drops any utterance in progress.
func (s *Segmenter) Reset() {
	s.active = false
	s.voiced = 0
	s.packets = nil
}

func (s *Segmenter) finish(end time.Time) (Segment, bool) {
	seg := Segment{
		Packets: s.packets,
		Start:   s.start,
		End:     end,
		Voiced:  s.voiced,
	}
	s.active = false
	s.voiced = 0
	s.packets = nil

	if seg.Voiced < s.cfg.MinSpeech {
		return Segment{}, false
	}
	return seg, true
}

// Run segments packets until the input closes or ctx is cancelled. The
// returned channel is closed when Run stops; a trailing utterance is flushed
// when the input closes.
func (s *Segmenter) Run(ctx context.Context, in <-chan Packet) <-chan Segment {
	out := make(chan Segment, 4)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.cfg.Silence / 4)
		defer ticker.Stop()

		emit := func(seg Segment, ok bool) bool {
			if !ok {
				return true
			}
			select {
			case out <- seg:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !emit(s.Tick(now)) {
					return
				}
			case p, ok := <-in:
				if !ok {
					emit(s.Flush())
					return
				}
				if !emit(s.Push(p.RTP, p.At)) {
					return
				}
			}
		}
	}()

	return out
}
