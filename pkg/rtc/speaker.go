package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// SampleWriter accepts encoded media samples. *lksdk.LocalSampleTrack
// satisfies it.
type SampleWriter interface {
	WriteSample(sample media.Sample, opts *lksdk.SampleWriteOptions) error
}

// Speaker plays Ogg Opus streams onto a single outbound audio track in real
// time. Concurrent Play calls are serialized.
type Speaker struct {
	mu     sync.Mutex
	w      SampleWriter
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewSpeaker creates a Speaker writing to w.
func NewSpeaker(w SampleWriter, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		w:      w,
		sleep:  sleepContext,
		logger: logger,
	}
}

// PublishSpeaker creates an Opus track, publishes it as the participant's
// microphone and returns a Speaker bound to it.
func PublishSpeaker(lp *lksdk.LocalParticipant, trackName string, logger *slog.Logger) (*Speaker, error) {
	if lp == nil {
		return nil, fmt.Errorf("local participant is required")
	}

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: OpusClockRate,
		Channels:  2,
	})
	if err != nil {
		return nil, fmt.Errorf("create local sample track: %w", err)
	}

	if _, err := lp.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   trackName,
		Source: livekit.TrackSource_MICROPHONE,
	}); err != nil {
		return nil, fmt.Errorf("publish audio track: %w", err)
	}

	return NewSpeaker(track, logger), nil
}

// Play streams every packet of the Ogg Opus stream r onto the track, paced to
// wall-clock time, and returns the amount of audio written.
func (s *Speaker) Play(ctx context.Context, r io.Reader) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := NewOpusReader(r)
	if err != nil {
		return 0, err
	}

	var played time.Duration
	start := time.Now()
	for {
		packet, err := reader.NextPacket()
		if errors.Is(err, io.EOF) {
			return played, nil
		}
		if err != nil {
			return played, fmt.Errorf("read opus packet: %w", err)
		}

		d, err := PacketDuration(packet)
		if err != nil {
			s.logger.Debug("Skipping unreadable opus packet", slog.String("error", err.Error()))
			continue
		}

		if err := s.w.WriteSample(media.Sample{Data: packet, Duration: d}, nil); err != nil {
			return played, fmt.Errorf("write sample: %w", err)
		}
		played += d

		if wait := time.Until(start.Add(played)); wait > 0 {
			if err := s.sleep(ctx, wait); err != nil {
				return played, err
			}
		} else if err := ctx.Err(); err != nil {
			return played, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
