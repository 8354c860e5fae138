// Package rtc moves Opus audio between the agent and the room: Ogg
// demuxing for synthesized speech, Ogg muxing for captured utterances, and
// a paced sample writer for the published track.
package rtc

import (
	"errors"
	"time"
)

const (
	// OpusClockRate is the RTP clock rate of Opus regardless of the coded
	// bandwidth.
	OpusClockRate = 48000

	// DefaultFrameDuration is assumed for packets whose TOC cannot be read.
	DefaultFrameDuration = 20 * time.Millisecond
)

// SilentOpusFrame is a 20 ms fullband CELT frame that decodes to silence.
var SilentOpusFrame = []byte{0xF8, 0xFF, 0xFE}

var (
	errEmptyPacket     = errors.New("empty opus packet")
	errMalformedPacket = errors.New("malformed opus packet")
)

var (
	silkFrameSizes   = [4]time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond}
	hybridFrameSizes = [2]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	celtFrameSizes   = [4]time.Duration{2500 * time.Microsecond, 5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
)

// PacketDuration reads the TOC byte of an Opus packet (RFC 6716 section 3.1)
// and returns how much audio the packet carries.
func PacketDuration(packet []byte) (time.Duration, error) {
	if len(packet) == 0 {
		return 0, errEmptyPacket
	}

	toc := packet[0]
	config := toc >> 3

	var frame time.Duration
	switch {
	case config < 12:
		frame = silkFrameSizes[config%4]
	case config < 16:
		frame = hybridFrameSizes[config%2]
	default:
		frame = celtFrameSizes[config%4]
	}

	var count int
	switch toc & 0x03 {
	case 0:
		count = 1
	case 1, 2:
		count = 2
	default:
		if len(packet) < 2 {
			return 0, errMalformedPacket
		}
		count = int(packet[1] & 0x3F)
		if count == 0 {
			return 0, errMalformedPacket
		}
	}

	d := frame * time.Duration(count)
	if d > 120*time.Millisecond {
		return 0, errMalformedPacket
	}
	return d, nil
}

// DurationOrDefault is PacketDuration falling back to DefaultFrameDuration.
func DurationOrDefault(packet []byte) time.Duration {
	d, err := PacketDuration(packet)
	if err != nil {
		return DefaultFrameDuration
	}
	return d
}
