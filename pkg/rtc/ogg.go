package rtc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	oggPageHeaderLen = 27
	opusHeadMagic    = "OpusHead"
	opusTagsMagic    = "OpusTags"
)

var (
	errBadCapture = errors.New("invalid ogg capture pattern")
	errNotOpus    = errors.New("ogg stream is not opus")
)

// OpusHead is the identification header of an Ogg Opus stream.
type OpusHead struct {
	Channels        uint8
	PreSkip         uint16
	InputSampleRate uint32
}

// OpusReader yields the individual Opus packets of an Ogg Opus stream.
// Pages may carry several packets and packets may span pages, so the
// segment table is honored rather than treating a page as one packet.
type OpusReader struct {
	r       *bufio.Reader
	head    OpusHead
	pending [][]byte
	partial []byte
	eos     bool
}

// NewOpusReader consumes the OpusHead and OpusTags headers of r.
func NewOpusReader(r io.Reader) (*OpusReader, error) {
	o := &OpusReader{r: bufio.NewReader(r)}

	head, err := o.nextRaw()
	if err != nil {
		return nil, fmt.Errorf("read opus head: %w", err)
	}
	if len(head) < 19 || string(head[:8]) != opusHeadMagic {
		return nil, errNotOpus
	}
	o.head = OpusHead{
		Channels:        head[9],
		PreSkip:         binary.LittleEndian.Uint16(head[10:12]),
		InputSampleRate: binary.LittleEndian.Uint32(head[12:16]),
	}

	tags, err := o.nextRaw()
	if err != nil {
		return nil, fmt.Errorf("read opus tags: %w", err)
	}
	if !bytes.HasPrefix(tags, []byte(opusTagsMagic)) {
		return nil, errNotOpus
	}
	return o, nil
}

// Head returns the stream identification header.
func (o *OpusReader) Head() OpusHead {
	return o.head
}

// NextPacket returns the next audio packet or io.EOF at end of stream.
func (o *OpusReader) NextPacket() ([]byte, error) {
	return o.nextRaw()
}

func (o *OpusReader) nextRaw() ([]byte, error) {
	for len(o.pending) == 0 {
		if o.eos {
			return nil, io.EOF
		}
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}
	p := o.pending[0]
	o.pending = o.pending[1:]
	return p, nil
}

func (o *OpusReader) readPage() error {
	var hdr [oggPageHeaderLen]byte
	if _, err := io.ReadFull(o.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			o.eos = true
			return io.EOF
		}
		return err
	}
	if string(hdr[:4]) != "OggS" {
		return errBadCapture
	}
	headerType := hdr[5]

	segments := make([]byte, hdr[26])
	if _, err := io.ReadFull(o.r, segments); err != nil {
		return fmt.Errorf("read segment table: %w", err)
	}

	for _, lacing := range segments {
		seg := make([]byte, lacing)
		if _, err := io.ReadFull(o.r, seg); err != nil {
			return fmt.Errorf("read segment: %w", err)
		}
		o.partial = append(o.partial, seg...)
		if lacing < 255 {
			o.pending = append(o.pending, o.partial)
			o.partial = nil
		}
	}

	if headerType&0x04 != 0 {
		o.eos = true
	}
	return nil
}

// WriteOggRTP packages Opus RTP packets into a mono Ogg Opus stream on w.
func WriteOggRTP(w io.Writer, packets []*rtp.Packet) error {
	ow, err := oggwriter.NewWith(w, OpusClockRate, 1)
	if err != nil {
		return fmt.Errorf("create ogg writer: %w", err)
	}
	for _, p := range packets {
		if err := ow.WriteRTP(p); err != nil {
			_ = ow.Close()
			return fmt.Errorf("write ogg page: %w", err)
		}
	}
	return ow.Close()
}

// SilentOgg returns an Ogg Opus stream holding d of silence.
func SilentOgg(d time.Duration) ([]byte, error) {
	frames := int(d / DefaultFrameDuration)
	if frames < 1 {
		frames = 1
	}

	samplesPerFrame := uint32(OpusClockRate * DefaultFrameDuration / time.Second)
	packets := make([]*rtp.Packet, frames)
	for i := range packets {
		packets[i] = &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    111,
				SequenceNumber: uint16(i),
				Timestamp:      uint32(i) * samplesPerFrame,
			},
			Payload: append([]byte(nil), SilentOpusFrame...),
		}
	}

	var buf bytes.Buffer
	if err := WriteOggRTP(&buf, packets); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
