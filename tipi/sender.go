package tipi

import (
	"fmt"
	"math"

	"github.com/ruben1729/tipi-go/varint"
)

// Sender packages typed field values into tag-length-value wire records,
// accumulates them into frames through an internal framer, and flushes
// at the end of every Stream* call, so each call emits at least one
// complete frame (a blob larger than one frame spans several) (spec.md
// §2, component 3).
//
// A Sender is single-writer: it borrows its staging buffer from the
// caller and never allocates on the steady-state path after
// construction (spec.md §1, §5).
type Sender struct {
	f       *framer
	scratch []byte // header-assembly scratch, reused across calls
}

// NewSender constructs a Sender over a caller-supplied staging buffer
// (size must be in [16, 200], spec.md §3) and a Sink to write finished
// frames to.
func NewSender(buf []byte, sink Sink, opts ...SenderOption) (*Sender, error) {
	if buf == nil || sink == nil {
		return nil, newError(ErrNullContext, "buffer and sink must be non-nil")
	}
	if len(buf) < minBufferSize || len(buf) > maxBufferSize {
		return nil, newError(ErrInvalidArgument,
			fmt.Sprintf("buffer size %d outside [%d, %d]", len(buf), minBufferSize, maxBufferSize))
	}

	settings := defaultSenderSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	return &Sender{
		f:       newFramer(buf, sink, settings.logger),
		scratch: make([]byte, 0, varint.MaxBytes*2),
	}, nil
}

// StreamU8 streams an unsigned 8-bit value as a VARINT record.
func (s *Sender) StreamU8(tag uint32, value uint8) error {
	return s.streamVarint(tag, uint32(value))
}

// StreamU16 streams an unsigned 16-bit value as a VARINT record.
func (s *Sender) StreamU16(tag uint32, value uint16) error {
	return s.streamVarint(tag, uint32(value))
}

// StreamU32 streams an unsigned 32-bit value as a VARINT record.
func (s *Sender) StreamU32(tag uint32, value uint32) error {
	return s.streamVarint(tag, value)
}

// StreamI8 streams a signed 8-bit value, ZigZag-encoded after
// sign-extension to 32 bits, as a VARINT record (spec.md §9).
func (s *Sender) StreamI8(tag uint32, value int8) error {
	return s.streamVarint(tag, varint.ZigZagEncode(int32(value)))
}

// StreamI16 streams a signed 16-bit value, ZigZag-encoded after
// sign-extension to 32 bits, as a VARINT record (spec.md §9).
func (s *Sender) StreamI16(tag uint32, value int16) error {
	return s.streamVarint(tag, varint.ZigZagEncode(int32(value)))
}

// StreamI32 streams a signed 32-bit value, ZigZag-encoded, as a VARINT
// record.
func (s *Sender) StreamI32(tag uint32, value int32) error {
	return s.streamVarint(tag, varint.ZigZagEncode(value))
}

func (s *Sender) streamVarint(tag uint32, value uint32) error {
	s.scratch = s.scratch[:0]
	s.scratch = encodeKey(s.scratch, tag, WireVarint)
	s.scratch = varint.Encode(s.scratch, value)

	if err := s.f.stage(s.scratch); err != nil {
		return err
	}
	return s.f.flush()
}

// StreamFloat streams a float32 as a FIX32 record: the key varint
// followed by the IEEE-754 bit pattern, little-endian.
func (s *Sender) StreamFloat(tag uint32, value float32) error {
	s.scratch = s.scratch[:0]
	s.scratch = encodeKey(s.scratch, tag, WireFix32)

	bits := math.Float32bits(value)
	s.scratch = append(s.scratch, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))

	if err := s.f.stage(s.scratch); err != nil {
		return err
	}
	return s.f.flush()
}

// StreamBlob streams an opaque byte slice as a LEN record: the key
// varint, the length varint, then the raw bytes. If the header plus body
// exceed the framer's remaining capacity, it is fragmented across
// multiple frames (spec.md §4.3's fragmentation policy): each emitted
// frame is independently well-formed, and the receiver reconstructs the
// logical record by concatenating decoded payloads of consecutive
// frames, since record parsing is frame-agnostic.
func (s *Sender) StreamBlob(tag uint32, data []byte) error {
	s.scratch = s.scratch[:0]
	s.scratch = encodeKey(s.scratch, tag, WireLen)
	s.scratch = varint.Encode(s.scratch, uint32(len(data)))

	if err := s.f.stage(s.scratch); err != nil {
		return err
	}
	if err := s.f.stage(data); err != nil {
		return err
	}
	return s.f.flush()
}
