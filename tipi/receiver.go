package tipi

import (
	"encoding/binary"
	"fmt"
)

// parserState is the Receiver's state: the byte-at-a-time parser for the
// unstuffed, CRC-stripped record stream (spec.md §4.4, component 4).
type parserState int

const (
	stateIdle parserState = iota
	stateVarint
	stateFix32
	stateLenHeader
	stateBlobBody
)

// Receiver parses a record stream one byte at a time, dispatching
// decoded fields to the Callbacks supplied at construction. It holds no
// teardown step and runs indefinitely: there is no terminal state
// (spec.md §4.4).
//
// Receiver is frame-agnostic: record boundaries and frame boundaries are
// unrelated, so a blob fragmented across several sender-side frames
// reassembles correctly as long as payload bytes are fed in order
// (spec.md §4.3's "frame boundaries are transparent to the record
// layer").
type Receiver struct {
	state parserState

	tag uint32

	accumulator uint32
	shift       uint

	scratch     []byte
	scratchIdx  int
	expectedLen int

	callbacks Callbacks
	logger    Logger
}

// NewReceiver constructs a Receiver. Its scratch buffer defaults to the
// hard length cap (spec.md §9's fix for the reference's 64-byte/256-cap
// mismatch); see WithScratchSize to shrink it back down.
func NewReceiver(opts ...ReceiverOption) *Receiver {
	settings := defaultReceiverSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return &Receiver{
		scratch:   make([]byte, settings.scratchSize),
		callbacks: settings.callbacks,
		logger:    settings.logger,
	}
}

// ParseByte feeds one byte of the post-stuffing-removal, CRC-stripped
// record stream into the state machine, firing a Callbacks.OnField call
// per completed field. Record errors (unknown wire type, varint
// overflow, declared length too large) are both returned and reported
// through Callbacks.OnRecordError; the parser has already returned to
// IDLE by the time either fires, so the caller may keep feeding bytes.
func (r *Receiver) ParseByte(b byte) error {
	switch r.state {
	case stateIdle:
		return r.handleIdle(b)
	case stateVarint:
		return r.handleVarint(b)
	case stateFix32:
		return r.handleFix32(b)
	case stateLenHeader:
		return r.handleLenHeader(b)
	case stateBlobBody:
		return r.handleBlobBody(b)
	default:
		r.state = stateIdle
		return nil
	}
}

// varintStep folds one more base-128 byte into the accumulator, per the
// same rule as varint.Decode: once five bytes have all carried the
// continuation bit, any further byte reports overflow (spec.md §4.1, §8
// property 6).
func (r *Receiver) varintStep(b byte) (value uint32, done bool, err error) {
	if r.shift >= 35 {
		return 0, false, newError(ErrVarintOverflow, "varint did not terminate within 5 bytes")
	}
	r.accumulator |= uint32(b&0x7f) << r.shift
	r.shift += 7
	if b&0x80 == 0 {
		return r.accumulator, true, nil
	}
	return 0, false, nil
}

func (r *Receiver) resetAccumulator() {
	r.accumulator = 0
	r.shift = 0
}

func (r *Receiver) recordError(err error) error {
	r.state = stateIdle
	r.resetAccumulator()
	r.callbacks.OnRecordError(err)
	return err
}

// handleIdle decodes the key varint, then routes to the state for its
// wire type. The key is decoded in full (spec.md §9's preferred,
// symmetric design), so tag is not capped at 15 the way the reference
// receiver's single-byte key read would cap it.
func (r *Receiver) handleIdle(b byte) error {
	key, done, err := r.varintStep(b)
	if err != nil {
		return r.recordError(err)
	}
	if !done {
		return nil
	}
	r.resetAccumulator()

	r.tag = key >> 3
	wire := uint8(key & 0x7)

	switch wire {
	case WireVarint:
		r.state = stateVarint
	case WireFix32:
		r.scratchIdx = 0
		r.state = stateFix32
	case WireLen:
		r.state = stateLenHeader
	default:
		return r.recordError(newError(ErrUnknownWireType, fmt.Sprintf("wire type %d", wire)))
	}
	return nil
}

func (r *Receiver) handleVarint(b byte) error {
	value, done, err := r.varintStep(b)
	if err != nil {
		return r.recordError(err)
	}
	if !done {
		return nil
	}
	r.resetAccumulator()

	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], value)

	tag := r.tag
	r.state = stateIdle
	r.callbacks.OnField(tag, payload[:])
	return nil
}

func (r *Receiver) handleFix32(b byte) error {
	r.scratch[r.scratchIdx] = b
	r.scratchIdx++
	if r.scratchIdx < 4 {
		return nil
	}

	tag := r.tag
	r.state = stateIdle
	r.callbacks.OnField(tag, r.scratch[:4])
	return nil
}

func (r *Receiver) handleLenHeader(b byte) error {
	length, done, err := r.varintStep(b)
	if err != nil {
		return r.recordError(err)
	}
	if !done {
		return nil
	}
	r.resetAccumulator()

	if length > maxBlobLength {
		return r.recordError(newError(ErrLengthTooLarge,
			fmt.Sprintf("declared length %d exceeds cap %d", length, maxBlobLength)))
	}
	if int(length) > len(r.scratch) {
		// Declared length fits the protocol's hard cap but not this
		// receiver's configured scratch: surface it as a record error
		// instead of overrunning the buffer (spec.md §9).
		return r.recordError(newError(ErrLengthTooLarge,
			fmt.Sprintf("declared length %d exceeds scratch size %d", length, len(r.scratch))))
	}

	if length == 0 {
		tag := r.tag
		r.state = stateIdle
		r.callbacks.OnField(tag, nil)
		return nil
	}

	r.expectedLen = int(length)
	r.scratchIdx = 0
	r.state = stateBlobBody
	return nil
}

func (r *Receiver) handleBlobBody(b byte) error {
	r.scratch[r.scratchIdx] = b
	r.scratchIdx++
	if r.scratchIdx < r.expectedLen {
		return nil
	}

	tag := r.tag
	n := r.expectedLen
	r.state = stateIdle
	r.callbacks.OnField(tag, r.scratch[:n])
	return nil
}
