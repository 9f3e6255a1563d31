package tipi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type fieldCall struct {
	tag     uint32
	payload []byte
}

func newRecordingReceiver(opts ...ReceiverOption) (*Receiver, *[]fieldCall, *[]error, *[]error) {
	var fields []fieldCall
	var recordErrs []error
	var frameErrs []error

	cb := Callbacks{
		OnField: func(tag uint32, payload []byte) {
			cp := append([]byte(nil), payload...)
			fields = append(fields, fieldCall{tag: tag, payload: cp})
		},
		OnRecordError: func(err error) { recordErrs = append(recordErrs, err) },
		OnFrameError:  func(err error) { frameErrs = append(frameErrs, err) },
	}
	allOpts := append([]ReceiverOption{WithCallbacks(cb)}, opts...)
	return NewReceiver(allOpts...), &fields, &recordErrs, &frameErrs
}

func feed(t *testing.T, r *Receiver, bytes []byte) {
	t.Helper()
	for _, b := range bytes {
		_ = r.ParseByte(b)
	}
}

func TestReceiverVarintField(t *testing.T) {
	r, fields, _, _ := newRecordingReceiver()

	// key = (1<<3)|0 = 0x08, value 42.
	feed(t, r, []byte{0x08, 0x2A})

	if len(*fields) != 1 {
		t.Fatalf("got %d field calls, want 1", len(*fields))
	}
	got := (*fields)[0]
	if got.tag != 1 {
		t.Errorf("tag = %d, want 1", got.tag)
	}
	value := binary.LittleEndian.Uint32(got.payload)
	if value != 42 {
		t.Errorf("value = %d, want 42", value)
	}
}

func TestReceiverFix32Field(t *testing.T) {
	r, fields, _, _ := newRecordingReceiver()

	// key = (3<<3)|5 = 0x1D, then 4 raw bytes.
	feed(t, r, []byte{0x1D, 0x01, 0x02, 0x03, 0x04})

	if len(*fields) != 1 {
		t.Fatalf("got %d field calls, want 1", len(*fields))
	}
	if !bytes.Equal((*fields)[0].payload, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("payload = % x, want 01 02 03 04", (*fields)[0].payload)
	}
}

func TestReceiverBlobField(t *testing.T) {
	r, fields, _, _ := newRecordingReceiver()

	// key = (5<<3)|2 = 0x2A, length varint 3, then 3 bytes.
	feed(t, r, []byte{0x2A, 0x03, 0xAA, 0xBB, 0xCC})

	if len(*fields) != 1 {
		t.Fatalf("got %d field calls, want 1", len(*fields))
	}
	if !bytes.Equal((*fields)[0].payload, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("payload = % x, want aa bb cc", (*fields)[0].payload)
	}
}

func TestReceiverEmptyBlobField(t *testing.T) {
	r, fields, _, _ := newRecordingReceiver()

	// key = (5<<3)|2 = 0x2A, length varint 0.
	feed(t, r, []byte{0x2A, 0x00})

	if len(*fields) != 1 {
		t.Fatalf("got %d field calls, want 1", len(*fields))
	}
	if len((*fields)[0].payload) != 0 {
		t.Errorf("payload = % x, want empty", (*fields)[0].payload)
	}
}

func TestReceiverUnknownWireType(t *testing.T) {
	r, _, recordErrs, _ := newRecordingReceiver()

	// key = (1<<3)|1 = 0x09: wire type 1 (FIX64) is reserved.
	if err := r.ParseByte(0x09); err == nil {
		t.Fatal("expected an error for reserved wire type")
	}
	if len(*recordErrs) != 1 {
		t.Fatalf("got %d record errors, want 1", len(*recordErrs))
	}

	// Parser must have returned to IDLE: feeding a fresh valid record
	// still works.
	feed(t, r, []byte{0x08, 0x05})
}

func TestReceiverVarintOverflow(t *testing.T) {
	r, _, recordErrs, _ := newRecordingReceiver()

	// A valid key (VARINT wire), then 6 continuation bytes never
	// terminating.
	feed(t, r, []byte{0x08})
	for i := 0; i < 5; i++ {
		if err := r.ParseByte(0x80); err != nil {
			t.Fatalf("byte %d: unexpected error %v", i, err)
		}
	}
	if err := r.ParseByte(0x80); !IsOverflow(err) {
		t.Fatalf("6th continuation byte: err = %v, want overflow", err)
	}
	if len(*recordErrs) != 1 {
		t.Fatalf("got %d record errors, want 1", len(*recordErrs))
	}
}

func TestReceiverLengthTooLarge(t *testing.T) {
	r, _, recordErrs, _ := newRecordingReceiver()

	// key = (1<<3)|2 = 0x0A, length varint for 257 (> 256 cap).
	var lenBuf []byte
	lenBuf = appendTestVarint(lenBuf, 257)

	if err := r.ParseByte(0x0A); err != nil {
		t.Fatalf("key byte: unexpected error %v", err)
	}
	var lastErr error
	for _, b := range lenBuf {
		lastErr = r.ParseByte(b)
	}
	if lastErr == nil {
		t.Fatal("expected a length-too-large error")
	}
	if len(*recordErrs) != 1 {
		t.Fatalf("got %d record errors, want 1", len(*recordErrs))
	}
}

func TestReceiverFullVarintKeyBeyondFourBitTag(t *testing.T) {
	// The reference's single-byte key read caps tag at 15; this
	// implementation decodes a full varint key so larger tags work too
	// (spec.md §9's preferred, symmetric design).
	r, fields, _, _ := newRecordingReceiver()

	const tag = 1000
	const wire = WireVarint
	key := (uint32(tag) << 3) | uint32(wire)

	var keyBuf []byte
	keyBuf = appendTestVarint(keyBuf, key)
	feed(t, r, keyBuf)
	feed(t, r, []byte{0x07}) // value 7

	if len(*fields) != 1 {
		t.Fatalf("got %d field calls, want 1", len(*fields))
	}
	if (*fields)[0].tag != tag {
		t.Errorf("tag = %d, want %d", (*fields)[0].tag, tag)
	}
}

func appendTestVarint(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func TestFrameDecoderRoundTrip(t *testing.T) {
	r, fields, _, frameErrs := newRecordingReceiver()
	dec := NewFrameDecoder(r)

	sink := &recordingSink{}
	s, err := NewSender(make([]byte, 64), sink.write)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	if err := s.StreamU32(1, 42); err != nil {
		t.Fatalf("StreamU32: %v", err)
	}
	if err := s.StreamI8(10, -5); err != nil {
		t.Fatalf("StreamI8: %v", err)
	}
	if err := s.StreamFloat(3, 1.5); err != nil {
		t.Fatalf("StreamFloat: %v", err)
	}

	for _, b := range sink.wire {
		if err := dec.Feed(b); err != nil {
			t.Fatalf("Feed: %v", err)
		}
	}

	if len(*frameErrs) != 0 {
		t.Fatalf("unexpected frame errors: %v", *frameErrs)
	}
	if len(*fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(*fields))
	}

	if (*fields)[0].tag != 1 || binary.LittleEndian.Uint32((*fields)[0].payload) != 42 {
		t.Errorf("field 0 = %+v, want tag=1 value=42", (*fields)[0])
	}

	zz := binary.LittleEndian.Uint32((*fields)[1].payload)
	if (*fields)[1].tag != 10 || int32(zz>>1)^-int32(zz&1) != -5 {
		t.Errorf("field 1 = %+v, want tag=10 zigzag(-5)", (*fields)[1])
	}
}

func TestFrameDecoderFragmentedBlobReassembly(t *testing.T) {
	r, fields, _, frameErrs := newRecordingReceiver()
	dec := NewFrameDecoder(r)

	sink := &recordingSink{}
	s, err := NewSender(make([]byte, 32), sink.write)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	data := make([]byte, 60)
	for i := range data {
		data[i] = byte(i + 1)
	}
	if err := s.StreamBlob(5, data); err != nil {
		t.Fatalf("StreamBlob: %v", err)
	}

	for _, b := range sink.wire {
		if err := dec.Feed(b); err != nil {
			t.Fatalf("Feed: %v", err)
		}
	}

	if len(*frameErrs) != 0 {
		t.Fatalf("unexpected frame errors: %v", *frameErrs)
	}
	if len(*fields) != 1 {
		t.Fatalf("got %d fields, want 1 (fragmentation must be transparent)", len(*fields))
	}
	if !bytes.Equal((*fields)[0].payload, data) {
		t.Errorf("reassembled blob mismatch")
	}
}

func TestFrameDecoderRejectsCorruptedFrame(t *testing.T) {
	r, fields, _, frameErrs := newRecordingReceiver()
	dec := NewFrameDecoder(r)

	sink := &recordingSink{}
	s, _ := NewSender(make([]byte, 64), sink.write)
	_ = s.StreamU32(1, 42)

	corrupted := append([]byte(nil), sink.wire...)
	// Flip a bit in the middle of the encoded frame (before the trailing
	// delimiter) to break the CRC.
	if len(corrupted) > 2 {
		corrupted[1] ^= 0xFF
	}

	for _, b := range corrupted {
		_ = dec.Feed(b)
	}

	if len(*frameErrs) == 0 {
		t.Fatal("expected a frame error for corrupted data")
	}
	if len(*fields) != 0 {
		t.Fatalf("got %d fields from a corrupted frame, want 0", len(*fields))
	}
}
