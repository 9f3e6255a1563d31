package tipi

// FrameDecoder is the receive-side counterpart to framer: it splits a
// raw wire byte stream on 0x00 delimiters, COBS-decodes each frame,
// verifies its CRC-16/MODBUS trailer, and feeds the surviving payload
// bytes into a Receiver one at a time.
//
// Spec.md §4.4 assumes this component exists ("the component that feeds
// [parse_byte] is assumed to handle COBS decoding and CRC verification
// per frame") without naming it as one of the four core components; it
// is ambient glue needed to drive a Receiver from a real byte stream
// (spec.md §6.1: "Receivers identify frames by splitting the byte stream
// on 0x00. Any all-zero or COBS-invalid frame is discarded.").
//
// Frame errors (bad CRC, malformed COBS) are reported through the
// underlying Receiver's Callbacks.OnFrameError and otherwise just drop
// the offending frame; per spec.md §7, the parser resynchronizes at the
// next delimiter automatically because FrameDecoder always discards its
// scratch buffer on a 0x00.
type FrameDecoder struct {
	recv    *Receiver
	raw     []byte
	scratch []byte
}

// defaultMaxFrameSize bounds a single encoded frame's size; it is large
// enough for the largest frame a 200-byte staging buffer can ever
// produce (maxBufferSize plus CRC plus COBS worst-case overhead).
const defaultMaxFrameSize = maxBufferSize + 2 + maxBufferSize/254 + 2

// NewFrameDecoder constructs a FrameDecoder that feeds recv.
func NewFrameDecoder(recv *Receiver) *FrameDecoder {
	return &FrameDecoder{
		recv:    recv,
		raw:     make([]byte, 0, defaultMaxFrameSize),
		scratch: make([]byte, 0, defaultMaxFrameSize),
	}
}

// Feed appends one raw wire byte. On a 0x00 delimiter it COBS-decodes,
// CRC-verifies, and dispatches the buffered frame, then resets for the
// next one. A frame that overruns the configured maximum size without a
// delimiter is dropped and parsing resynchronizes at the next 0x00.
func (d *FrameDecoder) Feed(b byte) error {
	if b != 0x00 {
		if len(d.raw) >= cap(d.raw) {
			d.raw = d.raw[:0]
			return nil
		}
		d.raw = append(d.raw, b)
		return nil
	}

	err := d.processFrame()
	d.raw = d.raw[:0]
	return err
}

func (d *FrameDecoder) processFrame() error {
	if len(d.raw) == 0 {
		return nil
	}

	d.scratch = d.scratch[:0]
	decoded, err := cobsDecode(d.scratch, d.raw)
	if err != nil {
		d.recv.callbacks.OnFrameError(err)
		return err
	}
	d.scratch = decoded

	if len(decoded) < 2 {
		err := newError(ErrMalformedFrame, "frame shorter than CRC trailer")
		d.recv.callbacks.OnFrameError(err)
		return err
	}

	payload := decoded[:len(decoded)-2]
	wantCRC := uint16(decoded[len(decoded)-2]) | uint16(decoded[len(decoded)-1])<<8
	if crc16Calc(payload) != wantCRC {
		err := newError(ErrCRC, "frame CRC mismatch")
		d.recv.callbacks.OnFrameError(err)
		return err
	}

	for _, pb := range payload {
		// Record-level errors are reported through OnRecordError and do
		// not stop the frame from being fully consumed.
		_ = d.recv.ParseByte(pb)
	}
	return nil
}
