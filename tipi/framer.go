package tipi

// Sink is the physical byte-write callback: the link between the framer
// and whatever carries bytes off-device (UART, CDC-ACM, a SLIP tunnel).
// It and any I/O scheduling around it are out of scope for this library
// (spec.md §1); the caller supplies one.
type Sink func(data []byte) error

var zeroDelimiter = [1]byte{0x00}

// framer owns a bounded staging buffer, accumulates payload bytes across
// one or more Stream* calls, and on flush appends a CRC-16/MODBUS
// trailer, COBS-encodes the result, and writes it plus a trailing 0x00
// delimiter through sink. This is component 2 of spec.md §2.
type framer struct {
	buf    []byte // length == configured staging capacity
	fill   int
	sink   Sink
	out    []byte // reusable COBS-encode scratch
	logger Logger
}

func newFramer(buf []byte, sink Sink, logger Logger) *framer {
	return &framer{
		buf:    buf,
		sink:   sink,
		out:    make([]byte, 0, cobsMaxOverhead(len(buf))),
		logger: logger,
	}
}

// safeCap is the fill threshold that always leaves room for the
// reserved CRC-trailer-plus-COBS-growth tail (spec.md §3's RESERVED=8).
func (f *framer) safeCap() int {
	return len(f.buf) - reserved
}

// stage appends data to the staging buffer, flushing the current frame
// whenever fill reaches the safe cap and bytes remain to be written
// (spec.md §4.2). A payload larger than one frame's worth is therefore
// transparently split across multiple frames.
func (f *framer) stage(data []byte) error {
	for len(data) > 0 {
		safe := f.safeCap()
		if f.fill >= safe {
			if err := f.flush(); err != nil {
				return err
			}
		}
		avail := safe - f.fill
		n := len(data)
		if n > avail {
			n = avail
		}
		copy(f.buf[f.fill:], data[:n])
		f.fill += n
		data = data[n:]
	}
	return nil
}

// flush finalizes the current frame and emits it through sink. It is a
// no-op when fill == 0 (spec.md §4.2).
func (f *framer) flush() error {
	if f.fill == 0 {
		return nil
	}

	crc := crc16Calc(f.buf[:f.fill])
	f.buf[f.fill] = byte(crc)
	f.buf[f.fill+1] = byte(crc >> 8)
	f.fill += 2

	f.out = f.out[:0]
	f.out = cobsEncode(f.out, f.buf[:f.fill])

	f.logger.Debug("flush: %d staged bytes -> %d encoded bytes", f.fill, len(f.out))
	f.fill = 0

	if err := f.sink(f.out); err != nil {
		return err
	}
	return f.sink(zeroDelimiter[:])
}
