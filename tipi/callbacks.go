package tipi

// Callbacks provides the Receiver's hooks into the application layer.
// Every field is optional; nil callbacks fall back to a no-op default,
// following the same merge-over-defaults pattern the rest of this
// package's config plumbing uses.
type Callbacks struct {
	// OnField is invoked once per fully decoded field, with the raw
	// payload bytes in wire order (spec.md §4.4's "handler contract").
	// For VARINT fields payload is the 4-byte little-endian value; the
	// caller reverses ZigZag itself if the field is signed. For LEN
	// fields of length 0, payload is nil/empty. The slice is only valid
	// until OnField returns: Receiver reuses its scratch buffer.
	OnField func(tag uint32, payload []byte)

	// OnRecordError is invoked when parse_byte detects a malformed
	// record (unknown wire type, varint overflow, length above the hard
	// cap). The parser has already returned to IDLE; this is purely a
	// notification hook.
	OnRecordError func(err error)

	// OnFrameError is invoked by FrameDecoder when a frame fails CRC
	// verification or COBS decoding. The frame has been discarded and
	// the decoder has resynchronized at the next delimiter.
	OnFrameError func(err error)
}

func defaultCallbacks() Callbacks {
	return Callbacks{
		OnField:       func(uint32, []byte) {},
		OnRecordError: func(error) {},
		OnFrameError:  func(error) {},
	}
}

func mergeCallbacks(user Callbacks) Callbacks {
	def := defaultCallbacks()
	if user.OnField == nil {
		user.OnField = def.OnField
	}
	if user.OnRecordError == nil {
		user.OnRecordError = def.OnRecordError
	}
	if user.OnFrameError == nil {
		user.OnFrameError = def.OnFrameError
	}
	return user
}
