package tipi

// Consistent Overhead Byte Stuffing: removes every 0x00 byte from a
// payload at a cost of at most ceil(n/254)+1 overhead bytes, so the
// result can be safely delimited with a single trailing 0x00. This is a
// direct translation of stipi_cobs_encode from the C reference.

// cobsMaxOverhead bounds encoded length: n + ceil(n/254) + 1.
func cobsMaxOverhead(n int) int {
	return n + (n+253)/254 + 1
}

// cobsEncode appends the COBS encoding of src to dst and returns the
// extended slice. The result never contains a 0x00 byte.
func cobsEncode(dst []byte, src []byte) []byte {
	start := len(dst)
	dst = append(dst, 0) // placeholder for the first code byte
	codeIdx := start
	code := byte(1)

	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			code = 1
			dst = append(dst, 0) // placeholder for next code byte
			codeIdx = len(dst) - 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			code = 1
			dst = append(dst, 0)
			codeIdx = len(dst) - 1
		}
	}
	dst[codeIdx] = code
	return dst
}

// cobsDecode reverses cobsEncode, appending the original bytes to dst.
// It is used by test harnesses and the cmd/ tooling that must recover a
// full frame from the wire before CRC-verifying and handing payload
// bytes to the receiver's byte-at-a-time parser; the receiver state
// machine itself never calls this (spec §4.4: it consumes an
// already-unstuffed byte stream).
func cobsDecode(dst []byte, src []byte) ([]byte, error) {
	i := 0
	for i < len(src) {
		code := src[i]
		if code == 0 {
			return nil, ErrMalformedCOBS
		}
		i++
		runLen := int(code) - 1
		if i+runLen > len(src) {
			return nil, ErrMalformedCOBS
		}
		for _, b := range src[i : i+runLen] {
			if b == 0 {
				return nil, ErrMalformedCOBS
			}
		}
		dst = append(dst, src[i:i+runLen]...)
		i += runLen
		if code < 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}
