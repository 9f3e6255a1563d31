package tipi

import "github.com/ruben1729/tipi-go/varint"

// Wire type identifiers: the low 3 bits of a record's varint-encoded key
// (spec.md §3). WireFix64 is reserved and never emitted by Sender; the
// receiver treats it, and any other undefined value, as ErrUnknownWireType
// to leave room for future extension without silent corruption (§9).
const (
	WireVarint = 0 // base-128 unsigned, 1-5 bytes
	WireFix64  = 1 // reserved; not emitted
	WireLen    = 2 // varint length N, then N raw bytes
	WireFix32  = 5 // 4 little-endian bytes (float bit pattern)
)

// maxBlobLength is the hard cap on a LEN record's declared length
// (spec.md §3); lengths above this are a record error.
const maxBlobLength = 256

// reserved is the number of staging-buffer bytes kept free at all times
// during record assembly, protecting room for the CRC-16 trailer and the
// COBS worst-case growth header (spec.md §3).
const reserved = 8

// minBufferSize and maxBufferSize bound a Sender's staging buffer
// (spec.md §3, §6.2).
const (
	minBufferSize = 16
	maxBufferSize = 200
)

// encodeKey returns the varint-encoded key byte(s) for (tag, wire):
// key = (tag << 3) | wire, per spec.md §3. Both sides decode the key as a
// full varint (§9's preferred, symmetric design) rather than the
// reference receiver's single-byte shortcut, so tag is not capped at 15.
func encodeKey(dst []byte, tag uint32, wire uint8) []byte {
	return varint.Encode(dst, (tag<<3)|uint32(wire))
}
