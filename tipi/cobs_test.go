package tipi

import (
	"bytes"
	"testing"
)

func TestCOBSKnownVectors(t *testing.T) {
	cases := []struct {
		in  []byte
		out []byte
	}{
		{[]byte{}, []byte{0x01}},
		{[]byte{0x00}, []byte{0x01, 0x01}},
		{[]byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33}},
		{[]byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44}},
		{[]byte{0x11, 0x00, 0x00, 0x00}, []byte{0x02, 0x11, 0x01, 0x01, 0x01}},
	}

	for _, c := range cases {
		got := cobsEncode(nil, c.in)
		if !bytes.Equal(got, c.out) {
			t.Errorf("cobsEncode(% x) = % x, want % x", c.in, got, c.out)
		}
		if bytes.IndexByte(got, 0x00) != -1 {
			t.Errorf("cobsEncode(% x) contains a zero byte: % x", c.in, got)
		}
	}
}

func TestCOBSRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0x00, 0x00, 0x00},
		bytes.Repeat([]byte{0xAA}, 300), // exercises the 0xFF run rollover
		append(bytes.Repeat([]byte{0xAA}, 253), 0x00, 0xBB),
	}

	for _, in := range inputs {
		enc := cobsEncode(nil, in)
		if bytes.IndexByte(enc, 0x00) != -1 {
			t.Fatalf("encoded form of % x contains a zero byte: % x", in, enc)
		}
		dec, err := cobsDecode(nil, enc)
		if err != nil {
			t.Fatalf("cobsDecode(% x) error: %v", enc, err)
		}
		if !bytes.Equal(dec, in) {
			t.Fatalf("round-trip mismatch: got % x, want % x", dec, in)
		}
	}
}

func TestCOBSDecodeMalformed(t *testing.T) {
	// A zero byte inside a supposedly-encoded frame is invalid.
	if _, err := cobsDecode(nil, []byte{0x02, 0x00, 0x01}); err != ErrMalformedCOBS {
		t.Fatalf("expected ErrMalformedCOBS for embedded zero, got %v", err)
	}
	// A code byte claiming a run longer than what remains is invalid.
	if _, err := cobsDecode(nil, []byte{0x05, 0x01, 0x02}); err != ErrMalformedCOBS {
		t.Fatalf("expected ErrMalformedCOBS for truncated run, got %v", err)
	}
}
