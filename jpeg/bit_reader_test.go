package jpeg

import (
	"bytes"
	"testing"
)

func newTestBitReader(data []byte) *bitReader {
	return &bitReader{inner: bytes.NewReader(data)}
}

// stuff escapes a raw byte sequence the way an encoder would, doubling every
// 0xff with a 0x00.
func stuff(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+2)
	for _, b := range raw {
		out = append(out, b)
		if b == 0xff {
			out = append(out, 0x00)
		}
	}
	return out
}

// TestReadByteStuffedRoundTrip checks that stuffing then reading through
// readByteStuffed reproduces the raw sequence exactly.
func TestReadByteStuffedRoundTrip(t *testing.T) {
	raws := [][]byte{
		{0x00},
		{0xff},
		{0x12, 0x34, 0x56},
		{0xff, 0xff, 0xff},
		{0x01, 0xff, 0x02, 0xff},
		bytes.Repeat([]byte{0xab, 0xff}, 3000), // forces window refills
	}
	for i, raw := range raws {
		br := newTestBitReader(stuff(raw))
		for j, want := range raw {
			got, err := br.readByteStuffed()
			if err != nil {
				t.Fatalf("case %d byte %d: %v", i, j, err)
			}
			if got != want {
				t.Fatalf("case %d byte %d: got 0x%02x, want 0x%02x", i, j, got, want)
			}
		}
	}
}

// TestReadByteStuffedMarker checks that a 0xff followed by anything but 0x00
// is reported as a missing stuffing byte.
func TestReadByteStuffedMarker(t *testing.T) {
	for _, next := range []byte{0x01, 0xd9, 0xff} {
		br := newTestBitReader([]byte{0xff, next, 0x00})
		if _, err := br.readByteStuffed(); err != errMissingFF00 {
			t.Errorf("0xff 0x%02x: got %v, want errMissingFF00", next, err)
		}
	}
}

// TestUnreadByteStuffed checks the two-byte push-back after a stuffed read.
func TestUnreadByteStuffed(t *testing.T) {
	br := newTestBitReader([]byte{0xff, 0x00, 0x42})
	x, err := br.readByteStuffed()
	if err != nil || x != 0xff {
		t.Fatalf("readByteStuffed: got 0x%02x, %v", x, err)
	}
	if br.nUnreadable != 2 {
		t.Fatalf("nUnreadable: got %d, want 2", br.nUnreadable)
	}
	br.unreadByteStuffed()
	if br.nUnreadable != 0 {
		t.Fatalf("nUnreadable after unread: got %d, want 0", br.nUnreadable)
	}
	// The same stuffed byte reads back again.
	x, err = br.readByteStuffed()
	if err != nil || x != 0xff {
		t.Fatalf("re-read: got 0x%02x, %v", x, err)
	}
}

// TestReceiveExtendSymmetry writes the smallest, a middle and the largest
// magnitude of each category 1..10, with both signs, as magnitude bits and
// reads each back via receiveExtend.
func TestReceiveExtendSymmetry(t *testing.T) {
	for t1 := uint8(1); t1 <= 10; t1++ {
		lo := int32(1) << (t1 - 1)
		hi := int32(1)<<t1 - 1
		for _, mag := range []int32{lo, lo + (hi-lo)/2, hi} {
			for _, x := range []int32{mag, -mag} {
				bits := uint32(x)
				if x < 0 {
					bits = uint32(x + hi)
				}
				var p bitPacker
				p.write(bits, uint(t1))
				br := newTestBitReader(p.bytesPadded())
				got, err := br.receiveExtend(t1)
				if err != nil {
					t.Fatalf("t=%d x=%d: %v", t1, x, err)
				}
				if got != x {
					t.Errorf("t=%d: wrote %d, read back %d", t1, x, got)
				}
			}
		}
	}
}

// TestDecodeBits reads multi-bit groups across byte boundaries.
func TestDecodeBits(t *testing.T) {
	br := newTestBitReader([]byte{0b1011_0110, 0b0101_0011})
	cases := []struct {
		n    int32
		want uint32
	}{
		{3, 0b101},
		{5, 0b10110},
		{6, 0b010100},
		{2, 0b11},
	}
	for _, c := range cases {
		got, err := br.decodeBits(c.n)
		if err != nil {
			t.Fatalf("decodeBits(%d): %v", c.n, err)
		}
		if got != c.want {
			t.Errorf("decodeBits(%d): got %b, want %b", c.n, got, c.want)
		}
	}
}

// TestEnsureBitsShortData checks that running out of entropy data surfaces
// as the short-data signal rather than a hard EOF.
func TestEnsureBitsShortData(t *testing.T) {
	br := newTestBitReader([]byte{0x5a})
	if err := br.ensureBits(16); err != errShortHuffmanData {
		t.Fatalf("got %v, want errShortHuffmanData", err)
	}
}
