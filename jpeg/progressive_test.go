package jpeg

import (
	"bytes"
	"testing"
)

// refineTestDecoder builds a decoder with an AC table and a bit-stream for
// driving refine directly. The table maps '0' to sym0 and '10' to sym1.
func refineTestDecoder(t *testing.T, sym0, sym1 byte, stream []byte) *decoder {
	t.Helper()
	d := buildTestTable(t, 1, 0, [16]byte{1, 1}, []byte{sym0, sym1})
	d.br = bitReader{inner: bytes.NewReader(stream)}
	return d
}

// TestRefineDC checks the single-bit DC refinement.
func TestRefineDC(t *testing.T) {
	cases := []struct {
		bit  byte
		want int32
	}{
		{0x80, 8 | 4}, // bit set: OR in delta
		{0x00, 8},     // bit clear: unchanged
	}
	for _, c := range cases {
		d := &decoder{}
		d.br = bitReader{inner: bytes.NewReader([]byte{c.bit})}
		var b block
		b[0] = 8
		if err := d.refine(&b, &d.huff[acTableClass][0], 0, 0, 4); err != nil {
			t.Fatalf("refine: %v", err)
		}
		if b[0] != c.want {
			t.Errorf("bit 0x%02x: b[0] = %d, want %d", c.bit, b[0], c.want)
		}
	}
}

// TestRefinePlacesNewCoefficient checks that an AC refinement pass places a
// newly non-zero coefficient with the transmitted sign.
func TestRefinePlacesNewCoefficient(t *testing.T) {
	// Symbols: '0' is (r=0, s=1), '10' is end-of-band.
	var p bitPacker
	p.write(0b0, 1)  // place a coefficient, zero run 0
	p.write(0b1, 1)  // positive sign
	p.write(0b10, 2) // end-of-band for the rest

	d := refineTestDecoder(t, 0x01, 0x00, p.bytesPadded())
	var b block
	if err := d.refine(&b, &d.huff[acTableClass][0], 1, 63, 4); err != nil {
		t.Fatalf("refine: %v", err)
	}
	if b[unzig[1]] != 4 {
		t.Errorf("b[unzig[1]] = %d, want 4", b[unzig[1]])
	}
	if d.eobRun != 0 {
		t.Errorf("eobRun = %d, want 0", d.eobRun)
	}
}

// TestRefineExistingCoefficients checks the sign-preserving correction of
// already non-zero coefficients during an end-of-band run.
func TestRefineExistingCoefficients(t *testing.T) {
	var p bitPacker
	p.write(0b1, 1) // correction bit for the positive coefficient
	p.write(0b1, 1) // correction bit for the negative coefficient

	d := refineTestDecoder(t, 0x01, 0x00, p.bytesPadded())
	d.eobRun = 1

	var b block
	b[unzig[2]] = 1
	b[unzig[5]] = -1
	if err := d.refine(&b, &d.huff[acTableClass][0], 1, 63, 4); err != nil {
		t.Fatalf("refine: %v", err)
	}
	if b[unzig[2]] != 5 {
		t.Errorf("positive coefficient: got %d, want 5", b[unzig[2]])
	}
	if b[unzig[5]] != -5 {
		t.Errorf("negative coefficient: got %d, want -5", b[unzig[5]])
	}
	if d.eobRun != 0 {
		t.Errorf("eobRun = %d, want 0", d.eobRun)
	}
}

// TestRefineRejectsWideMagnitude checks that a refinement symbol with a
// magnitude nibble outside {0, 1} is rejected.
func TestRefineRejectsWideMagnitude(t *testing.T) {
	var p bitPacker
	p.write(0b0, 1) // symbol 0x02: s=2

	d := refineTestDecoder(t, 0x02, 0x00, p.bytesPadded())
	var b block
	err := d.refine(&b, &d.huff[acTableClass][0], 1, 63, 4)
	decErr, ok := IsDecoderError(err)
	if !ok || decErr.Kind != KindUnexpectedHuffmanCode {
		t.Fatalf("got %v, want KindUnexpectedHuffmanCode", err)
	}
}

// TestRefineZeroRunSkip checks that a (15, 0) symbol, a run of sixteen zero
// positions, followed by end-of-band is accepted and places no coefficient.
func TestRefineZeroRunSkip(t *testing.T) {
	var p bitPacker
	p.write(0b0, 1)  // symbol 0xf0: run of 16 zeroes
	p.write(0b10, 2) // end-of-band

	d := refineTestDecoder(t, 0xf0, 0x00, p.bytesPadded())
	var b block
	if err := d.refine(&b, &d.huff[acTableClass][0], 1, 63, 4); err != nil {
		t.Fatalf("refine: %v", err)
	}
	for zig := 1; zig <= 63; zig++ {
		if b[unzig[zig]] != 0 {
			t.Errorf("b[unzig[%d]] = %d, want 0", zig, b[unzig[zig]])
		}
	}
}
