package jpeg

import "io"

// streamBufferSize is the capacity of the sliding input window.
const streamBufferSize = 4096

// bitReader pulls bytes from an io.Reader through a sliding window and
// extracts MSB-first bits from the byte-stuffed entropy stream. Huffman
// decoding can overshoot by up to two raw bytes when it refills past a
// marker, so the window always keeps the last two bytes available for
// push-back and nUnreadable records how many of them belong to the
// overshoot.
type bitReader struct {
	inner io.Reader

	// buf is the window; bytes in [i, j) are valid.
	buf [streamBufferSize]byte
	i, j int

	// nUnreadable is the number of raw bytes consumed for the most recent
	// readByteStuffed call (1 or 2), or 0 if the position is settled.
	nUnreadable int

	// Bit accumulator: count bits are held in the low bits of acc, and
	// mask probes the most significant unread bit (0 when count is 0).
	acc   uint32
	mask  uint32
	count int32
}

// fill slides the last two window bytes to the front and reads more input.
// An exhausted reader is reported as KindUnexpectedEOF.
func (b *bitReader) fill() error {
	if b.i != b.j {
		panic("jpeg: fill called when unread bytes exist")
	}

	// Preserve the last two bytes so that readByteStuffed can be unread.
	if b.j > 2 {
		b.buf[0] = b.buf[b.j-2]
		b.buf[1] = b.buf[b.j-1]
		b.i, b.j = 2, 2
	}

	n, err := b.inner.Read(b.buf[b.j:])
	b.j += n
	if n > 0 {
		return nil
	}
	if err == io.EOF || err == nil {
		return errUnexpectedEOF
	}
	return err
}

// readByte returns the next raw byte, refilling the window on exhaustion.
// It does not interpret byte stuffing and settles any pending push-back.
func (b *bitReader) readByte() (byte, error) {
	for b.i == b.j {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	x := b.buf[b.i]
	b.i++
	b.nUnreadable = 0
	return x, nil
}

// readByteStuffed returns the next byte of entropy-coded data, folding the
// 0xff 0x00 escape into a literal 0xff. Any other 0xff sequence is a marker
// and yields errMissingFF00 so the caller can resynchronize.
func (b *bitReader) readByteStuffed() (byte, error) {
	if b.i+2 <= b.j {
		x := b.buf[b.i]
		b.i++
		b.nUnreadable = 1
		if x != 0xff {
			return x, nil
		}
		if b.buf[b.i] != 0x00 {
			return 0, errMissingFF00
		}
		b.i++
		b.nUnreadable = 2
		return 0xff, nil
	}

	b.nUnreadable = 0
	x, err := b.readByte()
	if err != nil {
		return 0, err
	}
	b.nUnreadable = 1
	if x != 0xff {
		return x, nil
	}
	x, err = b.readByte()
	if err != nil {
		return 0, err
	}
	b.nUnreadable = 2
	if x != 0x00 {
		return 0, errMissingFF00
	}
	return 0xff, nil
}

// unreadByteStuffed rewinds the window past the most recent stuffed read and
// drops a whole byte from the accumulator when one is present. It is called
// on fall-through from the fast Huffman path, and by readFull and skip to
// undo an overshoot before switching to raw reads.
func (b *bitReader) unreadByteStuffed() {
	b.i -= b.nUnreadable
	b.nUnreadable = 0
	if b.count >= 8 {
		b.acc >>= 8
		b.count -= 8
		b.mask >>= 8
	}
}

// readFull fills p with exactly len(p) raw bytes.
func (b *bitReader) readFull(p []byte) error {
	// Undo the overshot bytes, if any, before switching to raw reads.
	if b.nUnreadable != 0 {
		if b.count >= 8 {
			b.unreadByteStuffed()
		}
		b.nUnreadable = 0
	}

	for {
		n := copy(p, b.buf[b.i:b.j])
		p = p[n:]
		b.i += n
		if len(p) == 0 {
			return nil
		}
		if err := b.fill(); err != nil {
			return err
		}
	}
}

// skip discards n raw bytes.
func (b *bitReader) skip(n int) error {
	if b.nUnreadable != 0 {
		if b.count >= 8 {
			b.unreadByteStuffed()
		}
		b.nUnreadable = 0
	}

	for {
		m := b.j - b.i
		if m > n {
			m = n
		}
		b.i += m
		n -= m
		if n == 0 {
			return nil
		}
		if err := b.fill(); err != nil {
			return err
		}
	}
}

// ensureBits refills the accumulator until at least n bits are unread. When
// the entropy data runs into a marker the condition is reported as
// errMissingFF00, and end of stream as errShortHuffmanData, so the Huffman
// decoder can take its slow path.
func (b *bitReader) ensureBits(n int32) error {
	for b.count < n {
		c, err := b.readByteStuffed()
		if err != nil {
			if err == errUnexpectedEOF {
				return errShortHuffmanData
			}
			return err
		}
		b.acc = b.acc<<8 | uint32(c)
		b.count += 8
		if b.mask == 0 {
			b.mask = 1 << 7
		} else {
			b.mask <<= 8
		}
	}
	return nil
}

// receiveExtend reads t magnitude bits and sign-extends them per the F.2.2.1
// EXTEND procedure.
func (b *bitReader) receiveExtend(t uint8) (int32, error) {
	if b.count < int32(t) {
		if err := b.ensureBits(int32(t)); err != nil {
			return 0, err
		}
	}
	b.count -= int32(t)
	b.mask >>= t
	s := int32(1) << t
	x := int32(b.acc>>uint8(b.count)) & (s - 1)
	if x < s>>1 {
		x += ((-1) << t) + 1
	}
	return x, nil
}

// decodeBit reads a single bit.
func (b *bitReader) decodeBit() (bool, error) {
	if b.count == 0 {
		if err := b.ensureBits(1); err != nil {
			return false, err
		}
	}
	ret := b.acc&b.mask != 0
	b.count--
	b.mask >>= 1
	return ret, nil
}

// decodeBits reads n bits as an unsigned value.
func (b *bitReader) decodeBits(n int32) (uint32, error) {
	if b.count < n {
		if err := b.ensureBits(n); err != nil {
			return 0, err
		}
	}
	ret := b.acc >> uint32(b.count-n)
	ret &= (1 << uint32(n)) - 1
	b.count -= n
	b.mask >>= uint32(n)
	return ret, nil
}

// resetBits empties the accumulator. Called at scan start and after every
// restart marker, which are byte-aligned by definition.
func (b *bitReader) resetBits() {
	b.acc = 0
	b.mask = 0
	b.count = 0
}
