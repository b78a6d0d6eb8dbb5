package jpeg

// processDQT parses a Define Quantization Table segment of n payload bytes.
// Tables are kept in zig-zag order; dequantization walks them in that order
// alongside the coefficients. A single segment may carry multiple tables.
func (d *decoder) processDQT(n int) error {
loop:
	for n > 0 {
		n--
		x, err := d.br.readByte()
		if err != nil {
			return err
		}
		tq := x & 0x0f
		if tq > maxTq {
			return NewDecoderError(KindBadQuantTable, "bad Tq value")
		}
		switch x >> 4 {
		default:
			return NewDecoderError(KindBadQuantTable, "bad Pq value")
		case 0:
			if n < blockSize {
				break loop
			}
			n -= blockSize
			if err := d.br.readFull(d.tmp[:blockSize]); err != nil {
				return err
			}
			for i := range d.quant[tq] {
				d.quant[tq][i] = int32(d.tmp[i])
			}
		case 1:
			if n < 2*blockSize {
				break loop
			}
			n -= 2 * blockSize
			if err := d.br.readFull(d.tmp[:2*blockSize]); err != nil {
				return err
			}
			for i := range d.quant[tq] {
				d.quant[tq][i] = int32(d.tmp[2*i])<<8 | int32(d.tmp[2*i+1])
			}
		}
	}
	if n != 0 {
		return NewDecoderError(KindBadQuantTable, "DQT has wrong length")
	}
	return nil
}
