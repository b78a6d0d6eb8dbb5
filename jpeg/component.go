package jpeg

// component holds the frame-level metadata of one color component.
type component struct {
	h  int   // horizontal sampling factor
	v  int   // vertical sampling factor
	id uint8 // component identifier from the frame header
	tq uint8 // quantization table selector
}

// processSOF parses a Start Of Frame segment of n payload bytes, validating
// the sample precision, component count, and the supported subsampling
// geometries.
func (d *decoder) processSOF(n int) error {
	if d.sawSOF {
		return NewDecoderError(KindMultipleSOF, "multiple SOF markers")
	}
	switch n {
	case 6 + 3*1: // Grayscale image.
		d.nComp = 1
	case 6 + 3*3: // YCbCr or RGB image.
		d.nComp = 3
	case 6 + 3*4: // CMYK or YCbCrK image.
		d.nComp = 4
	default:
		return NewDecoderError(KindUnsupportedMode, "number of components")
	}
	if err := d.br.readFull(d.tmp[:n]); err != nil {
		return err
	}
	// Only 8-bit precision is supported.
	if d.tmp[0] != 8 {
		return NewDecoderError(KindUnsupportedMode, "precision")
	}
	d.height = int(d.tmp[1])<<8 + int(d.tmp[2])
	d.width = int(d.tmp[3])<<8 + int(d.tmp[4])
	if d.height == 0 || d.width == 0 {
		return NewDecoderError(KindUnsupportedMode, "image dimensions cannot be zero")
	}
	if int(d.tmp[5]) != d.nComp {
		return NewDecoderError(KindUnsupportedMode, "SOF has wrong length")
	}

	for i := 0; i < d.nComp; i++ {
		d.comp[i].id = d.tmp[6+3*i]
		// Section B.2.2 states that "the value of C_i shall be different from
		// the values of C_1 through C_(i-1)".
		for j := 0; j < i; j++ {
			if d.comp[i].id == d.comp[j].id {
				return NewDecoderError(KindUnsupportedMode, "repeated component identifier")
			}
		}

		d.comp[i].tq = d.tmp[8+3*i]
		if d.comp[i].tq > maxTq {
			return NewDecoderError(KindBadQuantTable, "bad Tq value")
		}

		hv := d.tmp[7+3*i]
		h, v := int(hv>>4), int(hv&0x0f)
		if h < 1 || 4 < h || v < 1 || 4 < v {
			return NewDecoderError(KindUnsupportedSubsampling, "luma/chroma subsampling ratio")
		}
		if h == 3 || v == 3 {
			return NewDecoderError(KindUnsupportedSubsampling, "non-integer subsampling ratio")
		}
		switch d.nComp {
		case 1:
			// If a JPEG image has only one component, section A.2 says "this
			// data is non-interleaved by definition" and the order of data
			// units is always left-to-right, top-to-bottom regardless of the
			// nominal H and V. The component's (h, v) is effectively (1, 1).
			h, v = 1, 1

		case 3:
			// For YCbCr images, only the 4:4:4, 4:4:0, 4:2:2, 4:2:0, 4:1:1
			// and 4:1:0 chroma subsampling ratios are supported. The luma
			// factors are one of (1,1), (1,2), (2,1), (2,2), (4,1), (4,2),
			// and the chroma factors must divide the luma factors.
			switch i {
			case 0:
				if v == 4 {
					return NewDecoderError(KindUnsupportedSubsampling, "unsupported subsampling ratio")
				}
			case 1:
				if d.comp[0].h%h != 0 || d.comp[0].v%v != 0 {
					return NewDecoderError(KindUnsupportedSubsampling, "unsupported subsampling ratio")
				}
			case 2:
				if d.comp[1].h != h || d.comp[1].v != v {
					return NewDecoderError(KindUnsupportedSubsampling, "unsupported subsampling ratio")
				}
			}

		case 4:
			// For 4-component images (either CMYK or YCbCrK), only two
			// sampling patterns are accepted: [0x11 0x11 0x11 0x11] and
			// [0x22 0x11 0x11 0x22].
			switch i {
			case 0:
				if hv != 0x11 && hv != 0x22 {
					return NewDecoderError(KindUnsupportedSubsampling, "unsupported subsampling ratio")
				}
			case 1, 2:
				if hv != 0x11 {
					return NewDecoderError(KindUnsupportedSubsampling, "unsupported subsampling ratio")
				}
			case 3:
				if d.comp[0].h != h || d.comp[0].v != v {
					return NewDecoderError(KindUnsupportedSubsampling, "unsupported subsampling ratio")
				}
			}
		}

		d.comp[i].h = h
		d.comp[i].v = v
	}

	d.sawSOF = true
	return nil
}
