package jpeg

import "fmt"

const (
	dcTableClass = 0
	acTableClass = 1
)

// scanComponent describes one component's table selection within a scan.
type scanComponent struct {
	compIndex int
	td        uint8 // DC Huffman table selector
	ta        uint8 // AC Huffman table selector
}

// processSOS parses a Start Of Scan segment of n payload bytes and decodes
// the entropy-coded data that follows it.
func (d *decoder) processSOS(n int) error {
	if !d.sawSOF {
		return NewDecoderError(KindMissingSOF, "missing SOF marker")
	}
	if n < 6 || 4+2*d.nComp < n || n%2 != 0 {
		return NewDecoderError(KindBadSOSParams, "SOS has wrong length")
	}
	if err := d.br.readFull(d.tmp[:n]); err != nil {
		return err
	}
	nComp := int(d.tmp[0])
	if n != 4+2*nComp {
		return NewDecoderError(KindBadSOSParams, "SOS length inconsistent with number of components")
	}

	var scan [maxComponents]scanComponent
	totalHV := 0
	for i := 0; i < nComp; i++ {
		cs := d.tmp[1+2*i] // Component selector.
		compIndex := -1
		for j, comp := range d.comp[:d.nComp] {
			if cs == comp.id {
				compIndex = j
			}
		}
		if compIndex < 0 {
			return NewDecoderError(KindBadSOSParams, "unknown component selector")
		}
		scan[i].compIndex = compIndex
		// Section B.2.3 states that "the value of Cs_j shall be different
		// from the values of Cs_1 through Cs_(j-1)". The frame component
		// identifiers are already unique, so unique indexes suffice.
		for j := 0; j < i; j++ {
			if scan[i].compIndex == scan[j].compIndex {
				return NewDecoderError(KindBadSOSParams, "repeated component selector")
			}
		}
		totalHV += d.comp[compIndex].h * d.comp[compIndex].v

		scan[i].td = d.tmp[2+2*i] >> 4
		if t := scan[i].td; t > maxTh || (!d.progressive && t > 1) {
			return NewDecoderError(KindBadSOSParams, "bad Td value")
		}
		scan[i].ta = d.tmp[2+2*i] & 0x0f
		if t := scan[i].ta; t > maxTh || (!d.progressive && t > 1) {
			return NewDecoderError(KindBadSOSParams, "bad Ta value")
		}
	}
	// Section B.2.3: when a scan interleaves more than one component, the
	// total H x V across the scan's components may not exceed 10.
	if nComp > 1 && totalHV > 10 {
		return NewDecoderError(KindBadSOSParams, "total sampling factors too large")
	}

	// zigStart and zigEnd are the spectral selection bounds and ah and al
	// are the successive approximation high and low values; the standard
	// calls them Ss, Se, Ah and Al. Baseline scans hard-code the full band
	// with no point transform.
	zigStart, zigEnd, ah, al := int32(0), int32(blockSize-1), uint32(0), uint32(0)
	if d.progressive {
		zigStart = int32(d.tmp[1+2*nComp])
		zigEnd = int32(d.tmp[2+2*nComp])
		ah = uint32(d.tmp[3+2*nComp] >> 4)
		al = uint32(d.tmp[3+2*nComp] & 0x0f)
		if (zigStart == 0 && zigEnd != 0) || zigStart > zigEnd || blockSize <= zigEnd {
			return NewDecoderError(KindBadSOSParams, "bad spectral selection bounds")
		}
		if zigStart != 0 && nComp != 1 {
			return NewDecoderError(KindBadSOSParams, "progressive AC coefficients for more than one component")
		}
		if ah != 0 && ah != al+1 {
			return NewDecoderError(KindBadSOSParams, "bad successive approximation values")
		}
	}

	// mxx and myy are the number of MCUs (Minimum Coded Units) covering the
	// image.
	h0, v0 := d.comp[0].h, d.comp[0].v
	mxx := (d.width + 8*h0 - 1) / (8 * h0)
	myy := (d.height + 8*v0 - 1) / (8 * v0)
	if d.img1 == nil && d.img3 == nil {
		d.makeImg(mxx, myy)
	}
	if d.progressive {
		for i := 0; i < nComp; i++ {
			compIndex := scan[i].compIndex
			if d.progCoeffs[compIndex] == nil {
				d.progCoeffs[compIndex] = make([]block, mxx*myy*d.comp[compIndex].h*d.comp[compIndex].v)
			}
		}
	}

	d.sawScan = true
	d.br.resetBits()

	mcu, expectedRST := 0, uint8(markerRST0)
	var (
		// b holds the coefficients of the current block, in natural (not
		// zig-zag) order.
		b  block
		dc [maxComponents]int32
		// bx and by locate the current block in units of 8x8 blocks: the
		// third block of the first row has (bx, by) = (2, 0).
		bx, by     int
		blockCount int
	)
	for my := 0; my < myy; my++ {
		for mx := 0; mx < mxx; mx++ {
			for i := 0; i < nComp; i++ {
				compIndex := scan[i].compIndex
				hi := d.comp[compIndex].h
				vi := d.comp[compIndex].v
				for j := 0; j < hi*vi; j++ {
					// Interleaved scans visit the hi*vi blocks of each
					// component tile in row-major order inside the MCU.
					// Non-interleaved scans run left-to-right, top-to-bottom
					// over the component's own grid; grid positions whose
					// pixel-space corner lies outside the image bounds still
					// consume their Huffman symbols, but their samples never
					// reach the pixel store.
					skipped := false
					if nComp != 1 {
						bx = hi*mx + j%hi
						by = vi*my + j/hi
					} else {
						q := mxx * hi
						bx = blockCount % q
						by = blockCount / q
						blockCount++
						skipped = bx*8 >= d.width || by*8 >= d.height
					}

					// Load the previous partial coefficients, if applicable.
					if d.progressive {
						b = d.progCoeffs[compIndex][by*mxx*hi+bx]
					} else {
						b = block{}
					}

					if ah != 0 {
						if err := d.refine(&b, &d.huff[acTableClass][scan[i].ta], zigStart, zigEnd, 1<<al); err != nil {
							return err
						}
					} else {
						zig := zigStart
						if zig == 0 {
							zig++
							// Decode the DC coefficient, as specified in
							// section F.2.2.1.
							value, err := d.decodeHuffman(&d.huff[dcTableClass][scan[i].td])
							if err != nil {
								return err
							}
							if value > 16 {
								return NewDecoderError(KindExcessiveDC, "excessive DC component")
							}
							dcDelta, err := d.br.receiveExtend(value)
							if err != nil {
								return err
							}
							dc[compIndex] += dcDelta
							b[0] = dc[compIndex] << al
						}

						if zig <= zigEnd && d.eobRun > 0 {
							// The end-of-band run covers this block.
							d.eobRun--
						} else {
							// Decode the AC coefficients, as specified in
							// section F.2.2.2.
							huff := &d.huff[acTableClass][scan[i].ta]
							for ; zig <= zigEnd; zig++ {
								value, err := d.decodeHuffman(huff)
								if err != nil {
									return err
								}
								val0 := value >> 4
								val1 := value & 0x0f
								if val1 != 0 {
									zig += int32(val0)
									if zig > zigEnd {
										break
									}
									ac, err := d.br.receiveExtend(val1)
									if err != nil {
										return err
									}
									b[unzig[zig]] = ac << al
								} else {
									if val0 != 0x0f {
										d.eobRun = uint16(1) << val0
										if val0 != 0 {
											bits, err := d.br.decodeBits(int32(val0))
											if err != nil {
												return err
											}
											d.eobRun |= uint16(bits)
										}
										d.eobRun--
										break
									}
									zig += 0x0f
								}
							}
						}
					}

					if d.progressive {
						// Save the coefficients; dequantization and the
						// inverse DCT wait for the final scan.
						d.progCoeffs[compIndex][by*mxx*hi+bx] = b
						continue
					}
					if skipped {
						continue
					}
					if err := d.reconstructBlock(&b, bx, by, compIndex); err != nil {
						return err
					}
				}
			}
			mcu++

			if d.ri > 0 && mcu%d.ri == 0 && mcu < mxx*myy {
				// For well-formed input, the next RST marker follows
				// immediately, in cyclic order. Resynchronizing on corrupt
				// input is out of scope; any mismatch aborts.
				if err := d.br.readFull(d.tmp[:2]); err != nil {
					return err
				}
				if d.tmp[0] != 0xff || d.tmp[1] != expectedRST {
					return NewDecoderError(KindBadRestart,
						fmt.Sprintf("bad RST marker 0x%02x%02x, expected 0xff%02x", d.tmp[0], d.tmp[1], expectedRST))
				}
				expectedRST++
				if expectedRST == markerRST7+1 {
					expectedRST = markerRST0
				}
				// Reset the bit accumulator, the DC predictors, and the
				// end-of-band run.
				d.br.resetBits()
				dc = [maxComponents]int32{}
				d.eobRun = 0
			}
		}
	}

	return nil
}

// reconstructBlock dequantizes, performs the inverse DCT and writes the
// block to the destination plane at (8*bx, 8*by). Dequantization walks the
// component's selected table in zig-zag order.
func (d *decoder) reconstructBlock(b *block, bx, by, compIndex int) error {
	qt := &d.quant[d.comp[compIndex].tq]
	for zig := 0; zig < blockSize; zig++ {
		b[unzig[zig]] *= qt[zig]
	}
	idct(b)
	dst, stride := []byte(nil), 0
	if d.nComp == 1 {
		dst, stride = d.img1.Pix[8*(by*d.img1.Stride+bx):], d.img1.Stride
	} else {
		switch compIndex {
		case 0:
			dst, stride = d.img3.Y[8*(by*d.img3.YStride+bx):], d.img3.YStride
		case 1:
			dst, stride = d.img3.Cb[8*(by*d.img3.CStride+bx):], d.img3.CStride
		case 2:
			dst, stride = d.img3.Cr[8*(by*d.img3.CStride+bx):], d.img3.CStride
		case 3:
			dst, stride = d.kPix[8*(by*d.kStride+bx):], d.kStride
		default:
			return NewDecoderError(KindUnsupportedMode, "too many components")
		}
	}
	// Level shift by +128, clip to [0, 255], and write to dst.
	for y := 0; y < 8; y++ {
		y8 := y * 8
		yStride := y * stride
		for x := 0; x < 8; x++ {
			c := b[y8+x]
			if c < -128 {
				c = 0
			} else if c > 127 {
				c = 255
			} else {
				c += 128
			}
			dst[yStride+x] = uint8(c)
		}
	}
	return nil
}
