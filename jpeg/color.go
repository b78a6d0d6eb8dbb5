package jpeg

import (
	"runtime"
	"sync"
)

// parallelConvertThreshold is the pixel count above which the final
// conversion fans rows out to worker goroutines. Below it the goroutine
// setup costs more than it saves.
const parallelConvertThreshold = 1 << 16

// isRGB reports whether a 3-component image carries RGB rather than YCbCr
// samples. JFIF images are YCbCr by definition; otherwise an Adobe
// "no transform" marker or literal 'R','G','B' component identifiers mean
// RGB.
func (d *decoder) isRGB() bool {
	if d.jfif {
		return false
	}
	if d.adobeTransformValid && d.adobeTransform == adobeTransformUnknown {
		// adobeTransformUnknown means the channels are passed through, so
		// a 3-component image is RGB.
		return true
	}
	return d.comp[0].id == 'R' && d.comp[1].id == 'G' && d.comp[2].id == 'B'
}

// ycbcrToRGB converts one pixel using the BT.601 coefficients scaled by
// 1<<16, with proper rounding.
func ycbcrToRGB(yy, cb, cr byte) (byte, byte, byte) {
	y1 := int32(yy)
	cb1 := int32(cb) - 128
	cr1 := int32(cr) - 128

	r := y1 + (91881*cr1+32768)>>16
	g := y1 - (22554*cb1+46802*cr1+32768)>>16
	b := y1 + (116130*cb1+32768)>>16

	return clampByte(r), clampByte(g), clampByte(b)
}

func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// convertToRGBA flattens the reconstructed sample planes into a dense
// row-major RGBA buffer according to the detected color model. Each output
// row depends only on the read-only planes, so rows are converted in
// parallel for large images.
func (d *decoder) convertToRGBA() ([]byte, error) {
	w, h := d.width, d.height
	pix := make([]byte, 4*w*h)

	var convertRow func(y int, dst []byte)
	switch d.nComp {
	case 1:
		convertRow = d.grayRow
	case 3:
		if d.isRGB() {
			convertRow = d.rgbRow
		} else {
			convertRow = d.ycbcrRow
		}
	case 4:
		if !d.adobeTransformValid {
			return nil, NewDecoderError(KindUnknownColorModel,
				"4-component JPEG without Adobe APP14 metadata")
		}
		if d.adobeTransform == adobeTransformUnknown {
			convertRow = d.cmykRow
		} else {
			convertRow = d.ycbcrkRow
		}
	default:
		return nil, NewDecoderError(KindUnknownColorModel, "missing SOF marker")
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > h {
		workers = h
	}
	if w*h < parallelConvertThreshold || workers < 2 {
		for y := 0; y < h; y++ {
			convertRow(y, pix[4*y*w:4*(y+1)*w])
		}
		return pix, nil
	}

	var wg sync.WaitGroup
	rowsPer := (h + workers - 1) / workers
	for y0 := 0; y0 < h; y0 += rowsPer {
		y1 := y0 + rowsPer
		if y1 > h {
			y1 = h
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				convertRow(y, pix[4*y*w:4*(y+1)*w])
			}
		}(y0, y1)
	}
	wg.Wait()
	return pix, nil
}

// grayRow converts one row of a grayscale image.
func (d *decoder) grayRow(y int, dst []byte) {
	src := d.img1.Pix[y*d.img1.Stride:]
	for x := 0; x < d.width; x++ {
		g := src[x]
		dst[4*x+0] = g
		dst[4*x+1] = g
		dst[4*x+2] = g
		dst[4*x+3] = 255
	}
}

// chromaScale returns the per-axis subsampling divisors of component c
// relative to luma.
func (d *decoder) chromaScale(c int) (sx, sy int) {
	return d.comp[0].h / d.comp[c].h, d.comp[0].v / d.comp[c].v
}

// ycbcrRow converts one row of a YCbCr image.
func (d *decoder) ycbcrRow(y int, dst []byte) {
	sx, sy := d.chromaScale(1)
	yRow := d.img3.Y[y*d.img3.YStride:]
	cRow := (y / sy) * d.img3.CStride
	for x := 0; x < d.width; x++ {
		ci := cRow + x/sx
		r, g, b := ycbcrToRGB(yRow[x], d.img3.Cb[ci], d.img3.Cr[ci])
		dst[4*x+0] = r
		dst[4*x+1] = g
		dst[4*x+2] = b
		dst[4*x+3] = 255
	}
}

// rgbRow converts one row of an image whose three components are literal
// red, green and blue samples.
func (d *decoder) rgbRow(y int, dst []byte) {
	sx, sy := d.chromaScale(1)
	rRow := d.img3.Y[y*d.img3.YStride:]
	cRow := (y / sy) * d.img3.CStride
	for x := 0; x < d.width; x++ {
		ci := cRow + x/sx
		dst[4*x+0] = rRow[x]
		dst[4*x+1] = d.img3.Cb[ci]
		dst[4*x+2] = d.img3.Cr[ci]
		dst[4*x+3] = 255
	}
}

// cmykRow converts one row of an Adobe CMYK image. The stored samples are
// inverted (255 means no ink), so R = C' * K' / 255 for stored C' and K'.
func (d *decoder) cmykRow(y int, dst []byte) {
	sx, sy := d.chromaScale(1)
	cRowY := d.img3.Y[y*d.img3.YStride:]
	cRow := (y / sy) * d.img3.CStride
	kRow := d.kPix[y*d.kStride:]
	for x := 0; x < d.width; x++ {
		ci := cRow + x/sx
		k := uint32(kRow[x])
		dst[4*x+0] = byte(uint32(cRowY[x]) * k / 255)
		dst[4*x+1] = byte(uint32(d.img3.Cb[ci]) * k / 255)
		dst[4*x+2] = byte(uint32(d.img3.Cr[ci]) * k / 255)
		dst[4*x+3] = 255
	}
}

// ycbcrkRow converts one row of a YCbCrK image: YCbCr to RGB first, then the
// inverted K plane scales the result the same way as for CMYK.
func (d *decoder) ycbcrkRow(y int, dst []byte) {
	sx, sy := d.chromaScale(1)
	yRow := d.img3.Y[y*d.img3.YStride:]
	cRow := (y / sy) * d.img3.CStride
	kRow := d.kPix[y*d.kStride:]
	for x := 0; x < d.width; x++ {
		ci := cRow + x/sx
		r, g, b := ycbcrToRGB(yRow[x], d.img3.Cb[ci], d.img3.Cr[ci])
		k := uint32(kRow[x])
		dst[4*x+0] = byte(uint32(r) * k / 255)
		dst[4*x+1] = byte(uint32(g) * k / 255)
		dst[4*x+2] = byte(uint32(b) * k / 255)
		dst[4*x+3] = 255
	}
}
