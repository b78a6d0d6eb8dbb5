package jpeg

import (
	"fmt"
	"image"
	"image/color"
	"io"
)

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", Decode, DecodeConfig)
}

// ImageSink receives the fully decoded image. SetPixels is called exactly
// once, after the whole image has been reconstructed, with a dense row-major
// RGBA buffer of len 4*width*height.
type ImageSink interface {
	SetPixels(width, height int, pix []byte)
}

// ResolutionSink is implemented by sinks that want the JFIF pixel density.
// It is delivered as soon as the APP0 segment is parsed.
type ResolutionSink interface {
	SetResolution(horizontal, vertical uint16)
}

// MetadataSink is implemented by sinks that want the raw EXIF profile from
// the APP1 segment (the TIFF stream following the "Exif\0\0" header).
type MetadataSink interface {
	SetExifProfile(profile []byte)
}

// decoder holds all mutable state for the decode of a single image. Decoding
// is strictly sequential; the value is not safe for concurrent use and is
// discarded when the decode finishes or fails.
type decoder struct {
	br   bitReader
	sink ImageSink

	width  int
	height int

	img1    *image.Gray
	img3    *image.YCbCr
	kPix    []byte // fourth-component plane, luma geometry
	kStride int

	ri int // restart interval, in MCUs

	nComp int

	sawSOF  bool
	sawScan bool

	progressive bool

	jfif bool

	adobeTransformValid bool
	adobeTransform      uint8

	// eobRun is the remaining end-of-band run, shared across blocks of a
	// progressive AC scan.
	eobRun uint16

	comp [maxComponents]component
	// progCoeffs stores the coefficient blocks of a progressive image, one
	// slice per component, persisted across scans until reconstruction.
	progCoeffs [maxComponents][]block
	huff       [maxTc + 1][maxTh + 1]huffTable
	quant      [maxTq + 1]block // quantization tables, in zig-zag order
	tmp        [2*blockSize + 17]byte
}

// decode runs the marker state machine over the stream. When metadataOnly is
// set it returns after the first SOF segment (or at SOS, whichever comes
// first) without producing pixels.
func (d *decoder) decode(r io.Reader, metadataOnly bool) error {
	d.br.inner = r

	// Expect the Start Of Image marker.
	if err := d.br.readFull(d.tmp[:2]); err != nil {
		return err
	}
	if d.tmp[0] != 0xff || d.tmp[1] != markerSOI {
		return NewDecoderError(KindMissingSOI, "missing SOI marker")
	}

	for {
		err := d.br.readFull(d.tmp[:2])
		if err != nil {
			return err
		}
		for d.tmp[0] != 0xff {
			// Strictly speaking, this is a format error. However, libjpeg is
			// liberal in what it accepts. As of version 9, next_marker in
			// jdmarker.c treats this as a warning, skipping bytes until the
			// byte before the next marker.
			d.tmp[0] = d.tmp[1]
			d.tmp[1], err = d.br.readByte()
			if err != nil {
				return err
			}
		}
		marker := d.tmp[1]
		if marker == 0 {
			// Treat "\xff\x00" as extraneous data.
			continue
		}
		for marker == 0xff {
			// Section B.1.1.2 says, "Any marker may optionally be preceded by
			// any number of fill bytes, which are bytes assigned code X'FF'".
			marker, err = d.br.readByte()
			if err != nil {
				return err
			}
		}
		if marker == markerEOI {
			break
		}
		if markerRST0 <= marker && marker <= markerRST7 {
			// Figures B.2 and B.16 show RST markers occurring only between
			// MCUs; here, outside a scan, they carry no information.
			continue
		}

		// Read the 16-bit segment length, which includes the two length
		// bytes themselves.
		if err = d.br.readFull(d.tmp[:2]); err != nil {
			return err
		}
		n := int(d.tmp[0])<<8 + int(d.tmp[1]) - 2
		if n < 0 {
			return NewDecoderError(KindShortSegment, "short segment length")
		}

		switch marker {
		case markerSOF0, markerSOF1, markerSOF2:
			d.progressive = marker == markerSOF2
			err = d.processSOF(n)
			if err == nil && metadataOnly {
				return nil
			}
		case markerDHT:
			err = d.processDHT(n)
		case markerDQT:
			err = d.processDQT(n)
		case markerSOS:
			if metadataOnly {
				if !d.sawSOF {
					return NewDecoderError(KindMissingSOF, "missing SOF marker")
				}
				return nil
			}
			err = d.processSOS(n)
		case markerDRI:
			if n != 2 {
				return NewDecoderError(KindShortSegment, "DRI has wrong length")
			}
			if err = d.br.readFull(d.tmp[:2]); err != nil {
				return err
			}
			d.ri = int(d.tmp[0])<<8 + int(d.tmp[1])
		case markerAPP0:
			err = d.processApp0(n)
		case markerAPP1:
			err = d.processApp1(n)
		case markerAPP14:
			err = d.processApp14(n)
		default:
			if markerAPP0 <= marker && marker <= markerAPP15 || marker == markerCOM {
				err = d.br.skip(n)
			} else if marker < markerSOF0 {
				err = NewDecoderError(KindUnknownMarker, fmt.Sprintf("unknown marker 0x%02x", marker))
			} else {
				err = NewDecoderError(KindUnsupportedMode, fmt.Sprintf("unsupported marker 0x%02x", marker))
			}
		}
		if err != nil {
			return err
		}
	}

	if !d.sawSOF {
		return NewDecoderError(KindMissingSOF, "missing SOF marker")
	}
	if !d.sawScan {
		return NewDecoderError(KindMissingSOS, "missing SOS marker")
	}

	if d.progressive {
		if err := d.reconstructProgressiveImage(); err != nil {
			return err
		}
	}

	pix, err := d.convertToRGBA()
	if err != nil {
		return err
	}
	if d.sink != nil {
		d.sink.SetPixels(d.width, d.height, pix)
	}
	return nil
}

// processApp0 parses the APP0 segment. A "JFIF\0" payload forces the YCbCr
// color model and carries the pixel density at payload bytes 8-11.
func (d *decoder) processApp0(n int) error {
	if n < 5 {
		return d.br.skip(n)
	}
	m := n
	if m > 12 {
		m = 12
	}
	if err := d.br.readFull(d.tmp[:m]); err != nil {
		return err
	}
	n -= m

	d.jfif = m >= 5 && d.tmp[0] == 'J' && d.tmp[1] == 'F' && d.tmp[2] == 'I' &&
		d.tmp[3] == 'F' && d.tmp[4] == '\x00'
	if d.jfif && m >= 12 {
		horiz := uint16(d.tmp[8])<<8 | uint16(d.tmp[9])
		vert := uint16(d.tmp[10])<<8 | uint16(d.tmp[11])
		if rs, ok := d.sink.(ResolutionSink); ok {
			rs.SetResolution(horiz, vert)
		}
	}

	if n > 0 {
		return d.br.skip(n)
	}
	return nil
}

// processApp1 parses the APP1 segment, delivering an "Exif\0\0" payload to
// the metadata sink verbatim.
func (d *decoder) processApp1(n int) error {
	if n < 6 {
		return d.br.skip(n)
	}
	if err := d.br.readFull(d.tmp[:6]); err != nil {
		return err
	}
	n -= 6

	isExif := d.tmp[0] == 'E' && d.tmp[1] == 'x' && d.tmp[2] == 'i' &&
		d.tmp[3] == 'f' && d.tmp[4] == '\x00' && d.tmp[5] == '\x00'
	if ms, ok := d.sink.(MetadataSink); ok && isExif {
		profile := make([]byte, n)
		if err := d.br.readFull(profile); err != nil {
			return err
		}
		ms.SetExifProfile(profile)
		return nil
	}

	return d.br.skip(n)
}

// processApp14 parses the APP14 segment. An "Adobe" payload records the
// color transform byte used to disambiguate RGB/CMYK from YCbCr/YCbCrK.
func (d *decoder) processApp14(n int) error {
	if n < 12 {
		return d.br.skip(n)
	}
	if err := d.br.readFull(d.tmp[:12]); err != nil {
		return err
	}
	n -= 12

	if d.tmp[0] == 'A' && d.tmp[1] == 'd' && d.tmp[2] == 'o' && d.tmp[3] == 'b' && d.tmp[4] == 'e' {
		d.adobeTransformValid = true
		d.adobeTransform = d.tmp[11]
	}

	if n > 0 {
		return d.br.skip(n)
	}
	return nil
}

// Decode reads a JPEG image from r and returns it as an image.Image.
func Decode(r io.Reader) (image.Image, error) {
	var sink rgbaSink
	if err := DecodeInto(&sink, r, false); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    sink.pix,
		Stride: 4 * sink.width,
		Rect:   image.Rect(0, 0, sink.width, sink.height),
	}, nil
}

// DecodeConfig returns the color model and dimensions of a JPEG image
// without decoding the entire image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	d := &decoder{}
	if err := d.decode(r, true); err != nil {
		return image.Config{}, err
	}
	switch d.nComp {
	case 1:
		return image.Config{
			ColorModel: color.GrayModel,
			Width:      d.width,
			Height:     d.height,
		}, nil
	case 3:
		cm := color.YCbCrModel
		if d.isRGB() {
			cm = color.RGBAModel
		}
		return image.Config{
			ColorModel: cm,
			Width:      d.width,
			Height:     d.height,
		}, nil
	case 4:
		return image.Config{
			ColorModel: color.CMYKModel,
			Width:      d.width,
			Height:     d.height,
		}, nil
	}
	return image.Config{}, NewDecoderError(KindUnknownColorModel, "missing SOF marker")
}

// DecodeInto decodes a JPEG image from r and delivers the result to sink.
// When metadataOnly is set, decoding stops after the first SOF segment (the
// JFIF resolution, if present, has been delivered by then) and no pixel
// output is produced.
func DecodeInto(sink ImageSink, r io.Reader, metadataOnly bool) error {
	d := &decoder{sink: sink}
	return d.decode(r, metadataOnly)
}

// rgbaSink is the built-in sink backing Decode.
type rgbaSink struct {
	width  int
	height int
	pix    []byte
}

func (s *rgbaSink) SetPixels(width, height int, pix []byte) {
	s.width = width
	s.height = height
	s.pix = pix
}
