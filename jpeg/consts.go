// Package jpeg implements a baseline and progressive JPEG decoder that
// produces RGBA pixels through a pluggable image sink.
package jpeg

// JPEG marker codes
const (
	markerSOF0  = 0xC0 // Baseline DCT
	markerSOF1  = 0xC1 // Extended Sequential DCT
	markerSOF2  = 0xC2 // Progressive DCT
	markerDHT   = 0xC4 // Define Huffman Table
	markerRST0  = 0xD0 // Restart marker 0
	markerRST7  = 0xD7 // Restart marker 7
	markerSOI   = 0xD8 // Start Of Image
	markerEOI   = 0xD9 // End Of Image
	markerSOS   = 0xDA // Start Of Scan
	markerDQT   = 0xDB // Define Quantization Table
	markerDRI   = 0xDD // Define Restart Interval
	markerAPP0  = 0xE0 // Application Segment 0 (JFIF)
	markerAPP1  = 0xE1 // Application Segment 1 (EXIF)
	markerAPP14 = 0xEE // Application Segment 14 (Adobe)
	markerAPP15 = 0xEF // Application Segment 15
	markerCOM   = 0xFE // Comment
)

const (
	// maxComponents is the maximum number of color components in a frame.
	maxComponents = 4

	// blockSize is the number of coefficients per 8x8 block.
	blockSize = 64

	maxTc = 1 // Huffman table classes: 0 = DC, 1 = AC
	maxTh = 3 // Huffman table selectors per class
	maxTq = 3 // quantization table selectors
)

// block holds the 64 coefficients of one data unit in natural (row-major)
// order.
type block [blockSize]int32

// Adobe APP14 color transform values.
const (
	adobeTransformUnknown = 0
	adobeTransformYCbCr   = 1
	adobeTransformYCbCrK  = 2
)

// unzig maps zig-zag index to natural index, so that unzig[3] is the natural
// position of the fourth coefficient in transmission order (row 2, column 0).
var unzig = [blockSize]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}
