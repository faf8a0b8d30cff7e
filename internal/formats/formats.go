// Package formats classifies video source format strings as reported by the
// capture layer (e.g. "MJPEG", "H264", "YUY2", "NV12", "P010_10LE") and
// defines the priority order used for automatic format selection.
package formats

import "strings"

// Class groups formats by how the recording pipeline has to treat them.
type Class int

const (
	// ClassCompressedModern covers pre-compressed formats with efficient
	// modern codecs (AV1, VP9, VP8, H.264).
	ClassCompressedModern Class = iota
	// ClassCompressedLegacy covers pre-compressed but inefficient formats
	// (MJPEG). Storable as-is, but very large on disk.
	ClassCompressedLegacy
	// ClassRawYUV covers uncompressed YUV-family pixel formats.
	ClassRawYUV
	// ClassRawRGB covers uncompressed RGB-family pixel formats.
	ClassRawRGB
)

// rank maps known format names to their auto-selection priority.
// Lower rank wins. Within a class the order is fixed so selection is
// deterministic regardless of how the device enumerates its formats.
var rank = map[string]int{
	// Pre-compressed, modern
	"AV1":  0,
	"VP9":  1,
	"VP8":  2,
	"H264": 3,
	"HEVC": 4,

	// Pre-compressed, legacy
	"MJPEG": 10,

	// Raw YUV family
	"NV12":       20,
	"I420":       21,
	"YU12":       22,
	"YV12":       23,
	"YUY2":       24,
	"YUYV":       25,
	"UYVY":       26,
	"P010_10LE":  27,
	"I420_10LE":  28,
	"Y210":       29,
	"GRAY8":      30,

	// Raw RGB family
	"BGRA": 40,
	"RGBA": 41,
	"BGRX": 42,
	"RGBX": 43,
	"RGB":  44,
	"BGR":  45,
}

var compressed = map[string]bool{
	"AV1":   true,
	"VP9":   true,
	"VP8":   true,
	"H264":  true,
	"HEVC":  true,
	"MJPEG": true,
}

// unknownRank places formats we have no table entry for after every known
// format, ordered alphabetically by the callers' stable sort.
const unknownRank = 100

// Rank returns the auto-selection priority of a format (lower is better).
func Rank(name string) int {
	if r, ok := rank[normalize(name)]; ok {
		return r
	}
	return unknownRank
}

// Classify returns the class of a format. Unknown names are classified by
// pattern: anything mentioning RGB/BGR is raw RGB, everything else is
// assumed to be a raw YUV variant, which is what capture devices deliver
// when they report a format we have never seen.
func Classify(name string) Class {
	n := normalize(name)
	if r, ok := rank[n]; ok {
		switch {
		case r < 10:
			return ClassCompressedModern
		case r < 20:
			return ClassCompressedLegacy
		case r < 40:
			return ClassRawYUV
		default:
			return ClassRawRGB
		}
	}
	if strings.Contains(n, "RGB") || strings.Contains(n, "BGR") {
		return ClassRawRGB
	}
	return ClassRawYUV
}

// IsRaw reports whether a format carries uncompressed pixels. Raw sources
// cannot be stored as-is and always require encoding.
func IsRaw(name string) bool {
	return !compressed[normalize(name)]
}

// DefaultPassthrough returns the default passthrough policy for a format:
// raw formats must be encoded, MJPEG is storable but consumes so much disk
// that encoding is the better default, every other compressed format is
// stored unmodified.
func DefaultPassthrough(name string) bool {
	n := normalize(name)
	if IsRaw(n) {
		return false
	}
	if n == "MJPEG" {
		return false
	}
	return true
}

// Is10Bit reports whether a format name identifies a ≥10-bit pixel layout.
// Capture-layer format identifiers embed the bit depth in the name
// (P010_10LE, I420_10LE, Y210, v210), so a name pattern is sufficient.
func Is10Bit(name string) bool {
	return strings.Contains(normalize(name), "10")
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
