package encoders

import "math"

// Preset level bounds. Level 1 is the lightest computational load,
// level 5 the highest quality feasible in real time.
const (
	MinPreset     = 1
	MaxPreset     = 5
	DefaultPreset = 3

	// PresetLevels is the number of preset levels.
	PresetLevels = 5
)

// PresetLabel returns a human-readable label for a preset level.
func PresetLabel(level uint8) string {
	switch clampPreset(level) {
	case 1:
		return "Lightest"
	case 2:
		return "Light"
	case 4:
		return "Quality"
	case 5:
		return "Maximum"
	default:
		return "Balanced"
	}
}

// Base bitrates in kbps, calibrated for 1080p @ 30fps, indexed by
// (level - 1). Single source of truth per codec and backend class.
var (
	av1HardwareKbps = [PresetLevels]uint32{1500, 2000, 3000, 4000, 5000}
	av1SoftwareKbps = [PresetLevels]uint32{1200, 1800, 2500, 3500, 4500}
	vp9Kbps         = [PresetLevels]uint32{2000, 2500, 3500, 4500, 5500}
	vp8Kbps         = [PresetLevels]uint32{2500, 3500, 5000, 6500, 8000}
	h264Kbps        = [PresetLevels]uint32{2500, 3500, 5000, 7000, 9000}
)

// Bitrate scaling model. Base bitrates are calibrated for the reference
// point below; at other resolutions/framerates they are scaled by
// pixel_ratio^alpha * fps_ratio^beta, clamped to [minScale, maxScale].
const (
	referencePixels  = 1920.0 * 1080.0
	referenceFPS     = 30.0
	temporalExponent = 0.5
	minScale         = 0.25
	maxScale         = 6.0
)

// spatialExponent returns the per-codec spatial exponent. More efficient
// codecs exploit spatial redundancy better and need a smaller bitrate
// increase per additional pixel.
func spatialExponent(c Codec) float64 {
	switch c {
	case CodecAV1:
		return 0.70
	case CodecVP9:
		return 0.75
	case CodecVP8:
		return 0.85
	default:
		return 0.80
	}
}

// BaseBitrateKbps returns the 1080p30-calibrated bitrate for a codec,
// backend, and preset level. Returns 0 for FFV1, which is lossless and
// has no meaningful bitrate target.
func BaseBitrateKbps(c Codec, b Backend, level uint8) uint32 {
	idx := clampPreset(level) - 1
	switch c {
	case CodecAV1:
		if b == BackendSoftware {
			return av1SoftwareKbps[idx]
		}
		return av1HardwareKbps[idx]
	case CodecVP9:
		return vp9Kbps[idx]
	case CodecVP8:
		return vp8Kbps[idx]
	case CodecH264:
		return h264Kbps[idx]
	default:
		return 0
	}
}

// BitrateScale computes the resolution/framerate scale factor relative
// to the 1080p30 reference point.
func BitrateScale(c Codec, width, height uint32, fps float64) float64 {
	if width == 0 || height == 0 || fps <= 0 {
		return 1.0
	}
	pixelRatio := float64(width) * float64(height) / referencePixels
	fpsRatio := fps / referenceFPS
	scale := math.Pow(pixelRatio, spatialExponent(c)) * math.Pow(fpsRatio, temporalExponent)
	return math.Min(math.Max(scale, minScale), maxScale)
}

// ScaledBitrateKbps returns the suggested bitrate for a codec, backend,
// preset level, and effective encoding resolution/framerate. Returns 0
// for lossless codecs.
func ScaledBitrateKbps(c Codec, b Backend, level uint8, width, height uint32, fps float64) uint32 {
	base := BaseBitrateKbps(c, b, level)
	if base == 0 {
		return 0
	}
	return uint32(float64(base)*BitrateScale(c, width, height, fps) + 0.5)
}

func clampPreset(level uint8) uint8 {
	if level < MinPreset {
		return MinPreset
	}
	if level > MaxPreset {
		return MaxPreset
	}
	return level
}

// ClampPreset bounds a preset or effort level to the valid range,
// mapping the zero value to the balanced default.
func ClampPreset(level uint8) uint8 {
	if level == 0 {
		return DefaultPreset
	}
	return clampPreset(level)
}
