// Package capability models a video device's advertised capability matrix
// (format → resolutions → framerates) and provides deterministic queries
// over it. A capability snapshot may be stale relative to the live device;
// the Source interface is how callers re-check against the hardware.
package capability

import "context"

// Entry is one (resolution, framerates) row of a format's capability list.
// Framerates are sorted strictly descending and deduplicated.
type Entry struct {
	Width      uint32    `json:"width" toml:"width"`
	Height     uint32    `json:"height" toml:"height"`
	Framerates []float64 `json:"framerates" toml:"framerates"`
}

// DeviceCapabilities maps a source format name to its capability entries.
// Within one format each (width, height) pair appears at most once.
type DeviceCapabilities map[string][]Entry

// Resolution is a (width, height) pair.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Pixels returns the pixel count, used for ordering resolutions.
func (r Resolution) Pixels() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// Source is the external capability provider. Implementations must be
// callable repeatedly and may return different results over time as the
// device state changes. An absent device yields empty capabilities, not
// an error; errors are reserved for transport failures.
type Source interface {
	// Capabilities returns the device's current capability snapshot.
	Capabilities(ctx context.Context, deviceID string) (DeviceCapabilities, error)

	// Validate confirms the exact (format, resolution, fps) tuple is
	// deliverable by the live device right now.
	Validate(ctx context.Context, deviceID, format string, width, height uint32, fps float64) (bool, error)
}

// FPSExactTolerance is the tolerance for treating two framerates as the
// same advertised value.
const FPSExactTolerance = 0.01

// FPSNominalTolerance treats NTSC-style rates (29.97, 59.94) as their
// nominal integer (30, 60).
const FPSNominalTolerance = 0.5

// SameFPS reports whether two framerates are the same advertised value.
func SameFPS(a, b float64) bool {
	return abs(a-b) < FPSExactTolerance
}

// MatchFPS reports whether a configured framerate still matches an
// advertised one, accepting NTSC-style drift around the nominal integer
// (29.97 matches 30, 59.94 matches 60).
func MatchFPS(configured, advertised float64) bool {
	if SameFPS(configured, advertised) {
		return true
	}
	return abs(configured-advertised) < FPSNominalTolerance &&
		nearestInt(configured) == nearestInt(advertised)
}

func nearestInt(f float64) int64 {
	if f < 0 {
		return int64(f - 0.5)
	}
	return int64(f + 0.5)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
