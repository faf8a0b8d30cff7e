package encoders

import "context"

// BitrateSuggestions holds one suggested bitrate (kbps) per preset
// level, indexed by (level - 1). A zero entry means no suggestion
// (lossless codecs).
type BitrateSuggestions [PresetLevels]uint32

// Empty reports whether no level has a suggestion.
func (s BitrateSuggestions) Empty() bool {
	for _, kbps := range s {
		if kbps != 0 {
			return false
		}
	}
	return true
}

// ForLevel returns the suggestion for a preset level (1-based).
func (s BitrateSuggestions) ForLevel(level uint8) uint32 {
	return s[clampPreset(level)-1]
}

// LiveTestResult is the structured outcome of a short live encode test.
// Failures are reported, never raised, and never retried automatically;
// the caller decides whether to keep the chosen preset.
type LiveTestResult struct {
	Success       bool   `json:"success"`
	Warning       bool   `json:"warning"`
	FramesSent    uint64 `json:"frames_sent"`
	FramesDropped uint64 `json:"frames_dropped"`
	Message       string `json:"message"`
}

// ProbeService is the external encoder probe: it knows which encoder
// backends exist on this machine and their real-world throughput
// characteristics.
type ProbeService interface {
	// Availability returns the current encoder availability snapshot.
	Availability(ctx context.Context) (*Availability, error)

	// ProbeBitrates returns one suggested bitrate per preset level for
	// the given codec/backend and source/target geometry.
	ProbeBitrates(ctx context.Context, codec Codec, backend Backend,
		srcWidth, srcHeight uint32, srcFPS float64,
		tgtWidth, tgtHeight uint32, tgtFPS float64) (BitrateSuggestions, error)

	// RunLiveTest performs a short real encode to check that the given
	// codec/backend/preset keeps up with the source rate.
	RunLiveTest(ctx context.Context, deviceID string, codec Codec, backend Backend,
		presetLevel uint8, width, height uint32, fps float64) (*LiveTestResult, error)
}
