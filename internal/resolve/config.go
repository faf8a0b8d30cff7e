// Package resolve is the constraint-propagation core: it keeps a video
// device's recording configuration internally consistent as individual
// fields change, following the dependency chain
// resolution -> fps -> format -> passthrough/encode -> target.
package resolve

import (
	"math"

	"github.com/smazurov/capturecfg/internal/encoders"
)

// Field identifies which configuration field an edit changed. The
// resolver recomputes everything downstream of the changed field and
// never touches anything upstream of it.
type Field int

const (
	// FieldNone means no single field changed; the whole chain is
	// re-resolved, as on initial load or a capability refresh.
	FieldNone Field = iota
	FieldResolution
	FieldFPS
	FieldFormat
	FieldPassthrough
	FieldCodec
	FieldBackend
	FieldPresetLevel
	FieldEffortLevel
	FieldBitDepth
	FieldTargetResolution
	FieldTargetFPS
	FieldCustomBitrate
)

// String renders the field name for logging.
func (f Field) String() string {
	switch f {
	case FieldResolution:
		return "resolution"
	case FieldFPS:
		return "fps"
	case FieldFormat:
		return "format"
	case FieldPassthrough:
		return "passthrough"
	case FieldCodec:
		return "codec"
	case FieldBackend:
		return "backend"
	case FieldPresetLevel:
		return "preset_level"
	case FieldEffortLevel:
		return "effort_level"
	case FieldBitDepth:
		return "bit_depth"
	case FieldTargetResolution:
		return "target_resolution"
	case FieldTargetFPS:
		return "target_fps"
	case FieldCustomBitrate:
		return "custom_bitrate"
	default:
		return "none"
	}
}

// Config is the resolved, persistable recording configuration for one
// video device. The zero value is not valid; configs are produced by
// ComputeDefault or Resolve.
type Config struct {
	SourceFormat string  `toml:"source_format" json:"source_format"`
	SourceWidth  uint32  `toml:"source_width" json:"source_width"`
	SourceHeight uint32  `toml:"source_height" json:"source_height"`
	SourceFPS    float64 `toml:"source_fps" json:"source_fps"`

	// Passthrough stores the source stream unmodified. Forced false for
	// raw formats.
	Passthrough bool `toml:"passthrough" json:"passthrough"`

	// Codec and Backend are meaningful only when Passthrough is false.
	// Empty codec means "let negotiation pick the recommended codec".
	Codec   encoders.Codec   `toml:"encoding_codec,omitempty" json:"encoding_codec,omitempty"`
	Backend encoders.Backend `toml:"encoder_backend,omitempty" json:"encoder_backend,omitempty"`

	PresetLevel uint8 `toml:"preset_level" json:"preset_level"`
	// EffortLevel applies to software encodes only.
	EffortLevel uint8 `toml:"effort_level" json:"effort_level"`

	// BitDepth is 10 for FFV1 on a 10-bit source format, otherwise 0
	// (meaning 8).
	BitDepth uint8 `toml:"bit_depth,omitempty" json:"bit_depth,omitempty"`

	// Target geometry of the encoded output. Mirrors the source while
	// Passthrough is true; never exceeds the source.
	TargetWidth  uint32  `toml:"target_width" json:"target_width"`
	TargetHeight uint32  `toml:"target_height" json:"target_height"`
	TargetFPS    float64 `toml:"target_fps" json:"target_fps"`

	// CustomBitrateKbps overrides the suggested bitrate; 0 means none.
	CustomBitrateKbps uint32 `toml:"custom_bitrate_kbps,omitempty" json:"custom_bitrate_kbps,omitempty"`
}

const fpsEqualTolerance = 0.001

// PipelineFieldsEqual reports whether two configs describe the same
// capture/encode pipeline, so an edit that leaves them equal (preset
// level, custom bitrate) does not need a pipeline restart.
func (c Config) PipelineFieldsEqual(other Config) bool {
	return c.SourceFormat == other.SourceFormat &&
		c.SourceWidth == other.SourceWidth &&
		c.SourceHeight == other.SourceHeight &&
		math.Abs(c.SourceFPS-other.SourceFPS) < fpsEqualTolerance &&
		c.Passthrough == other.Passthrough &&
		c.Codec == other.Codec &&
		c.Backend == other.Backend &&
		c.BitDepth == other.BitDepth &&
		c.TargetWidth == other.TargetWidth &&
		c.TargetHeight == other.TargetHeight &&
		math.Abs(c.TargetFPS-other.TargetFPS) < fpsEqualTolerance
}

// Equal reports whether two configs are identical, with framerates
// compared under the exact tolerance.
func (c Config) Equal(other Config) bool {
	return c.PipelineFieldsEqual(other) &&
		c.PresetLevel == other.PresetLevel &&
		c.EffortLevel == other.EffortLevel &&
		c.CustomBitrateKbps == other.CustomBitrateKbps
}

// bitrateKey captures the inputs the bitrate suggestion depends on.
// When any of them changes, cached suggestions and the custom override
// no longer apply.
type bitrateKey struct {
	codec    encoders.Codec
	backend  encoders.Backend
	width    uint32
	height   uint32
	fpsMilli uint32
}

func (c Config) bitrateKey() bitrateKey {
	return bitrateKey{
		codec:    c.Codec,
		backend:  c.Backend,
		width:    c.TargetWidth,
		height:   c.TargetHeight,
		fpsMilli: uint32(c.TargetFPS*1000 + 0.5),
	}
}
