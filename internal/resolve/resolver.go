package resolve

import (
	"github.com/smazurov/capturecfg/internal/capability"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/formats"
)

// Default ceilings applied when inferring values. Framerates within the
// nominal tolerance above the ceiling (29.97-style rates) still count
// as under it.
const (
	defaultHeightCeiling = 1080
	defaultFPSCeiling    = 30.0
)

// Pipeline stages in dependency order. An edit re-runs its own stage
// and everything after it; stages before the edited field are never
// touched, so a manual format pick survives a passthrough or codec
// edit but not a resolution or fps change.
const (
	stageResolution = iota + 1
	stageFPS
	stageFormat
	stagePassthrough
	stageEncoding
	stageTarget
	stageBitDepth
	stageLeaf
)

func startStage(changed Field) int {
	switch changed {
	case FieldNone, FieldResolution:
		return stageResolution
	case FieldFPS:
		return stageFPS
	case FieldFormat:
		return stageFormat
	case FieldPassthrough:
		return stagePassthrough
	case FieldCodec, FieldBackend:
		return stageEncoding
	case FieldTargetResolution, FieldTargetFPS:
		return stageTarget
	case FieldBitDepth:
		return stageBitDepth
	default:
		return stageLeaf
	}
}

// Outcome reports what a resolution pass did beyond the returned
// config. Reassignment flags are explicit because the recomputed value
// may be textually identical to the old one.
type Outcome struct {
	// BackendReassigned is set whenever the backend was recomputed,
	// even if the value did not change.
	BackendReassigned bool
	// PreviousBackend is the backend before a reassignment.
	PreviousBackend encoders.Backend
	// PassthroughLocked is set when the format is raw and the
	// passthrough field is not editable.
	PassthroughLocked bool
	// FormatChanged is set when the pass derived a different source
	// format than the input carried.
	FormatChanged bool
	// TargetReset is set when an out-of-range target was reset to
	// mirror the source.
	TargetReset bool
	// BitrateKeyChanged is set when the (codec, backend, target) tuple
	// the bitrate suggestion depends on changed; any custom bitrate
	// override was cleared.
	BitrateKeyChanged bool
}

// Resolve recomputes every field downstream of the changed one so the
// result is a valid point in the device's capability space. cfg already
// carries the edited value. Pure: the same inputs always produce the
// same output, and out-of-range values are substituted, never rejected.
func Resolve(cfg Config, changed Field, idx *capability.Index, avail *encoders.Availability) (Config, Outcome) {
	var out Outcome
	if idx == nil || idx.Empty() {
		// A device with zero advertised formats is a valid state;
		// nothing can be resolved against it.
		return cfg, out
	}
	input := cfg
	start := startStage(changed)

	if start <= stageResolution {
		cfg = resolveResolution(cfg, idx)
	}
	if start <= stageFPS {
		cfg = resolveFPS(cfg, idx)
	}
	if start <= stageFormat {
		cfg, out.FormatChanged = resolveFormat(cfg, changed, idx, input.SourceFormat)
	}
	if start <= stagePassthrough {
		cfg = resolvePassthrough(cfg, changed, out.FormatChanged)
	}
	out.PassthroughLocked = formats.IsRaw(cfg.SourceFormat)
	if start <= stageEncoding {
		cfg, out.BackendReassigned, out.PreviousBackend = resolveEncoding(cfg, changed, input, avail)
	}
	cfg.PresetLevel = encoders.ClampPreset(cfg.PresetLevel)
	cfg.EffortLevel = encoders.ClampPreset(cfg.EffortLevel)
	if start <= stageTarget {
		cfg, out.TargetReset = resolveTargets(cfg)
	}
	if start <= stageBitDepth {
		cfg = resolveBitDepth(cfg, changed)
	}

	if out.BackendReassigned || cfg.bitrateKey() != input.bitrateKey() {
		out.BitrateKeyChanged = true
		cfg.CustomBitrateKbps = 0
	}
	return cfg, out
}

// ComputeDefault builds the initial configuration for a device from its
// capability snapshot. Returns false when the device offers nothing
// usable.
func ComputeDefault(idx *capability.Index, avail *encoders.Availability) (Config, Outcome, bool) {
	if idx == nil || idx.Empty() {
		return Config{}, Outcome{}, false
	}
	cfg, out := Resolve(Config{}, FieldNone, idx, avail)
	return cfg, out, true
}

// resolveResolution ensures the source resolution is offered by some
// format. A zero resolution is defaulted to the highest available under
// the height ceiling; a stale one falls back to the highest available.
func resolveResolution(cfg Config, idx *capability.Index) Config {
	if cfg.SourceWidth != 0 && cfg.SourceHeight != 0 && idx.HasResolution(cfg.SourceWidth, cfg.SourceHeight) {
		return cfg
	}
	union := idx.ResolutionsUnion()
	if len(union) == 0 {
		return cfg
	}
	pick := union[0]
	if cfg.SourceWidth == 0 || cfg.SourceHeight == 0 {
		for _, res := range union {
			if res.Height <= defaultHeightCeiling {
				pick = res
				break
			}
		}
	}
	cfg.SourceWidth, cfg.SourceHeight = pick.Width, pick.Height
	return cfg
}

// resolveFPS ensures the framerate is advertised at the chosen
// resolution, snapping near-matches to the advertised value. An
// unavailable rate is replaced by the highest one under the fps
// ceiling, or the highest overall.
func resolveFPS(cfg Config, idx *capability.Index) Config {
	available := idx.FramerateUnion(cfg.SourceWidth, cfg.SourceHeight)
	if len(available) == 0 {
		return cfg
	}
	if cfg.SourceFPS > 0 {
		for _, fps := range available {
			if capability.MatchFPS(cfg.SourceFPS, fps) {
				cfg.SourceFPS = fps
				return cfg
			}
		}
	}
	pick := available[0]
	for _, fps := range available {
		if fps <= defaultFPSCeiling+capability.FPSNominalTolerance {
			pick = fps
			break
		}
	}
	cfg.SourceFPS = pick
	return cfg
}

// resolveFormat derives the source format from the (resolution, fps)
// pair. A manual format pick survives only while the picked format
// still offers the pair; resolution or fps edits re-derive it.
func resolveFormat(cfg Config, changed Field, idx *capability.Index, prevFormat string) (Config, bool) {
	if changed == FieldFormat && idx.Offers(cfg.SourceFormat, cfg.SourceWidth, cfg.SourceHeight, cfg.SourceFPS) {
		return cfg, cfg.SourceFormat != prevFormat
	}
	candidates := idx.FormatsAt(cfg.SourceWidth, cfg.SourceHeight, cfg.SourceFPS)
	if len(candidates) == 0 {
		return cfg, false
	}
	cfg.SourceFormat = candidates[0]
	return cfg, cfg.SourceFormat != prevFormat
}

// resolvePassthrough applies the format's default passthrough policy
// when the format changed, and unconditionally forces encoding for raw
// formats.
func resolvePassthrough(cfg Config, changed Field, formatChanged bool) Config {
	if formatChanged && changed != FieldPassthrough {
		cfg.Passthrough = formats.DefaultPassthrough(cfg.SourceFormat)
	}
	if formats.IsRaw(cfg.SourceFormat) {
		cfg.Passthrough = false
	}
	return cfg
}

// resolveEncoding fills in codec and backend for the encode path. With
// no availability snapshot yet, both stay as they are; otherwise an
// empty or unavailable codec resolves to the recommendation, and any
// codec change reassigns the backend explicitly.
func resolveEncoding(cfg Config, changed Field, input Config, avail *encoders.Availability) (Config, bool, encoders.Backend) {
	if cfg.Passthrough || avail == nil {
		return cfg, false, ""
	}

	if cfg.Codec == "" || !avail.Codecs[cfg.Codec].Available {
		cfg.Codec = avail.RecommendedCodec
	}
	if cfg.Codec == "" {
		return cfg, false, ""
	}

	// A manual backend pick is honored while it exists for the codec.
	if changed == FieldBackend && avail.HasBackend(cfg.Codec, cfg.Backend) {
		return cfg, false, ""
	}

	codecChanged := changed == FieldCodec || cfg.Codec != input.Codec
	if !codecChanged && cfg.Backend != "" && avail.HasBackend(cfg.Codec, cfg.Backend) {
		return cfg, false, ""
	}

	previous := cfg.Backend
	cfg.Backend = avail.RecommendedBackend(cfg.Codec)
	return cfg, true, previous
}

// resolveTargets keeps the encoded output geometry inside the allowed
// candidate sets. While passthrough is on, targets always mirror the
// source.
func resolveTargets(cfg Config) (Config, bool) {
	if cfg.Passthrough {
		cfg.TargetWidth, cfg.TargetHeight = cfg.SourceWidth, cfg.SourceHeight
		cfg.TargetFPS = cfg.SourceFPS
		return cfg, false
	}

	reset := false
	if !encoders.OffersTargetResolution(cfg.SourceWidth, cfg.SourceHeight, cfg.TargetWidth, cfg.TargetHeight) {
		if cfg.TargetWidth != 0 && cfg.TargetHeight != 0 {
			reset = true
		}
		cfg.TargetWidth, cfg.TargetHeight = cfg.SourceWidth, cfg.SourceHeight
	}
	if cfg.TargetFPS <= 0 || !encoders.OffersTargetFramerate(cfg.SourceFPS, cfg.TargetFPS) {
		if cfg.TargetFPS > 0 {
			reset = true
		}
		cfg.TargetFPS = cfg.SourceFPS
	}
	return cfg, reset
}

// resolveBitDepth applies the 10-bit rule: only FFV1 on a 10-bit source
// records at depth 10; everything else stays at the 8-bit default. An
// explicit 8-bit pick on eligible material is respected.
func resolveBitDepth(cfg Config, changed Field) Config {
	eligible := !cfg.Passthrough && cfg.Codec == encoders.CodecFFV1 && formats.Is10Bit(cfg.SourceFormat)
	if !eligible {
		cfg.BitDepth = 0
		return cfg
	}
	if changed == FieldBitDepth {
		if cfg.BitDepth != 10 {
			cfg.BitDepth = 0
		}
		return cfg
	}
	cfg.BitDepth = 10
	return cfg
}
