// Package encoders handles encoder negotiation: which codec/backend
// combinations exist on this machine, which one to recommend, and which
// target resolutions/framerates the encode step can offer.
package encoders

// Codec identifies a target video codec for encoding.
type Codec string

const (
	CodecAV1  Codec = "av1"
	CodecVP9  Codec = "vp9"
	CodecVP8  Codec = "vp8"
	CodecH264 Codec = "h264"
	CodecFFV1 Codec = "ffv1"
)

// DisplayOrder is the fixed order codecs are offered in. FFV1 is last:
// it is lossless and produces enormous files, so it must never become a
// silent default.
var DisplayOrder = []Codec{CodecAV1, CodecVP9, CodecVP8, CodecH264, CodecFFV1}

// DisplayName returns the human-readable codec name.
func (c Codec) DisplayName() string {
	switch c {
	case CodecAV1:
		return "AV1"
	case CodecVP9:
		return "VP9"
	case CodecVP8:
		return "VP8"
	case CodecH264:
		return "H.264"
	case CodecFFV1:
		return "FFV1 (lossless)"
	default:
		return string(c)
	}
}

// Lossless reports whether the codec has no meaningful bitrate target.
func (c Codec) Lossless() bool {
	return c == CodecFFV1
}

// Backend identifies a specific encoder implementation for a codec:
// a hardware vendor path or the software fallback.
type Backend string

const (
	BackendNvenc           Backend = "nvenc"
	BackendAMF             Backend = "amf"
	BackendQSV             Backend = "qsv"
	BackendVAAPI           Backend = "vaapi"
	BackendMediaFoundation Backend = "mediafoundation"
	BackendVideoToolbox    Backend = "videotoolbox"
	BackendSoftware        Backend = "software"
)

// backendOrder is the preference order when several backends exist for a
// codec: dedicated GPU encoders first, platform-native paths next,
// software last.
var backendOrder = []Backend{
	BackendNvenc,
	BackendAMF,
	BackendQSV,
	BackendVAAPI,
	BackendMediaFoundation,
	BackendVideoToolbox,
	BackendSoftware,
}

// DisplayName returns the human-readable backend name.
func (b Backend) DisplayName() string {
	switch b {
	case BackendNvenc:
		return "NVIDIA NVENC"
	case BackendAMF:
		return "AMD AMF"
	case BackendQSV:
		return "Intel QuickSync"
	case BackendVAAPI:
		return "VA-API"
	case BackendMediaFoundation:
		return "Media Foundation"
	case BackendVideoToolbox:
		return "VideoToolbox"
	case BackendSoftware:
		return "Software"
	default:
		return string(b)
	}
}

// Hardware reports whether the backend is a hardware encoder path.
func (b Backend) Hardware() bool {
	return b != BackendSoftware && b != ""
}

// BackendInfo describes one available encoder backend.
type BackendInfo struct {
	ID          Backend `json:"id" toml:"id"`
	DisplayName string  `json:"display_name" toml:"display_name"`
	Hardware    bool    `json:"hardware" toml:"hardware"`
	EncoderName string  `json:"encoder_name,omitempty" toml:"encoder_name,omitempty"`
}

// CodecAvailability is the availability snapshot for one codec.
type CodecAvailability struct {
	Available   bool          `json:"available" toml:"available"`
	HasHardware bool          `json:"has_hardware" toml:"has_hardware"`
	Backends    []BackendInfo `json:"backends" toml:"backends"`
	Recommended Backend       `json:"recommended,omitempty" toml:"recommended,omitempty"`
}

// Availability is a read-only snapshot of encoder availability on this
// machine, plus the globally recommended default codec.
type Availability struct {
	Codecs           map[Codec]CodecAvailability `json:"codecs" toml:"codecs"`
	RecommendedCodec Codec                       `json:"recommended_codec" toml:"recommended_codec"`
}

// AvailableCodecs returns the codecs marked available, in display order.
func (a *Availability) AvailableCodecs() []Codec {
	if a == nil {
		return nil
	}
	var out []Codec
	for _, c := range DisplayOrder {
		if a.Codecs[c].Available {
			out = append(out, c)
		}
	}
	return out
}

// AvailableBackends returns the backend list for a codec, in backend
// preference order.
func (a *Availability) AvailableBackends(c Codec) []BackendInfo {
	if a == nil {
		return nil
	}
	avail := a.Codecs[c]
	if !avail.Available {
		return nil
	}
	out := make([]BackendInfo, len(avail.Backends))
	copy(out, avail.Backends)
	return out
}

// RecommendedBackend returns the recommended backend for a codec, or ""
// when the codec is unavailable.
func (a *Availability) RecommendedBackend(c Codec) Backend {
	if a == nil {
		return ""
	}
	avail := a.Codecs[c]
	if !avail.Available {
		return ""
	}
	if avail.Recommended != "" {
		return avail.Recommended
	}
	if len(avail.Backends) > 0 {
		return avail.Backends[0].ID
	}
	return ""
}

// HasBackend reports whether a codec offers the given backend.
func (a *Availability) HasBackend(c Codec, b Backend) bool {
	if a == nil {
		return false
	}
	for _, info := range a.Codecs[c].Backends {
		if info.ID == b {
			return true
		}
	}
	return false
}
