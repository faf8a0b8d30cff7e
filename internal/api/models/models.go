// Package models defines the request and response bodies of the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device session models
type DeviceData struct {
	DeviceID   string `json:"device_id" example:"cam0" doc:"Stable device identifier"`
	Generation uint64 `json:"generation" example:"4" doc:"Session edit generation"`
	HasConfig  bool   `json:"has_config" example:"true" doc:"Whether a configuration has been resolved"`
}

type DeviceListData struct {
	Devices []DeviceData `json:"devices" doc:"Open device sessions"`
	Count   int          `json:"count" example:"2" doc:"Number of open sessions"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

type DeviceResponse struct {
	Body DeviceData
}

// Capability models
type CapabilityMode struct {
	Width      uint32    `json:"width" example:"1920" doc:"Frame width in pixels"`
	Height     uint32    `json:"height" example:"1080" doc:"Frame height in pixels"`
	Framerates []float64 `json:"framerates" example:"[60,30]" doc:"Advertised framerates, descending"`
}

type CapabilityFormat struct {
	Name  string           `json:"name" example:"MJPEG" doc:"Source format name"`
	Modes []CapabilityMode `json:"modes" doc:"Advertised resolution and framerate combinations"`
}

type CapabilitiesData struct {
	DeviceID string             `json:"device_id" example:"cam0" doc:"Stable device identifier"`
	Formats  []CapabilityFormat `json:"formats" doc:"Capability matrix, formats in selection priority order"`
}

type CapabilitiesResponse struct {
	Body CapabilitiesData
}

// Configuration models
type ConfigData struct {
	SourceFormat      string  `json:"source_format" example:"MJPEG" doc:"Selected source format"`
	SourceWidth       uint32  `json:"source_width" example:"1920" doc:"Source frame width"`
	SourceHeight      uint32  `json:"source_height" example:"1080" doc:"Source frame height"`
	SourceFPS         float64 `json:"source_fps" example:"30" doc:"Source framerate"`
	Passthrough       bool    `json:"passthrough" example:"false" doc:"Store the source stream unmodified"`
	PassthroughLocked bool    `json:"passthrough_locked" example:"false" doc:"Passthrough is forced off for raw sources"`
	Codec             string  `json:"codec,omitempty" example:"av1" doc:"Encoding codec"`
	Backend           string  `json:"backend,omitempty" example:"nvenc" doc:"Encoder backend"`
	PresetLevel       uint8   `json:"preset_level" example:"3" doc:"Quality preset level (1-5)"`
	PresetLabel       string  `json:"preset_label" example:"Balanced" doc:"Quality preset display label"`
	EffortLevel       uint8   `json:"effort_level" example:"3" doc:"Encoder effort level (1-5)"`
	BitDepth          uint8   `json:"bit_depth,omitempty" example:"10" doc:"Encode bit depth, 0 when not applicable"`
	TargetWidth       uint32  `json:"target_width" example:"1920" doc:"Encoding target width"`
	TargetHeight      uint32  `json:"target_height" example:"1080" doc:"Encoding target height"`
	TargetFPS         float64 `json:"target_fps" example:"30" doc:"Encoding target framerate"`
	CustomBitrateKbps uint32  `json:"custom_bitrate_kbps,omitempty" example:"4500" doc:"Custom bitrate override, 0 when unset"`
}

type ConfigEnvelope struct {
	DeviceID   string     `json:"device_id" example:"cam0" doc:"Stable device identifier"`
	Generation uint64     `json:"generation" example:"4" doc:"Session edit generation"`
	Config     ConfigData `json:"config" doc:"Resolved configuration"`
}

type ConfigResponse struct {
	Body ConfigEnvelope
}

// EditRequestData carries exactly one field edit. The engine re-derives
// everything downstream of the edited field.
type EditRequestData struct {
	Width             *uint32  `json:"width,omitempty" example:"1920" doc:"Source width (set together with height)"`
	Height            *uint32  `json:"height,omitempty" example:"1080" doc:"Source height (set together with width)"`
	FPS               *float64 `json:"fps,omitempty" example:"30" doc:"Source framerate"`
	Format            *string  `json:"format,omitempty" example:"MJPEG" doc:"Source format"`
	Passthrough       *bool    `json:"passthrough,omitempty" example:"false" doc:"Passthrough toggle"`
	Codec             *string  `json:"codec,omitempty" example:"av1" doc:"Encoding codec"`
	Backend           *string  `json:"backend,omitempty" example:"nvenc" doc:"Encoder backend"`
	PresetLevel       *uint8   `json:"preset_level,omitempty" example:"3" doc:"Quality preset level (1-5)"`
	EffortLevel       *uint8   `json:"effort_level,omitempty" example:"3" doc:"Encoder effort level (1-5)"`
	BitDepth          *uint8   `json:"bit_depth,omitempty" example:"10" doc:"Encode bit depth"`
	TargetWidth       *uint32  `json:"target_width,omitempty" example:"1280" doc:"Target width (set together with target_height)"`
	TargetHeight      *uint32  `json:"target_height,omitempty" example:"720" doc:"Target height (set together with target_width)"`
	TargetFPS         *float64 `json:"target_fps,omitempty" example:"30" doc:"Target framerate"`
	CustomBitrateKbps *uint32  `json:"custom_bitrate_kbps,omitempty" example:"4500" doc:"Custom bitrate override in kbps"`
}

// Bitrate models
type BitrateSuggestion struct {
	PresetLevel uint8  `json:"preset_level" example:"3" doc:"Quality preset level"`
	PresetLabel string `json:"preset_label" example:"Balanced" doc:"Quality preset display label"`
	Kbps        uint32 `json:"kbps" example:"3000" doc:"Suggested bitrate in kbps"`
}

type BitrateSuggestionsData struct {
	DeviceID    string              `json:"device_id" example:"cam0" doc:"Stable device identifier"`
	Suggestions []BitrateSuggestion `json:"suggestions" doc:"Per-preset bitrate suggestions, empty for passthrough or lossless"`
}

type BitrateSuggestionsResponse struct {
	Body BitrateSuggestionsData
}

// Encoder availability models
type BackendData struct {
	ID       string `json:"id" example:"nvenc" doc:"Backend identifier"`
	Name     string `json:"name" example:"NVIDIA NVENC" doc:"Display name"`
	Hardware bool   `json:"hardware" example:"true" doc:"Hardware accelerated"`
}

type CodecAvailabilityData struct {
	Codec    string        `json:"codec" example:"av1" doc:"Codec identifier"`
	Name     string        `json:"name" example:"AV1" doc:"Display name"`
	Backends []BackendData `json:"backends" doc:"Available backends, hardware first"`
}

type AvailabilityData struct {
	Codecs      []CodecAvailabilityData `json:"codecs" doc:"Available codecs"`
	Recommended string                  `json:"recommended" example:"av1" doc:"Recommended codec"`
}

type AvailabilityResponse struct {
	Body AvailabilityData
}

// Live test models
type LiveTestData struct {
	DeviceID      string `json:"device_id" example:"cam0" doc:"Stable device identifier"`
	Success       bool   `json:"success" example:"true" doc:"Encoder kept up with the source rate"`
	Warning       bool   `json:"warning" example:"false" doc:"Minor frame drops observed"`
	FramesSent    uint64 `json:"frames_sent" example:"300" doc:"Frames fed to the encoder"`
	FramesDropped uint64 `json:"frames_dropped" example:"0" doc:"Frames the encoder could not keep up with"`
	Message       string `json:"message" example:"encoded 300 frames without drops" doc:"Human-readable verdict"`
}

type LiveTestResponse struct {
	Body LiveTestData
}

// Log models
type LogEntryData struct {
	Timestamp  string         `json:"timestamp" example:"2025-03-14T10:00:00Z" doc:"Entry timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"resolve" doc:"Originating module"`
	Message    string         `json:"message" example:"Resolved configuration" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int            `json:"count" example:"120" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}
