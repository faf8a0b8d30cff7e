package events

// Event type constants for kelindar/event.
const (
	TypeConfigResolved uint32 = iota + 1
	TypeBackendReassigned
	TypeValidationFailed
	TypeAvailabilityChanged
	TypeLiveTestCompleted
	TypeCapabilitiesChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ConfigResolvedEvent is published after every resolution pass, carrying
// the resolved snapshot so subscribers never have to re-query.
type ConfigResolvedEvent struct {
	DeviceID     string  `json:"device_id" example:"cam-front" doc:"Device identifier"`
	Generation   uint64  `json:"generation" example:"17" doc:"Edit generation that produced this config"`
	SourceFormat string  `json:"source_format" example:"MJPEG" doc:"Resolved source format"`
	SourceWidth  uint32  `json:"source_width" example:"1920" doc:"Source width in pixels"`
	SourceHeight uint32  `json:"source_height" example:"1080" doc:"Source height in pixels"`
	SourceFPS    float64 `json:"source_fps" example:"30" doc:"Source framerate"`
	Passthrough  bool    `json:"passthrough" example:"false" doc:"Whether the stream is stored unmodified"`
	Codec        string  `json:"codec,omitempty" example:"av1" doc:"Encoding codec when not passthrough"`
	Backend      string  `json:"backend,omitempty" example:"nvenc" doc:"Encoder backend when not passthrough"`
	Timestamp    string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigResolvedEvent.
func (e ConfigResolvedEvent) Type() uint32 { return TypeConfigResolved }

// BackendReassignedEvent is published whenever the encoder backend is
// recomputed, even when the new value equals the old one. Subscribers
// holding backend-dependent state (bitrate suggestions) must react to
// the reassignment itself, not to a value diff.
type BackendReassignedEvent struct {
	DeviceID   string `json:"device_id" example:"cam-front" doc:"Device identifier"`
	Generation uint64 `json:"generation" example:"17" doc:"Edit generation of the reassignment"`
	Codec      string `json:"codec" example:"vp9" doc:"Codec the backend was resolved for"`
	Backend    string `json:"backend" example:"software" doc:"Newly resolved backend"`
	Previous   string `json:"previous,omitempty" example:"software" doc:"Backend before the reassignment, possibly identical"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BackendReassignedEvent.
func (e BackendReassignedEvent) Type() uint32 { return TypeBackendReassigned }

// ValidationFailedEvent is published when a commit is rejected by the
// capability source.
type ValidationFailedEvent struct {
	DeviceID  string  `json:"device_id" example:"cam-front" doc:"Device identifier"`
	Format    string  `json:"format" example:"H264" doc:"Rejected format"`
	Width     uint32  `json:"width" example:"1920" doc:"Rejected width"`
	Height    uint32  `json:"height" example:"1080" doc:"Rejected height"`
	FPS       float64 `json:"fps" example:"30" doc:"Rejected framerate"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ValidationFailedEvent.
func (e ValidationFailedEvent) Type() uint32 { return TypeValidationFailed }

// AvailabilityChangedEvent is published when a fresh encoder
// availability snapshot is accepted.
type AvailabilityChangedEvent struct {
	RecommendedCodec string   `json:"recommended_codec" example:"av1" doc:"Globally recommended codec"`
	AvailableCodecs  []string `json:"available_codecs" doc:"Codecs with at least one backend"`
	Timestamp        string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AvailabilityChangedEvent.
func (e AvailabilityChangedEvent) Type() uint32 { return TypeAvailabilityChanged }

// LiveTestCompletedEvent carries the outcome of a live encoder test.
type LiveTestCompletedEvent struct {
	DeviceID      string `json:"device_id" example:"cam-front" doc:"Device identifier"`
	Codec         string `json:"codec" example:"av1" doc:"Tested codec"`
	Backend       string `json:"backend" example:"nvenc" doc:"Tested backend"`
	PresetLevel   uint8  `json:"preset_level" example:"3" doc:"Tested preset level"`
	Success       bool   `json:"success" example:"true" doc:"Whether the encoder kept up"`
	Warning       bool   `json:"warning" example:"false" doc:"Success with a small number of drops"`
	FramesSent    uint64 `json:"frames_sent" example:"300" doc:"Frames fed to the encoder"`
	FramesDropped uint64 `json:"frames_dropped" example:"0" doc:"Frames the encoder dropped"`
	Message       string `json:"message" doc:"Human-readable verdict"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LiveTestCompletedEvent.
func (e LiveTestCompletedEvent) Type() uint32 { return TypeLiveTestCompleted }

// CapabilitiesChangedEvent is published when a device's capability
// snapshot is refreshed and the session re-resolves against it.
type CapabilitiesChangedEvent struct {
	DeviceID  string `json:"device_id" example:"cam-front" doc:"Device identifier"`
	Formats   int    `json:"formats" example:"3" doc:"Number of advertised formats"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CapabilitiesChangedEvent.
func (e CapabilitiesChangedEvent) Type() uint32 { return TypeCapabilitiesChanged }
