package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/capturecfg/internal/bitrate"
	"github.com/smazurov/capturecfg/internal/capability"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/events"
	"github.com/smazurov/capturecfg/internal/metrics"
)

// Session is one device's configuration editing session. Edits are
// serialized under a mutex, and every edit bumps a monotonic generation
// counter; asynchronous responses are stamped with the generation they
// were issued against and discarded when stale, so an in-flight
// availability lookup can never overwrite a newer manual pick.
type Session struct {
	deviceID  string
	source    capability.Source
	estimator *bitrate.Estimator
	bus       *events.Bus
	logger    *slog.Logger

	mu         sync.Mutex
	generation uint64
	index      *capability.Index
	avail      *encoders.Availability
	cfg        Config
	hasConfig  bool
}

// NewSession creates a session for one device. Call
// RefreshCapabilities to load the capability snapshot and build the
// initial configuration.
func NewSession(deviceID string, source capability.Source, estimator *bitrate.Estimator,
	bus *events.Bus, logger *slog.Logger) *Session {
	return &Session{
		deviceID:  deviceID,
		source:    source,
		estimator: estimator,
		bus:       bus,
		logger:    logger,
	}
}

// DeviceID returns the device this session configures.
func (s *Session) DeviceID() string { return s.deviceID }

// Generation returns the current edit generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Config returns the current resolved configuration. ok is false while
// the device offers nothing usable.
func (s *Session) Config() (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.hasConfig
}

// Index returns the capability index the session resolves against.
func (s *Session) Index() *capability.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// RefreshCapabilities re-queries the capability source and re-resolves
// the configuration against the fresh snapshot. An adopted prior config
// is kept where it is still valid; otherwise fields are substituted per
// the cascade rules.
func (s *Session) RefreshCapabilities(ctx context.Context) error {
	caps, err := s.source.Capabilities(ctx, s.deviceID)
	if err != nil {
		return fmt.Errorf("failed to query capabilities for %s: %w", s.deviceID, err)
	}
	idx := capability.NewIndex(caps)

	s.mu.Lock()
	s.generation++
	s.index = idx
	if !s.hasConfig {
		cfg, out, ok := ComputeDefault(idx, s.avail)
		if ok {
			s.cfg = cfg
			s.hasConfig = true
			s.publishResolvedLocked(out)
		}
	} else {
		s.resolveLocked(FieldNone)
	}
	formatsCount := len(idx.Formats())
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.CapabilitiesChangedEvent{
			DeviceID:  s.deviceID,
			Formats:   formatsCount,
			Timestamp: eventTime(),
		})
	}
	return nil
}

// Adopt installs a previously persisted configuration and re-resolves
// it against the current capability snapshot.
func (s *Session) Adopt(cfg Config) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.cfg = cfg
	s.hasConfig = true
	return s.resolveLocked(FieldNone)
}

// RequestAvailability issues an availability probe stamped with the
// current generation and applies the result unless a later edit made
// it stale. Blocking; run in a goroutine when used from an edit loop.
func (s *Session) RequestAvailability(ctx context.Context, probe encoders.ProbeService) error {
	s.mu.Lock()
	issuedAt := s.generation
	s.mu.Unlock()

	avail, err := probe.Availability(ctx)
	if err != nil {
		return fmt.Errorf("availability probe failed: %w", err)
	}
	s.ApplyAvailability(avail, issuedAt)
	return nil
}

// ApplyAvailability installs an availability snapshot stamped with the
// generation it was requested against. Returns false when the response
// is stale and was discarded.
func (s *Session) ApplyAvailability(avail *encoders.Availability, issuedAt uint64) bool {
	s.mu.Lock()
	if issuedAt != s.generation {
		current := s.generation
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Debug("Discarded stale availability response",
				"device", s.deviceID, "issued_at", issuedAt, "generation", current)
		}
		return false
	}
	s.setAvailabilityLocked(avail)
	s.mu.Unlock()
	return true
}

// SetAvailability installs a fresh availability snapshot
// unconditionally, bypassing the staleness gate. Used when the snapshot
// is pushed by the owner rather than fetched against a generation.
func (s *Session) SetAvailability(avail *encoders.Availability) {
	s.mu.Lock()
	s.setAvailabilityLocked(avail)
	s.mu.Unlock()
}

func (s *Session) setAvailabilityLocked(avail *encoders.Availability) {
	s.generation++
	s.avail = avail
	if s.hasConfig {
		// Availability only feeds the encoding stage; re-resolving from
		// the codec keeps upstream manual picks intact.
		s.resolveLocked(FieldCodec)
	}
}

// SetResolution edits the source resolution and cascades.
func (s *Session) SetResolution(width, height uint32) Config {
	return s.edit(FieldResolution, func(c *Config) {
		c.SourceWidth, c.SourceHeight = width, height
	})
}

// SetFPS edits the source framerate and cascades.
func (s *Session) SetFPS(fps float64) Config {
	return s.edit(FieldFPS, func(c *Config) { c.SourceFPS = fps })
}

// SetFormat edits the source format and cascades.
func (s *Session) SetFormat(format string) Config {
	return s.edit(FieldFormat, func(c *Config) { c.SourceFormat = format })
}

// SetPassthrough toggles passthrough. Raw formats force it back off.
func (s *Session) SetPassthrough(enabled bool) Config {
	return s.edit(FieldPassthrough, func(c *Config) { c.Passthrough = enabled })
}

// SetCodec edits the encoding codec and reassigns the backend.
func (s *Session) SetCodec(codec encoders.Codec) Config {
	return s.edit(FieldCodec, func(c *Config) { c.Codec = codec })
}

// SetBackend edits the encoder backend.
func (s *Session) SetBackend(backend encoders.Backend) Config {
	return s.edit(FieldBackend, func(c *Config) { c.Backend = backend })
}

// SetPresetLevel edits the speed/quality preset.
func (s *Session) SetPresetLevel(level uint8) Config {
	return s.edit(FieldPresetLevel, func(c *Config) { c.PresetLevel = level })
}

// SetEffortLevel edits the software-only compute effort.
func (s *Session) SetEffortLevel(level uint8) Config {
	return s.edit(FieldEffortLevel, func(c *Config) { c.EffortLevel = level })
}

// SetBitDepth edits the recording bit depth.
func (s *Session) SetBitDepth(depth uint8) Config {
	return s.edit(FieldBitDepth, func(c *Config) { c.BitDepth = depth })
}

// SetTargetResolution edits the encoded output resolution.
func (s *Session) SetTargetResolution(width, height uint32) Config {
	return s.edit(FieldTargetResolution, func(c *Config) {
		c.TargetWidth, c.TargetHeight = width, height
	})
}

// SetTargetFPS edits the encoded output framerate.
func (s *Session) SetTargetFPS(fps float64) Config {
	return s.edit(FieldTargetFPS, func(c *Config) { c.TargetFPS = fps })
}

// SetCustomBitrate sets a bitrate override, clamped to the allowed band
// around the current suggestion. Zero clears the override.
func (s *Session) SetCustomBitrate(ctx context.Context, kbps uint32) (Config, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	clamped := kbps
	if kbps != 0 && s.estimator != nil && cfg.Codec != "" {
		suggested, err := s.estimator.SuggestionForLevel(ctx, cfg.Codec, cfg.Backend,
			cfg.PresetLevel, cfg.SourceWidth, cfg.SourceHeight, cfg.SourceFPS,
			cfg.TargetWidth, cfg.TargetHeight, cfg.TargetFPS)
		if err != nil {
			return cfg, err
		}
		clamped = bitrate.ClampCustom(kbps, suggested)
	}
	return s.edit(FieldCustomBitrate, func(c *Config) { c.CustomBitrateKbps = clamped }), nil
}

// Suggestions returns the per-level bitrate suggestions for the current
// configuration.
func (s *Session) Suggestions(ctx context.Context) (encoders.BitrateSuggestions, error) {
	s.mu.Lock()
	cfg := s.cfg
	ok := s.hasConfig
	s.mu.Unlock()
	if !ok || cfg.Passthrough || cfg.Codec == "" || s.estimator == nil {
		return encoders.BitrateSuggestions{}, nil
	}
	return s.estimator.Suggestions(ctx, cfg.Codec, cfg.Backend,
		cfg.SourceWidth, cfg.SourceHeight, cfg.SourceFPS,
		cfg.TargetWidth, cfg.TargetHeight, cfg.TargetFPS)
}

// Commit validates the current configuration against the live device
// and returns it on success. A rejection leaves the configuration
// untouched and returns a ValidationError naming the rejected mode.
func (s *Session) Commit(ctx context.Context) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasConfig {
		return Config{}, ErrNothingUsable
	}
	cfg := s.cfg

	ok, err := s.source.Validate(ctx, s.deviceID, cfg.SourceFormat,
		cfg.SourceWidth, cfg.SourceHeight, cfg.SourceFPS)
	if err != nil {
		return Config{}, fmt.Errorf("validation for %s failed: %w", s.deviceID, err)
	}
	if !ok {
		verr := &ValidationError{
			DeviceID: s.deviceID,
			Format:   cfg.SourceFormat,
			Width:    cfg.SourceWidth,
			Height:   cfg.SourceHeight,
			FPS:      cfg.SourceFPS,
		}
		if s.bus != nil {
			s.bus.Publish(events.ValidationFailedEvent{
				DeviceID:  s.deviceID,
				Format:    verr.Format,
				Width:     verr.Width,
				Height:    verr.Height,
				FPS:       verr.FPS,
				Timestamp: eventTime(),
			})
		}
		metrics.IncValidationRejection(s.deviceID)
		if s.logger != nil {
			s.logger.Warn("Commit rejected by capability source",
				"device", s.deviceID, "mode", verr.Tuple())
		}
		return Config{}, verr
	}
	return cfg, nil
}

// edit runs one serialized resolution pass: bump the generation, apply
// the mutation, cascade, publish.
func (s *Session) edit(changed Field, mutate func(*Config)) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	mutate(&s.cfg)
	return s.resolveLocked(changed)
}

func (s *Session) resolveLocked(changed Field) Config {
	cfg, out := Resolve(s.cfg, changed, s.index, s.avail)
	s.cfg = cfg
	metrics.IncResolvePass(s.deviceID)
	if out.BackendReassigned {
		metrics.IncBackendReassignment(s.deviceID)
	}
	s.publishResolvedLocked(out)
	if s.logger != nil {
		s.logger.Debug("Resolved configuration",
			"device", s.deviceID,
			"changed", changed.String(),
			"generation", s.generation,
			"format", cfg.SourceFormat,
			"resolution", fmt.Sprintf("%dx%d", cfg.SourceWidth, cfg.SourceHeight),
			"fps", cfg.SourceFPS,
			"passthrough", cfg.Passthrough)
	}
	return cfg
}

func (s *Session) publishResolvedLocked(out Outcome) {
	if s.bus == nil {
		return
	}
	cfg := s.cfg
	if out.BackendReassigned {
		s.bus.Publish(events.BackendReassignedEvent{
			DeviceID:   s.deviceID,
			Generation: s.generation,
			Codec:      string(cfg.Codec),
			Backend:    string(cfg.Backend),
			Previous:   string(out.PreviousBackend),
			Timestamp:  eventTime(),
		})
	}
	s.bus.Publish(events.ConfigResolvedEvent{
		DeviceID:     s.deviceID,
		Generation:   s.generation,
		SourceFormat: cfg.SourceFormat,
		SourceWidth:  cfg.SourceWidth,
		SourceHeight: cfg.SourceHeight,
		SourceFPS:    cfg.SourceFPS,
		Passthrough:  cfg.Passthrough,
		Codec:        string(cfg.Codec),
		Backend:      string(cfg.Backend),
		Timestamp:    eventTime(),
	})
}

func eventTime() string {
	return time.Now().UTC().Format(time.RFC3339)
}
