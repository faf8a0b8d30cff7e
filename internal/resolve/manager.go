package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/capturecfg/internal/bitrate"
	"github.com/smazurov/capturecfg/internal/capability"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/events"
)

// Manager owns one Session per device. Sessions share the capability
// source, estimator, and bus but no mutable state, so devices resolve
// independently.
type Manager struct {
	source    capability.Source
	estimator *bitrate.Estimator
	bus       *events.Bus
	store     *ConfigStore
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	avail    *encoders.Availability
}

// NewManager creates a session manager. store may be nil when
// persistence is not wanted.
func NewManager(source capability.Source, estimator *bitrate.Estimator,
	bus *events.Bus, store *ConfigStore, logger *slog.Logger) *Manager {
	return &Manager{
		source:    source,
		estimator: estimator,
		bus:       bus,
		store:     store,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the session for a device, creating and initializing it
// on first use. A persisted configuration is adopted and re-resolved
// against the live capability snapshot.
func (m *Manager) Open(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[deviceID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	sess := NewSession(deviceID, m.source, m.estimator, m.bus, m.logger)
	m.sessions[deviceID] = sess
	avail := m.avail
	m.mu.Unlock()

	if avail != nil {
		sess.SetAvailability(avail)
	}
	if m.store != nil {
		stored, err := m.store.Load()
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("Ignoring unreadable config store", "error", err)
			}
		} else if cfg, ok := stored[deviceID]; ok {
			sess.Adopt(cfg)
		}
	}
	if err := sess.RefreshCapabilities(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns an already-open session.
func (m *Manager) Get(deviceID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[deviceID]
	return sess, ok
}

// Close discards a device's session, as when the device disappears.
func (m *Manager) Close(deviceID string) {
	m.mu.Lock()
	delete(m.sessions, deviceID)
	m.mu.Unlock()
}

// Devices lists the devices with open sessions.
func (m *Manager) Devices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// SetAvailability pushes a fresh encoder availability snapshot to every
// session and invalidates cached bitrate suggestions.
func (m *Manager) SetAvailability(avail *encoders.Availability) {
	m.mu.Lock()
	m.avail = avail
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	if m.estimator != nil {
		m.estimator.Invalidate()
	}
	for _, sess := range sessions {
		sess.SetAvailability(avail)
	}
	if m.bus != nil && avail != nil {
		codecs := make([]string, 0, len(avail.AvailableCodecs()))
		for _, c := range avail.AvailableCodecs() {
			codecs = append(codecs, string(c))
		}
		m.bus.Publish(events.AvailabilityChangedEvent{
			RecommendedCodec: string(avail.RecommendedCodec),
			AvailableCodecs:  codecs,
			Timestamp:        eventTime(),
		})
	}
}

// Availability returns the last pushed snapshot, nil before the first
// probe completes.
func (m *Manager) Availability() *encoders.Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.avail
}

// Commit validates a device's configuration and persists it on success.
func (m *Manager) Commit(ctx context.Context, deviceID string) (Config, error) {
	sess, ok := m.Get(deviceID)
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrNoSession, deviceID)
	}
	cfg, err := sess.Commit(ctx)
	if err != nil {
		return Config{}, err
	}
	if m.store != nil {
		stored, err := m.store.Load()
		if err != nil {
			return cfg, fmt.Errorf("committed but could not read config store: %w", err)
		}
		stored[deviceID] = cfg
		if err := m.store.Save(stored); err != nil {
			return cfg, fmt.Errorf("committed but could not persist config: %w", err)
		}
	}
	return cfg, nil
}
