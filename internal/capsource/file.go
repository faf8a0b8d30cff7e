// Package capsource provides capability.Source implementations: a
// TOML-file-backed source for tests and headless setups, and a
// v4l2-ctl-backed source for live Linux capture devices.
package capsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/capturecfg/internal/capability"
)

// fileFormat is one source format block in the capabilities file.
type fileFormat struct {
	Name  string             `toml:"name"`
	Modes []capability.Entry `toml:"modes"`
}

// fileDevice is one device block in the capabilities file.
type fileDevice struct {
	ID      string       `toml:"id"`
	Name    string       `toml:"name,omitempty"`
	Formats []fileFormat `toml:"formats"`
}

type capabilitiesFile struct {
	Version int          `toml:"version"`
	Devices []fileDevice `toml:"devices"`
}

// FileSource is a capability.Source backed by a TOML file. Capabilities
// are read fresh from disk on every query, so edits to the file behave
// like live device changes. Pairs with config.Watcher for reload
// notifications.
type FileSource struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileSource creates a source reading from the given capabilities file.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Path returns the backing file path, for watcher registration.
func (s *FileSource) Path() string {
	return s.path
}

// Devices returns the IDs of all devices listed in the file.
func (s *FileSource) Devices(ctx context.Context) ([]string, error) {
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(file.Devices))
	for _, d := range file.Devices {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// Capabilities implements capability.Source. An unknown device yields
// empty capabilities, not an error.
func (s *FileSource) Capabilities(_ context.Context, deviceID string) (capability.DeviceCapabilities, error) {
	file, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, d := range file.Devices {
		if d.ID != deviceID {
			continue
		}
		caps := make(capability.DeviceCapabilities, len(d.Formats))
		for _, f := range d.Formats {
			caps[f.Name] = append(caps[f.Name], f.Modes...)
		}
		return caps, nil
	}
	return capability.DeviceCapabilities{}, nil
}

// Validate implements capability.Source. The tuple is checked against a
// fresh read of the file, so a mode removed since the snapshot was taken
// is rejected.
func (s *FileSource) Validate(ctx context.Context, deviceID, format string, width, height uint32, fps float64) (bool, error) {
	caps, err := s.Capabilities(ctx, deviceID)
	if err != nil {
		return false, err
	}

	for _, entry := range caps[format] {
		if entry.Width != width || entry.Height != height {
			continue
		}
		for _, advertised := range entry.Framerates {
			if capability.SameFPS(fps, advertised) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *FileSource) load() (*capabilitiesFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &capabilitiesFile{}, nil
		}
		return nil, fmt.Errorf("failed to read capabilities file: %w", err)
	}

	var file capabilitiesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities file: %w", err)
	}
	return &file, nil
}

// LoadCapabilitiesFile parses a capabilities file into per-device
// capability maps. Used as the loader for config.Watcher so sessions can
// be refreshed when the file changes.
func LoadCapabilitiesFile(path string) (map[string]capability.DeviceCapabilities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file capabilitiesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	out := make(map[string]capability.DeviceCapabilities, len(file.Devices))
	for _, d := range file.Devices {
		caps := make(capability.DeviceCapabilities, len(d.Formats))
		for _, f := range d.Formats {
			caps[f.Name] = append(caps[f.Name], f.Modes...)
		}
		out[d.ID] = caps
	}
	return out, nil
}
