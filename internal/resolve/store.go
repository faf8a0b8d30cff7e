package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// storeVersion 1 used target_width/height/fps = 0 as a "match source"
// sentinel. Version 2 mirrors literal values; Load upgrades version 1
// files once.
const storeVersion = 2

// configsFile is the on-disk layout of persisted device configurations.
type configsFile struct {
	Version int               `toml:"version" json:"version"`
	Devices map[string]Config `toml:"devices" json:"devices"`
}

// ConfigStore persists resolved device configurations.
type ConfigStore struct {
	path string
}

// NewConfigStore creates a store at the given path.
func NewConfigStore(path string) *ConfigStore {
	if path == "" {
		path = "device_configs.toml"
	}
	return &ConfigStore{path: path}
}

// Load reads all persisted configurations, upgrading legacy
// zero-sentinel targets to literal mirrored values. Returns an empty
// map when no file exists.
func (cs *ConfigStore) Load() (map[string]Config, error) {
	if _, err := os.Stat(cs.path); os.IsNotExist(err) {
		return map[string]Config{}, nil
	}

	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device configs: %w", err)
	}

	var file configsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse device configs: %w", err)
	}
	if file.Devices == nil {
		file.Devices = map[string]Config{}
	}

	if file.Version < storeVersion {
		for id, cfg := range file.Devices {
			file.Devices[id] = UpgradeLegacyTargets(cfg)
		}
	}
	return file.Devices, nil
}

// Save writes all configurations at the current store version.
func (cs *ConfigStore) Save(devices map[string]Config) error {
	return cs.writeVersion(storeVersion, devices)
}

func (cs *ConfigStore) writeVersion(version int, devices map[string]Config) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := configsFile{Version: version, Devices: devices}
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal device configs: %w", err)
	}
	if err := os.WriteFile(cs.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write device configs: %w", err)
	}
	return nil
}

// UpgradeLegacyTargets replaces the historical zero "match source"
// sentinel with the literal values the old convention meant: the source
// geometry when it fits 1080p30, otherwise 1080p with an even
// aspect-preserving width, and 30 fps for faster sources.
func UpgradeLegacyTargets(cfg Config) Config {
	if cfg.TargetWidth == 0 || cfg.TargetHeight == 0 {
		if cfg.SourceHeight <= defaultHeightCeiling {
			cfg.TargetWidth, cfg.TargetHeight = cfg.SourceWidth, cfg.SourceHeight
		} else {
			cfg.TargetHeight = defaultHeightCeiling
			w := uint32(float64(cfg.SourceWidth)*float64(defaultHeightCeiling)/float64(cfg.SourceHeight) + 0.5)
			if w%2 != 0 {
				w--
			}
			cfg.TargetWidth = w
		}
	}
	if cfg.TargetFPS == 0 {
		if cfg.SourceFPS <= defaultFPSCeiling+0.5 {
			cfg.TargetFPS = cfg.SourceFPS
		} else {
			cfg.TargetFPS = defaultFPSCeiling
		}
	}
	return cfg
}
