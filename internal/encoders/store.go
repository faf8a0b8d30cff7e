package encoders

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// storedBackend is the on-disk form of a probed backend.
type storedBackend struct {
	ID          string `toml:"id" json:"id"`
	DisplayName string `toml:"display_name" json:"display_name"`
	Hardware    bool   `toml:"hardware" json:"hardware"`
	EncoderName string `toml:"encoder_name" json:"encoder_name"`
}

// storedCodec is the on-disk form of a codec's availability.
type storedCodec struct {
	Available   bool            `toml:"available" json:"available"`
	HasHardware bool            `toml:"has_hardware" json:"has_hardware"`
	Recommended string          `toml:"recommended,omitempty" json:"recommended,omitempty"`
	Backends    []storedBackend `toml:"backends,omitempty" json:"backends,omitempty"`
}

// availabilityFile is the complete snapshot file.
type availabilityFile struct {
	Version          int                    `toml:"version" json:"version"`
	ProbedAt         time.Time              `toml:"probed_at" json:"probed_at"`
	RecommendedCodec string                 `toml:"recommended_codec,omitempty" json:"recommended_codec,omitempty"`
	Codecs           map[string]storedCodec `toml:"codecs" json:"codecs"`
}

// Store persists encoder availability snapshots so the engine can serve
// the last known availability before a fresh probe completes.
type Store struct {
	path string
}

// NewStore creates an availability store at the given path.
func NewStore(path string) *Store {
	if path == "" {
		path = "encoder_availability.toml"
	}
	return &Store{path: path}
}

// Load reads the last persisted snapshot. Returns (nil, nil) when no
// snapshot exists yet.
func (s *Store) Load() (*Availability, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read availability snapshot: %w", err)
	}

	var file availabilityFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse availability snapshot: %w", err)
	}

	avail := &Availability{
		Codecs:           make(map[Codec]CodecAvailability, len(file.Codecs)),
		RecommendedCodec: Codec(file.RecommendedCodec),
	}
	for name, sc := range file.Codecs {
		ca := CodecAvailability{
			Available:   sc.Available,
			HasHardware: sc.HasHardware,
			Recommended: Backend(sc.Recommended),
		}
		for _, sb := range sc.Backends {
			ca.Backends = append(ca.Backends, BackendInfo{
				ID:          Backend(sb.ID),
				DisplayName: sb.DisplayName,
				Hardware:    sb.Hardware,
				EncoderName: sb.EncoderName,
			})
		}
		avail.Codecs[Codec(name)] = ca
	}
	return avail, nil
}

// Save writes the snapshot to disk.
func (s *Store) Save(avail *Availability) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	file := availabilityFile{
		Version:          1,
		ProbedAt:         time.Now(),
		RecommendedCodec: string(avail.RecommendedCodec),
		Codecs:           make(map[string]storedCodec, len(avail.Codecs)),
	}
	for codec, ca := range avail.Codecs {
		sc := storedCodec{
			Available:   ca.Available,
			HasHardware: ca.HasHardware,
			Recommended: string(ca.Recommended),
		}
		for _, b := range ca.Backends {
			sc.Backends = append(sc.Backends, storedBackend{
				ID:          string(b.ID),
				DisplayName: b.DisplayName,
				Hardware:    b.Hardware,
				EncoderName: b.EncoderName,
			})
		}
		file.Codecs[string(codec)] = sc
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal availability snapshot: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write availability snapshot: %w", err)
	}
	return nil
}
