// Package bitrate caches per-configuration bitrate suggestions and
// bounds user-supplied overrides against them.
package bitrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/metrics"
)

// Custom bitrate bounds relative to the suggestion for the active
// preset level.
const (
	customMinRatio = 0.5
	customMaxRatio = 1.5
)

// Key identifies one suggestion set. Suggestions depend only on the
// codec, backend, and effective encoding geometry, never on the source
// geometry, so upstream cascade changes that leave the encode step
// untouched hit the cache.
type Key struct {
	Codec    encoders.Codec
	Backend  encoders.Backend
	Width    uint32
	Height   uint32
	FPSMilli uint32
}

// NewKey builds a cache key. The framerate is stored in millihertz so
// the key stays comparable; 0.01 fps tolerance collapses into the same
// bucket in practice.
func NewKey(codec encoders.Codec, backend encoders.Backend, width, height uint32, fps float64) Key {
	return Key{
		Codec:    codec,
		Backend:  backend,
		Width:    width,
		Height:   height,
		FPSMilli: uint32(fps*1000 + 0.5),
	}
}

// String renders the key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s %dx%d@%d.%03d",
		k.Codec, k.Backend, k.Width, k.Height, k.FPSMilli/1000, k.FPSMilli%1000)
}

// Estimator answers bitrate suggestion queries, caching probe results
// per configuration key. Safe for concurrent use.
type Estimator struct {
	probe  encoders.ProbeService
	logger *slog.Logger

	mu    sync.Mutex
	cache map[Key]encoders.BitrateSuggestions
}

// NewEstimator creates an estimator backed by the given probe service.
func NewEstimator(probe encoders.ProbeService, logger *slog.Logger) *Estimator {
	return &Estimator{
		probe:  probe,
		logger: logger,
		cache:  make(map[Key]encoders.BitrateSuggestions),
	}
}

// Suggestions returns the per-level bitrate suggestions for the given
// encoding configuration, probing on a cache miss.
func (e *Estimator) Suggestions(ctx context.Context, codec encoders.Codec, backend encoders.Backend,
	srcWidth, srcHeight uint32, srcFPS float64,
	tgtWidth, tgtHeight uint32, tgtFPS float64) (encoders.BitrateSuggestions, error) {

	key := NewKey(codec, backend, tgtWidth, tgtHeight, tgtFPS)

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		metrics.IncProbeCacheHit()
		return cached, nil
	}
	e.mu.Unlock()
	metrics.IncProbeCacheMiss()

	suggestions, err := e.probe.ProbeBitrates(ctx, codec, backend,
		srcWidth, srcHeight, srcFPS, tgtWidth, tgtHeight, tgtFPS)
	if err != nil {
		return encoders.BitrateSuggestions{}, fmt.Errorf("bitrate probe for %s failed: %w", key, err)
	}

	e.mu.Lock()
	e.cache[key] = suggestions
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Debug("Cached bitrate suggestions", "key", key.String())
	}
	return suggestions, nil
}

// SuggestionForLevel is Suggestions narrowed to one preset level.
func (e *Estimator) SuggestionForLevel(ctx context.Context, codec encoders.Codec, backend encoders.Backend,
	level uint8, srcWidth, srcHeight uint32, srcFPS float64,
	tgtWidth, tgtHeight uint32, tgtFPS float64) (uint32, error) {

	suggestions, err := e.Suggestions(ctx, codec, backend,
		srcWidth, srcHeight, srcFPS, tgtWidth, tgtHeight, tgtFPS)
	if err != nil {
		return 0, err
	}
	return suggestions.ForLevel(level), nil
}

// Invalidate clears the cache. Called when encoder availability changes,
// since suggestions can differ across backends.
func (e *Estimator) Invalidate() {
	e.mu.Lock()
	n := len(e.cache)
	e.cache = make(map[Key]encoders.BitrateSuggestions)
	e.mu.Unlock()
	if e.logger != nil && n > 0 {
		e.logger.Debug("Invalidated bitrate suggestion cache", "entries", n)
	}
}

// ClampCustom bounds a requested custom bitrate to [0.5x, 1.5x] of the
// suggestion. A request equal to the suggestion (after clamping) means
// "no override" and returns 0; a zero suggestion accepts the request
// unchanged since there is nothing to clamp against.
func ClampCustom(requestedKbps, suggestedKbps uint32) uint32 {
	if requestedKbps == 0 || suggestedKbps == 0 {
		return requestedKbps
	}
	min := uint32(float64(suggestedKbps)*customMinRatio + 0.5)
	max := uint32(float64(suggestedKbps)*customMaxRatio + 0.5)
	clamped := requestedKbps
	if clamped < min {
		clamped = min
	}
	if clamped > max {
		clamped = max
	}
	if clamped == suggestedKbps {
		return 0
	}
	return clamped
}
