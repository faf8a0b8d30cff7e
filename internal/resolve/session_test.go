package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/smazurov/capturecfg/internal/bitrate"
	"github.com/smazurov/capturecfg/internal/capability"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/events"
)

// fakeSource serves fixed capabilities and a scriptable validate.
type fakeSource struct {
	caps        capability.DeviceCapabilities
	validateOK  bool
	validateErr error
	validated   []string
}

func (f *fakeSource) Capabilities(_ context.Context, _ string) (capability.DeviceCapabilities, error) {
	return f.caps, nil
}

func (f *fakeSource) Validate(_ context.Context, _ string, format string, width, height uint32, fps float64) (bool, error) {
	f.validated = append(f.validated, format)
	return f.validateOK, f.validateErr
}

// modelProbe serves suggestions straight from the calibrated model.
type modelProbe struct{}

func (modelProbe) Availability(context.Context) (*encoders.Availability, error) {
	return hardwareAvailability(), nil
}

func (modelProbe) ProbeBitrates(_ context.Context, codec encoders.Codec, backend encoders.Backend,
	_, _ uint32, _ float64, tgtW, tgtH uint32, tgtFPS float64) (encoders.BitrateSuggestions, error) {
	var out encoders.BitrateSuggestions
	for level := uint8(encoders.MinPreset); level <= encoders.MaxPreset; level++ {
		out[level-1] = encoders.ScaledBitrateKbps(codec, backend, level, tgtW, tgtH, tgtFPS)
	}
	return out, nil
}

func (modelProbe) RunLiveTest(context.Context, string, encoders.Codec, encoders.Backend,
	uint8, uint32, uint32, float64) (*encoders.LiveTestResult, error) {
	return &encoders.LiveTestResult{Success: true}, nil
}

func newTestSession(t *testing.T, src *fakeSource) *Session {
	t.Helper()
	est := bitrate.NewEstimator(modelProbe{}, nil)
	sess := NewSession("cam-front", src, est, events.New(), nil)
	sess.SetAvailability(hardwareAvailability())
	if err := sess.RefreshCapabilities(context.Background()); err != nil {
		t.Fatalf("RefreshCapabilities failed: %v", err)
	}
	return sess
}

func mixedSource() *fakeSource {
	return &fakeSource{
		caps: capability.DeviceCapabilities{
			"MJPEG": {{Width: 1920, Height: 1080, Framerates: []float64{60, 30}}},
			"YUY2": {
				{Width: 1920, Height: 1080, Framerates: []float64{30}},
				{Width: 1280, Height: 720, Framerates: []float64{30}},
			},
		},
		validateOK: true,
	}
}

func TestSessionEditCascades(t *testing.T) {
	sess := newTestSession(t, mixedSource())

	cfg, ok := sess.Config()
	if !ok {
		t.Fatal("session has no config after refresh")
	}
	if cfg.SourceFormat != "MJPEG" || cfg.SourceFPS != 30 {
		t.Fatalf("unexpected default: %+v", cfg)
	}

	got := sess.SetResolution(1280, 720)
	if got.SourceFormat != "YUY2" || got.Passthrough {
		t.Errorf("resolution edit did not cascade: %+v", got)
	}
	if sess.Generation() == 0 {
		t.Error("edits must advance the generation")
	}
}

func TestSessionGenerationAdvancesPerEdit(t *testing.T) {
	sess := newTestSession(t, mixedSource())
	before := sess.Generation()
	sess.SetFPS(60)
	sess.SetPresetLevel(5)
	if got := sess.Generation(); got != before+2 {
		t.Errorf("generation = %d, want %d", got, before+2)
	}
}

func TestStaleAvailabilityDiscarded(t *testing.T) {
	sess := newTestSession(t, mixedSource())

	// Snapshot availability was requested at this generation.
	issuedAt := sess.Generation()
	// The user keeps editing before the response lands.
	sess.SetCodec(encoders.CodecVP9)

	stale := softwareOnlyAvailability()
	if sess.ApplyAvailability(stale, issuedAt) {
		t.Fatal("stale availability response must be discarded")
	}
	cfg, _ := sess.Config()
	if cfg.Codec != encoders.CodecVP9 {
		t.Errorf("stale response overwrote manual codec pick: %s", cfg.Codec)
	}

	// A response stamped with the current generation applies.
	if !sess.ApplyAvailability(stale, sess.Generation()) {
		t.Fatal("fresh availability response must apply")
	}
	cfg, _ = sess.Config()
	// vp9 is still available in the new snapshot, so the manual pick
	// stays; only the backend is re-resolved.
	if cfg.Codec != encoders.CodecVP9 {
		t.Errorf("codec = %s, want vp9 preserved", cfg.Codec)
	}
	if cfg.Backend != encoders.BackendSoftware {
		t.Errorf("backend = %s, want software per new snapshot", cfg.Backend)
	}
}

func TestCustomBitrateClampAndInvalidation(t *testing.T) {
	sess := newTestSession(t, mixedSource())
	ctx := context.Background()

	cfg, _ := sess.Config()
	suggestions, err := sess.Suggestions(ctx)
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	suggested := suggestions.ForLevel(cfg.PresetLevel)
	if suggested == 0 {
		t.Fatal("no suggestion for the default preset")
	}

	// A request far above the band clamps to 1.5x the suggestion.
	got, err := sess.SetCustomBitrate(ctx, suggested*3)
	if err != nil {
		t.Fatalf("SetCustomBitrate failed: %v", err)
	}
	want := uint32(float64(suggested)*1.5 + 0.5)
	if got.CustomBitrateKbps != want {
		t.Errorf("custom bitrate = %d, want clamp to %d", got.CustomBitrateKbps, want)
	}

	// Shrinking the target changes the bitrate key and clears the
	// override.
	got = sess.SetTargetResolution(1280, 720)
	if got.CustomBitrateKbps != 0 {
		t.Errorf("custom bitrate = %d, want cleared after target change", got.CustomBitrateKbps)
	}
}

func TestCommitRejectionNamesTupleAndKeepsConfig(t *testing.T) {
	src := mixedSource()
	src.validateOK = false
	sess := newTestSession(t, src)

	before, _ := sess.Config()
	_, err := sess.Commit(context.Background())
	if err == nil {
		t.Fatal("commit must fail when validation rejects the mode")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if verr.Tuple() != "1920x1080 @ 30fps MJPEG" {
		t.Errorf("tuple = %q, want %q", verr.Tuple(), "1920x1080 @ 30fps MJPEG")
	}

	after, _ := sess.Config()
	if !before.Equal(after) {
		t.Error("rejected commit must leave the config unchanged")
	}
}

func TestCommitSuccess(t *testing.T) {
	sess := newTestSession(t, mixedSource())
	cfg, err := sess.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if cfg.SourceFormat != "MJPEG" {
		t.Errorf("committed format = %q, want MJPEG", cfg.SourceFormat)
	}
}

func TestBackendReassignedEventOnCodecChange(t *testing.T) {
	src := mixedSource()
	est := bitrate.NewEstimator(modelProbe{}, nil)
	bus := events.New()
	received := make(chan events.BackendReassignedEvent, 8)
	unsub := bus.Subscribe(func(e events.BackendReassignedEvent) { received <- e })
	defer unsub()

	sess := NewSession("cam-front", src, est, bus, nil)
	sess.SetAvailability(softwareOnlyAvailability())
	if err := sess.RefreshCapabilities(context.Background()); err != nil {
		t.Fatalf("RefreshCapabilities failed: %v", err)
	}
	// Initial resolution assigns a backend.
	<-received

	sess.SetCodec(encoders.CodecVP9)
	ev := <-received
	if ev.Codec != "vp9" || ev.Backend != "software" {
		t.Errorf("event = %+v, want vp9/software", ev)
	}
	// Both codecs recommend the software backend; the event fires
	// anyway.
	if ev.Previous != ev.Backend {
		t.Errorf("expected textually identical previous backend, got %q -> %q", ev.Previous, ev.Backend)
	}
}

func TestManagerPersistsOnCommit(t *testing.T) {
	dir := t.TempDir()
	store := NewConfigStore(filepath.Join(dir, "device_configs.toml"))
	src := mixedSource()
	est := bitrate.NewEstimator(modelProbe{}, nil)
	mgr := NewManager(src, est, events.New(), store, nil)
	mgr.SetAvailability(hardwareAvailability())
	ctx := context.Background()

	sess, err := mgr.Open(ctx, "cam-front")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sess.SetFPS(60)

	committed, err := mgr.Commit(ctx, "cam-front")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.SourceFPS != 60 {
		t.Fatalf("committed fps = %v, want 60", committed.SourceFPS)
	}

	// A new manager over the same store adopts the persisted config.
	mgr2 := NewManager(src, est, events.New(), store, nil)
	mgr2.SetAvailability(hardwareAvailability())
	sess2, err := mgr2.Open(ctx, "cam-front")
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	cfg, ok := sess2.Config()
	if !ok {
		t.Fatal("restored session has no config")
	}
	if cfg.SourceFPS != 60 {
		t.Errorf("restored fps = %v, want 60", cfg.SourceFPS)
	}
}

func TestManagerCommitWithoutSession(t *testing.T) {
	mgr := NewManager(mixedSource(), nil, nil, nil, nil)
	if _, err := mgr.Commit(context.Background(), "ghost"); !errors.Is(err, ErrNoSession) {
		t.Errorf("error = %v, want ErrNoSession", err)
	}
}

func TestSessionOnEmptyDevice(t *testing.T) {
	src := &fakeSource{caps: capability.DeviceCapabilities{}, validateOK: true}
	sess := NewSession("cam-empty", src, nil, nil, nil)
	if err := sess.RefreshCapabilities(context.Background()); err != nil {
		t.Fatalf("RefreshCapabilities failed: %v", err)
	}
	if _, ok := sess.Config(); ok {
		t.Error("empty device must not produce a config")
	}
	if _, err := sess.Commit(context.Background()); !errors.Is(err, ErrNothingUsable) {
		t.Errorf("error = %v, want ErrNothingUsable", err)
	}
}

func TestConfigStoreUpgradesLegacyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device_configs.toml")
	store := NewConfigStore(path)

	// A version 1 store with zero-sentinel targets.
	legacy := map[string]Config{
		"cam-front": {
			SourceFormat: "MJPEG",
			SourceWidth:  3840, SourceHeight: 2160, SourceFPS: 60,
			PresetLevel: 3,
		},
	}
	if err := (&ConfigStore{path: path}).writeVersion(1, legacy); err != nil {
		t.Fatalf("failed to seed legacy store: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := loaded["cam-front"]
	if cfg.TargetWidth != 1920 || cfg.TargetHeight != 1080 {
		t.Errorf("upgraded target = %dx%d, want 1920x1080", cfg.TargetWidth, cfg.TargetHeight)
	}
	if cfg.TargetFPS != 30 {
		t.Errorf("upgraded target fps = %v, want 30", cfg.TargetFPS)
	}
}
