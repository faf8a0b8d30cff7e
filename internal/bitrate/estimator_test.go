package bitrate

import (
	"context"
	"errors"
	"testing"

	"github.com/smazurov/capturecfg/internal/encoders"
)

// fakeProbe counts calls and serves a fixed suggestion set.
type fakeProbe struct {
	calls       int
	suggestions encoders.BitrateSuggestions
	err         error
}

func (f *fakeProbe) Availability(context.Context) (*encoders.Availability, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProbe) ProbeBitrates(_ context.Context, _ encoders.Codec, _ encoders.Backend,
	_, _ uint32, _ float64, _, _ uint32, _ float64) (encoders.BitrateSuggestions, error) {
	f.calls++
	return f.suggestions, f.err
}

func (f *fakeProbe) RunLiveTest(context.Context, string, encoders.Codec, encoders.Backend,
	uint8, uint32, uint32, float64) (*encoders.LiveTestResult, error) {
	return nil, errors.New("not implemented")
}

func TestEstimatorCaching(t *testing.T) {
	probe := &fakeProbe{suggestions: encoders.BitrateSuggestions{2500, 3500, 5000, 7000, 9000}}
	est := NewEstimator(probe, nil)
	ctx := context.Background()

	got, err := est.Suggestions(ctx, encoders.CodecH264, encoders.BackendNvenc,
		1920, 1080, 60, 1920, 1080, 30)
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if got != probe.suggestions {
		t.Errorf("suggestions = %v, want %v", got, probe.suggestions)
	}
	if probe.calls != 1 {
		t.Fatalf("probe calls = %d, want 1", probe.calls)
	}

	// Same encode geometry hits the cache even when the source differs:
	// suggestions are keyed by the encode step, not the capture step.
	if _, err := est.Suggestions(ctx, encoders.CodecH264, encoders.BackendNvenc,
		3840, 2160, 30, 1920, 1080, 30); err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if probe.calls != 1 {
		t.Errorf("probe calls = %d after cache hit, want 1", probe.calls)
	}

	// A different backend is a different key.
	if _, err := est.Suggestions(ctx, encoders.CodecH264, encoders.BackendSoftware,
		1920, 1080, 60, 1920, 1080, 30); err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if probe.calls != 2 {
		t.Errorf("probe calls = %d after backend change, want 2", probe.calls)
	}

	est.Invalidate()
	if _, err := est.Suggestions(ctx, encoders.CodecH264, encoders.BackendNvenc,
		1920, 1080, 60, 1920, 1080, 30); err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if probe.calls != 3 {
		t.Errorf("probe calls = %d after invalidation, want 3", probe.calls)
	}
}

func TestEstimatorProbeErrorNotCached(t *testing.T) {
	probe := &fakeProbe{err: errors.New("probe exploded")}
	est := NewEstimator(probe, nil)
	ctx := context.Background()

	if _, err := est.Suggestions(ctx, encoders.CodecVP9, encoders.BackendVAAPI,
		1280, 720, 30, 1280, 720, 30); err == nil {
		t.Fatal("expected error from failing probe")
	}

	probe.err = nil
	probe.suggestions = encoders.BitrateSuggestions{2000, 2500, 3500, 4500, 5500}
	got, err := est.Suggestions(ctx, encoders.CodecVP9, encoders.BackendVAAPI,
		1280, 720, 30, 1280, 720, 30)
	if err != nil {
		t.Fatalf("Suggestions failed after probe recovered: %v", err)
	}
	if got.Empty() {
		t.Error("error result was cached; recovery returned empty suggestions")
	}
}

func TestSuggestionForLevel(t *testing.T) {
	probe := &fakeProbe{suggestions: encoders.BitrateSuggestions{2500, 3500, 5000, 7000, 9000}}
	est := NewEstimator(probe, nil)

	got, err := est.SuggestionForLevel(context.Background(), encoders.CodecH264,
		encoders.BackendNvenc, 3, 1920, 1080, 30, 1920, 1080, 30)
	if err != nil {
		t.Fatalf("SuggestionForLevel failed: %v", err)
	}
	if got != 5000 {
		t.Errorf("level 3 suggestion = %d, want 5000", got)
	}
}

func TestClampCustom(t *testing.T) {
	tests := []struct {
		name      string
		requested uint32
		suggested uint32
		expected  uint32
	}{
		{"within range", 6000, 5000, 6000},
		{"below floor clamps", 1000, 5000, 2500},
		{"above ceiling clamps", 20000, 5000, 7500},
		{"equal to suggestion clears override", 5000, 5000, 0},
		{"no suggestion passes through", 4200, 0, 4200},
		{"zero request stays zero", 0, 5000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampCustom(tt.requested, tt.suggested); got != tt.expected {
				t.Errorf("ClampCustom(%d, %d) = %d, want %d",
					tt.requested, tt.suggested, got, tt.expected)
			}
		})
	}
}
