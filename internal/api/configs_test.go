package api

import (
	"context"
	"testing"

	"github.com/smazurov/capturecfg/internal/api/models"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/resolve"
)

func TestConfigToAPI(t *testing.T) {
	cfg := resolve.Config{
		SourceFormat: "MJPEG",
		SourceWidth:  1920,
		SourceHeight: 1080,
		SourceFPS:    30,
		Codec:        encoders.CodecAV1,
		Backend:      encoders.BackendNvenc,
		PresetLevel:  3,
		EffortLevel:  3,
		TargetWidth:  1920,
		TargetHeight: 1080,
		TargetFPS:    30,
	}

	data := configToAPI(cfg)
	if data.SourceFormat != "MJPEG" || data.SourceWidth != 1920 {
		t.Errorf("unexpected source fields: %+v", data)
	}
	if data.Codec != "av1" || data.Backend != "nvenc" {
		t.Errorf("unexpected encoder fields: codec=%q backend=%q", data.Codec, data.Backend)
	}
	if data.PresetLabel != encoders.PresetLabel(3) {
		t.Errorf("preset label = %q, want %q", data.PresetLabel, encoders.PresetLabel(3))
	}
	if data.PassthroughLocked {
		t.Error("MJPEG source should not lock passthrough")
	}
}

func TestConfigToAPILocksPassthroughForRawSources(t *testing.T) {
	cfg := resolve.Config{
		SourceFormat: "YUY2",
		SourceWidth:  1280,
		SourceHeight: 720,
		SourceFPS:    30,
		Codec:        encoders.CodecVP9,
		Backend:      encoders.BackendSoftware,
		PresetLevel:  3,
		EffortLevel:  3,
		TargetWidth:  1280,
		TargetHeight: 720,
		TargetFPS:    30,
	}

	data := configToAPI(cfg)
	if !data.PassthroughLocked {
		t.Error("raw source should lock passthrough off")
	}
	if data.Passthrough {
		t.Error("raw source must not report passthrough enabled")
	}
}

func TestApplyEditRejectsPartialResolution(t *testing.T) {
	width := uint32(1920)

	_, err := applyEdit(context.Background(), nil, models.EditRequestData{Width: &width})
	if err == nil {
		t.Fatal("expected error for width without height")
	}

	_, err = applyEdit(context.Background(), nil, models.EditRequestData{TargetWidth: &width})
	if err == nil {
		t.Fatal("expected error for target_width without target_height")
	}
}

func TestApplyEditRejectsEmptyRequest(t *testing.T) {
	_, err := applyEdit(context.Background(), nil, models.EditRequestData{})
	if err == nil {
		t.Fatal("expected error for empty edit request")
	}
}

func TestAvailabilityToAPI(t *testing.T) {
	avail := &encoders.Availability{
		RecommendedCodec: encoders.CodecAV1,
		Codecs: map[encoders.Codec]encoders.CodecAvailability{
			encoders.CodecAV1: {
				Available:   true,
				HasHardware: true,
				Backends: []encoders.BackendInfo{
					{ID: encoders.BackendNvenc, DisplayName: "NVIDIA NVENC", Hardware: true},
					{ID: encoders.BackendSoftware, DisplayName: "Software", Hardware: false},
				},
			},
			encoders.CodecVP8: {
				Available: true,
				Backends: []encoders.BackendInfo{
					{ID: encoders.BackendSoftware, DisplayName: "Software", Hardware: false},
				},
			},
			encoders.CodecH264: {Available: false},
		},
	}

	data := availabilityToAPI(avail)
	if data.Recommended != "av1" {
		t.Errorf("recommended = %q, want av1", data.Recommended)
	}
	if len(data.Codecs) != 2 {
		t.Fatalf("expected 2 available codecs, got %d", len(data.Codecs))
	}
	// Display order puts AV1 before VP8
	if data.Codecs[0].Codec != "av1" || data.Codecs[1].Codec != "vp8" {
		t.Errorf("codec order = [%s, %s], want [av1, vp8]",
			data.Codecs[0].Codec, data.Codecs[1].Codec)
	}
	if len(data.Codecs[0].Backends) != 2 || !data.Codecs[0].Backends[0].Hardware {
		t.Errorf("av1 backends = %+v, want hardware first", data.Codecs[0].Backends)
	}
}

func TestLiveTestVerdict(t *testing.T) {
	tests := []struct {
		name   string
		result encoders.LiveTestResult
		want   string
	}{
		{"clean pass", encoders.LiveTestResult{Success: true}, "success"},
		{"pass with drops", encoders.LiveTestResult{Success: true, Warning: true}, "warning"},
		{"encoder fell behind", encoders.LiveTestResult{Success: false}, "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := liveTestVerdict(&tt.result); got != tt.want {
				t.Errorf("verdict = %q, want %q", got, tt.want)
			}
		})
	}
}
