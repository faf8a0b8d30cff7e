package encoders

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const sampleEncoderOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 V....D libvpx               libvpx VP8 (codec vp8)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 V....D vp9_vaapi            VP9 (VAAPI) (codec vp9)
 V....D libaom-av1           libaom AV1 (codec av1)
 V....D av1_nvenc            NVIDIA NVENC av1 encoder (codec av1)
 V....D ffv1                 FFmpeg video codec #1
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseAvailability(t *testing.T) {
	p := NewLocalProbe(nil)
	avail := p.parseAvailability(sampleEncoderOutput)

	t.Run("all video codecs detected", func(t *testing.T) {
		for _, codec := range []Codec{CodecAV1, CodecVP9, CodecVP8, CodecH264, CodecFFV1} {
			if !avail.Codecs[codec].Available {
				t.Errorf("codec %s should be available", codec)
			}
		}
	})

	t.Run("audio encoders ignored", func(t *testing.T) {
		for codec := range avail.Codecs {
			if codec == "aac" {
				t.Error("audio encoder leaked into availability")
			}
		}
	})

	t.Run("hardware flags", func(t *testing.T) {
		if !avail.Codecs[CodecAV1].HasHardware {
			t.Error("av1_nvenc should mark av1 as hardware-capable")
		}
		if !avail.Codecs[CodecH264].HasHardware {
			t.Error("h264 should be hardware-capable")
		}
		if avail.Codecs[CodecVP8].HasHardware {
			t.Error("vp8 has only libvpx here, must not be hardware-capable")
		}
		if avail.Codecs[CodecFFV1].HasHardware {
			t.Error("ffv1 is software only")
		}
	})

	t.Run("backend preference order", func(t *testing.T) {
		h264 := avail.Codecs[CodecH264]
		if len(h264.Backends) != 3 {
			t.Fatalf("h264 backends = %v, want nvenc, vaapi, software", h264.Backends)
		}
		if h264.Backends[0].ID != BackendNvenc {
			t.Errorf("first h264 backend = %s, want nvenc", h264.Backends[0].ID)
		}
		if h264.Recommended != BackendNvenc {
			t.Errorf("recommended h264 backend = %s, want nvenc", h264.Recommended)
		}
	})

	t.Run("encoder names recorded", func(t *testing.T) {
		vp9 := avail.Codecs[CodecVP9]
		for _, b := range vp9.Backends {
			if b.ID == BackendSoftware && b.EncoderName != "libvpx-vp9" {
				t.Errorf("software vp9 encoder = %q, want libvpx-vp9", b.EncoderName)
			}
		}
	})

	t.Run("recommended codec prefers hardware av1", func(t *testing.T) {
		if avail.RecommendedCodec != CodecAV1 {
			t.Errorf("recommended codec = %s, want av1", avail.RecommendedCodec)
		}
	})
}

func TestRecommendCodecFallbacks(t *testing.T) {
	p := NewLocalProbe(nil)

	t.Run("software only install falls back to vp8", func(t *testing.T) {
		output := `------
 V....D libx264              H.264 (codec h264)
 V....D libvpx               VP8 (codec vp8)
 V....D libvpx-vp9           VP9 (codec vp9)
`
		avail := p.parseAvailability(output)
		if avail.RecommendedCodec != CodecVP8 {
			t.Errorf("recommended = %s, want vp8 when no hardware exists", avail.RecommendedCodec)
		}
	})

	t.Run("hardware vp9 beats software av1", func(t *testing.T) {
		output := `------
 V....D libaom-av1           AV1 (codec av1)
 V....D vp9_vaapi            VP9 (VAAPI) (codec vp9)
 V....D libvpx               VP8 (codec vp8)
`
		avail := p.parseAvailability(output)
		if avail.RecommendedCodec != CodecVP9 {
			t.Errorf("recommended = %s, want vp9", avail.RecommendedCodec)
		}
	})

	t.Run("h264 only install", func(t *testing.T) {
		avail := p.parseAvailability("------\n V....D libx264              H.264 (codec h264)\n")
		if avail.RecommendedCodec != CodecH264 {
			t.Errorf("recommended = %s, want h264 as the only option", avail.RecommendedCodec)
		}
	})
}

func TestSoftwareAV1PrefersSVT(t *testing.T) {
	output := `------
 V....D libaom-av1           libaom AV1 (codec av1)
 V....D libsvtav1            SVT-AV1 (codec av1)
`
	p := NewLocalProbe(nil)
	avail := p.parseAvailability(output)
	backends := avail.Codecs[CodecAV1].Backends
	if len(backends) != 1 {
		t.Fatalf("av1 backends = %v, want a single software entry", backends)
	}
	if backends[0].EncoderName != "libsvtav1" {
		t.Errorf("software av1 encoder = %q, want libsvtav1", backends[0].EncoderName)
	}
}

func TestProbeBitrates(t *testing.T) {
	p := NewLocalProbe(nil)
	suggestions, err := p.ProbeBitrates(context.Background(),
		CodecH264, BackendNvenc, 1920, 1080, 60, 1920, 1080, 30)
	if err != nil {
		t.Fatalf("ProbeBitrates failed: %v", err)
	}
	// Target geometry is the reference point, so levels match the
	// calibration table.
	expected := [PresetLevels]uint32{2500, 3500, 5000, 7000, 9000}
	if suggestions != BitrateSuggestions(expected) {
		t.Errorf("suggestions = %v, want %v", suggestions, expected)
	}

	lossless, err := p.ProbeBitrates(context.Background(),
		CodecFFV1, BackendSoftware, 1920, 1080, 30, 1920, 1080, 30)
	if err != nil {
		t.Fatalf("ProbeBitrates failed: %v", err)
	}
	if !lossless.Empty() {
		t.Errorf("ffv1 suggestions = %v, want empty", lossless)
	}
}

func TestRunLiveTest(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		runErr      error
		wantSuccess bool
		wantWarning bool
	}{
		{
			name:        "clean run",
			output:      "frame=  300 fps= 30 q=20.0 size=N/A time=00:00:10.00 bitrate=N/A speed=1.02x",
			wantSuccess: true,
		},
		{
			name:        "few drops warns",
			output:      "frame=  298 fps= 30 drop=2 speed=1.0x",
			wantSuccess: true,
			wantWarning: true,
		},
		{
			name:        "heavy drops fail",
			output:      "frame=  250 fps= 25 drop=50 speed=0.83x",
			wantSuccess: false,
		},
		{
			name:        "slow encode counts as dropping",
			output:      "frame=  300 fps= 15 speed=0.5x",
			wantSuccess: false,
		},
		{
			name:        "encoder error",
			output:      "Cannot load libcuda.so.1",
			runErr:      errors.New("exit status 1"),
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLocalProbe(nil)
			var gotArgs []string
			p.runTest = func(_ context.Context, args []string) (string, error) {
				gotArgs = args
				return tt.output, tt.runErr
			}

			result, err := p.RunLiveTest(context.Background(), "cam0",
				CodecH264, BackendNvenc, 3, 1920, 1080, 30)
			if err != nil {
				t.Fatalf("RunLiveTest returned error: %v", err)
			}
			if result.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v (message: %s)",
					result.Success, tt.wantSuccess, result.Message)
			}
			if result.Warning != tt.wantWarning {
				t.Errorf("Warning = %v, want %v", result.Warning, tt.wantWarning)
			}
			if tt.runErr == nil {
				if len(gotArgs) == 0 {
					t.Fatal("live test never invoked ffmpeg")
				}
				joined := strings.Join(gotArgs, " ")
				if !strings.Contains(joined, "h264_nvenc") {
					t.Errorf("args %q missing expected encoder name", joined)
				}
				if !strings.Contains(joined, "testsrc2=size=1920x1080:rate=30") {
					t.Errorf("args %q missing synthetic source geometry", joined)
				}
			}
		})
	}
}

func TestRunLiveTestUnknownBackend(t *testing.T) {
	p := NewLocalProbe(nil)
	result, err := p.RunLiveTest(context.Background(), "cam0",
		CodecVP8, BackendNvenc, 3, 1280, 720, 30)
	if err != nil {
		t.Fatalf("RunLiveTest returned error: %v", err)
	}
	if result.Success {
		t.Error("nvenc has no vp8 encoder, test must report failure")
	}
}
