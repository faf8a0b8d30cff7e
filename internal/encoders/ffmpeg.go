package encoders

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// encoderBackends maps FFmpeg encoder names to (codec, backend) pairs.
// Probing walks this table against `ffmpeg -encoders` output.
var encoderBackends = map[string]struct {
	Codec   Codec
	Backend Backend
}{
	"av1_nvenc":         {CodecAV1, BackendNvenc},
	"av1_amf":           {CodecAV1, BackendAMF},
	"av1_qsv":           {CodecAV1, BackendQSV},
	"av1_vaapi":         {CodecAV1, BackendVAAPI},
	"libsvtav1":         {CodecAV1, BackendSoftware},
	"libaom-av1":        {CodecAV1, BackendSoftware},
	"vp9_qsv":           {CodecVP9, BackendQSV},
	"vp9_vaapi":         {CodecVP9, BackendVAAPI},
	"libvpx-vp9":        {CodecVP9, BackendSoftware},
	"vp8_vaapi":         {CodecVP8, BackendVAAPI},
	"libvpx":            {CodecVP8, BackendSoftware},
	"h264_nvenc":        {CodecH264, BackendNvenc},
	"h264_amf":          {CodecH264, BackendAMF},
	"h264_qsv":          {CodecH264, BackendQSV},
	"h264_vaapi":        {CodecH264, BackendVAAPI},
	"h264_mf":           {CodecH264, BackendMediaFoundation},
	"h264_videotoolbox": {CodecH264, BackendVideoToolbox},
	"libx264":           {CodecH264, BackendSoftware},
	"ffv1":              {CodecFFV1, BackendSoftware},
}

var encoderLineRegex = regexp.MustCompile(`^\s*([VASFXBD\.]{6})\s+(\S+)\s+(.+)$`)

// LocalProbe implements ProbeService by inspecting the local FFmpeg
// installation. It satisfies the engine's probe interface for desktop
// installs where the embedding application and the encoders share one
// machine.
type LocalProbe struct {
	logger *slog.Logger

	// ffmpegPath overrides the binary looked up on PATH. Used by tests.
	ffmpegPath string

	// runTest overrides the live-test execution. Used by tests.
	runTest func(ctx context.Context, args []string) (string, error)
}

// NewLocalProbe creates a probe backed by the local ffmpeg binary.
func NewLocalProbe(logger *slog.Logger) *LocalProbe {
	return &LocalProbe{logger: logger, ffmpegPath: "ffmpeg"}
}

// Availability enumerates codec/backend combinations by parsing
// `ffmpeg -encoders` output.
func (p *LocalProbe) Availability(ctx context.Context) (*Availability, error) {
	if _, err := exec.LookPath(p.ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg is not installed or not in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list encoders: %w", err)
	}

	return p.parseAvailability(string(output)), nil
}

// parseAvailability builds an Availability snapshot from the raw
// `ffmpeg -encoders` output.
func (p *LocalProbe) parseAvailability(output string) *Availability {
	found := make(map[Codec][]BackendInfo)

	scanner := bufio.NewScanner(strings.NewReader(output))
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.Contains(line, "-----") || strings.Contains(line, "Encoders:") {
				started = true
			}
			continue
		}
		matches := encoderLineRegex.FindStringSubmatch(line)
		if len(matches) != 4 || !strings.Contains(matches[1], "V") {
			continue
		}
		name := matches[2]
		entry, known := encoderBackends[name]
		if !known {
			continue
		}
		info := BackendInfo{
			ID:          entry.Backend,
			DisplayName: entry.Backend.DisplayName(),
			Hardware:    entry.Backend.Hardware(),
			EncoderName: name,
		}
		if existing := backendAt(found[entry.Codec], entry.Backend); existing != nil {
			// One entry per (codec, backend). ffmpeg lists encoders
			// alphabetically, so libaom-av1 appears before libsvtav1;
			// SVT is the faster software AV1 path and takes precedence.
			if name == "libsvtav1" && existing.EncoderName == "libaom-av1" {
				*existing = info
			}
			continue
		}
		found[entry.Codec] = append(found[entry.Codec], info)
	}

	avail := &Availability{Codecs: make(map[Codec]CodecAvailability, len(DisplayOrder))}
	for _, codec := range DisplayOrder {
		backends := sortBackends(found[codec])
		ca := CodecAvailability{
			Available: len(backends) > 0,
			Backends:  backends,
		}
		for _, b := range backends {
			if b.Hardware {
				ca.HasHardware = true
				break
			}
		}
		if len(backends) > 0 {
			ca.Recommended = backends[0].ID
		}
		avail.Codecs[codec] = ca
	}
	avail.RecommendedCodec = recommendCodec(avail)

	if p.logger != nil {
		p.logger.Debug("Probed encoder availability",
			"codecs", len(avail.AvailableCodecs()),
			"recommended", string(avail.RecommendedCodec))
	}
	return avail
}

// recommendCodec picks the default codec: hardware AV1, then hardware
// VP9, then hardware VP8, falling back to software VP8 which every
// FFmpeg build ships.
func recommendCodec(a *Availability) Codec {
	for _, c := range []Codec{CodecAV1, CodecVP9, CodecVP8} {
		if a.Codecs[c].HasHardware {
			return c
		}
	}
	if a.Codecs[CodecVP8].Available {
		return CodecVP8
	}
	// Degenerate install: first available codec in display order.
	if codecs := a.AvailableCodecs(); len(codecs) > 0 {
		return codecs[0]
	}
	return ""
}

// ProbeBitrates computes per-level suggestions from the calibrated
// bitrate model scaled by the effective encoding geometry.
func (p *LocalProbe) ProbeBitrates(_ context.Context, codec Codec, backend Backend,
	_, _ uint32, _ float64, tgtWidth, tgtHeight uint32, tgtFPS float64) (BitrateSuggestions, error) {
	var out BitrateSuggestions
	for level := uint8(MinPreset); level <= MaxPreset; level++ {
		out[level-1] = ScaledBitrateKbps(codec, backend, level, tgtWidth, tgtHeight, tgtFPS)
	}
	return out, nil
}

// liveTestDuration is how long the live encode runs. Long enough to
// catch a backend that cannot keep up, short enough to feel instant.
const liveTestDuration = 10 * time.Second

var (
	speedRegex = regexp.MustCompile(`speed=\s*([0-9.]+)x`)
	frameRegex = regexp.MustCompile(`frame=\s*(\d+)`)
	dropRegex  = regexp.MustCompile(`drop=\s*(\d+)`)
)

// dropThreshold is the number of dropped frames above which a preset is
// reported as not keeping up.
const dropThreshold = 2

// RunLiveTest encodes a synthetic source at the device's geometry for a
// short period and reports whether the encoder kept up. The result is a
// structured report; it is never retried automatically.
func (p *LocalProbe) RunLiveTest(ctx context.Context, deviceID string, codec Codec, backend Backend,
	presetLevel uint8, width, height uint32, fps float64) (*LiveTestResult, error) {
	encoderName := p.encoderFor(codec, backend)
	if encoderName == "" {
		return &LiveTestResult{
			Success: false,
			Message: fmt.Sprintf("no %s encoder for backend %s", codec.DisplayName(), backend.DisplayName()),
		}, nil
	}

	secs := int(liveTestDuration / time.Second)
	args := []string{
		"-hide_banner",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc2=size=%dx%d:rate=%g", width, height, fps),
		"-t", strconv.Itoa(secs),
		"-c:v", encoderName,
		"-f", "null", "-",
	}

	run := p.runTest
	if run == nil {
		run = func(ctx context.Context, args []string) (string, error) {
			cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
			out, err := cmd.CombinedOutput()
			return string(out), err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, liveTestDuration+15*time.Second)
	defer cancel()

	output, err := run(ctx, args)
	if err != nil {
		return &LiveTestResult{
			Success: false,
			Message: fmt.Sprintf("encoder test failed for %s preset %d: %v", encoderName, presetLevel, err),
		}, nil
	}

	result := parseLiveTestOutput(output, fps, secs)
	if p.logger != nil {
		p.logger.Info("Live encoder test finished",
			"device", deviceID,
			"encoder", encoderName,
			"preset", presetLevel,
			"sent", result.FramesSent,
			"dropped", result.FramesDropped,
			"success", result.Success)
	}
	return result, nil
}

// parseLiveTestOutput extracts frame/drop/speed figures from ffmpeg
// progress output and derives the verdict.
func parseLiveTestOutput(output string, fps float64, secs int) *LiveTestResult {
	result := &LiveTestResult{}

	if m := frameRegex.FindAllStringSubmatch(output, -1); len(m) > 0 {
		// Last progress line has the final count.
		if n, err := strconv.ParseUint(m[len(m)-1][1], 10, 64); err == nil {
			result.FramesSent = n
		}
	}
	if result.FramesSent == 0 {
		result.FramesSent = uint64(fps * float64(secs))
	}
	if m := dropRegex.FindAllStringSubmatch(output, -1); len(m) > 0 {
		if n, err := strconv.ParseUint(m[len(m)-1][1], 10, 64); err == nil {
			result.FramesDropped = n
		}
	}

	speed := 0.0
	if m := speedRegex.FindAllStringSubmatch(output, -1); len(m) > 0 {
		speed, _ = strconv.ParseFloat(m[len(m)-1][1], 64)
	}
	// An encoder slower than real time drops frames in a live pipeline
	// even when the offline test reports none.
	if speed > 0 && speed < 1.0 && result.FramesDropped == 0 {
		expected := uint64(fps * float64(secs))
		behind := uint64(float64(expected) * (1.0 - speed))
		result.FramesDropped = behind
	}

	switch {
	case result.FramesDropped == 0:
		result.Success = true
		result.Message = "encoder kept up with the source rate"
	case result.FramesDropped <= dropThreshold:
		result.Success = true
		result.Warning = true
		result.Message = fmt.Sprintf("encoder dropped %d frame(s); consider a lighter preset", result.FramesDropped)
	default:
		result.Success = false
		result.Message = fmt.Sprintf("encoder dropped %d frames and cannot keep up; lower the preset level", result.FramesDropped)
	}
	return result
}

// encoderFor returns the FFmpeg encoder name for a (codec, backend)
// pair, or "" when the table has no entry for it.
func (p *LocalProbe) encoderFor(codec Codec, backend Backend) string {
	for name, entry := range encoderBackends {
		if entry.Codec == codec && entry.Backend == backend {
			// Prefer libsvtav1 when both software AV1 encoders match.
			if name == "libaom-av1" {
				continue
			}
			return name
		}
	}
	if codec == CodecAV1 && backend == BackendSoftware {
		return "libaom-av1"
	}
	return ""
}

func backendAt(list []BackendInfo, id Backend) *BackendInfo {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// sortBackends orders backends by the fixed preference order so the
// recommended backend is deterministic.
func sortBackends(list []BackendInfo) []BackendInfo {
	var out []BackendInfo
	for _, id := range backendOrder {
		for _, b := range list {
			if b.ID == id {
				out = append(out, b)
			}
		}
	}
	return out
}
