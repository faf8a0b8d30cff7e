package capsource

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/smazurov/capturecfg/internal/capability"
)

// fourccNames maps V4L2 FourCC codes to the canonical format names the
// rest of the engine works with.
var fourccNames = map[string]string{
	"MJPG": "MJPEG",
	"YUYV": "YUY2",
	"UYVY": "UYVY",
	"NV12": "NV12",
	"YU12": "I420",
	"YV12": "YV12",
	"GREY": "GRAY8",
	"P010": "P010_10LE",
	"RGB3": "RGB",
	"BGR3": "BGR",
	"H264": "H264",
	"HEVC": "HEVC",
	"VP80": "VP8",
	"VP90": "VP9",
	"AV01": "AV1",
}

var (
	formatLineRegex   = regexp.MustCompile(`^\s*\[\d+\]: '(\S+)'`)
	sizeLineRegex     = regexp.MustCompile(`^\s*Size: Discrete (\d+)x(\d+)`)
	intervalLineRegex = regexp.MustCompile(`\(([\d.]+) fps\)`)
)

// V4L2Source is a capability.Source that shells out to v4l2-ctl. The
// device ID is the /dev/videoN path.
type V4L2Source struct {
	logger *slog.Logger

	// v4l2CtlPath overrides the binary looked up on PATH. Used by tests.
	v4l2CtlPath string

	// run overrides command execution. Used by tests.
	run func(ctx context.Context, args []string) (string, error)
}

// NewV4L2Source creates a source backed by the local v4l2-ctl binary.
func NewV4L2Source(logger *slog.Logger) *V4L2Source {
	return &V4L2Source{logger: logger, v4l2CtlPath: "v4l2-ctl"}
}

// Capabilities implements capability.Source by parsing
// `v4l2-ctl -d <dev> --list-formats-ext` output.
func (s *V4L2Source) Capabilities(ctx context.Context, deviceID string) (capability.DeviceCapabilities, error) {
	output, err := s.execute(ctx, []string{"-d", deviceID, "--list-formats-ext"})
	if err != nil {
		// A missing device is empty capabilities, not an error
		if strict := strings.Contains(err.Error(), "No such file"); strict {
			return capability.DeviceCapabilities{}, nil
		}
		return nil, fmt.Errorf("failed to enumerate formats for %s: %w", deviceID, err)
	}
	return parseFormatsExt(output), nil
}

// Validate implements capability.Source. The device is re-enumerated so
// the answer reflects its current state, not the snapshot the caller
// resolved against.
func (s *V4L2Source) Validate(ctx context.Context, deviceID, format string, width, height uint32, fps float64) (bool, error) {
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

func (s *V4L2Source) execute(ctx context.Context, args []string) (string, error) {
	if s.run != nil {
		return s.run(ctx, args)
	}
	if _, err := exec.LookPath(s.v4l2CtlPath); err != nil {
		return "", fmt.Errorf("v4l2-ctl is not installed or not in PATH: %w", err)
	}
	output, err := exec.CommandContext(ctx, s.v4l2CtlPath, args...).CombinedOutput()
	return string(output), err
}

// parseFormatsExt builds a capability map from `--list-formats-ext`
// output. Framerates keep the order v4l2-ctl prints them in (descending),
// deduplicated per mode.
func parseFormatsExt(output string) capability.DeviceCapabilities {
	caps := capability.DeviceCapabilities{}

	var (
		format string
		width  uint32
		height uint32
	)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if m := formatLineRegex.FindStringSubmatch(line); m != nil {
			format = canonicalFormat(m[1])
			width, height = 0, 0
			continue
		}
		if format == "" {
			continue
		}

		if m := sizeLineRegex.FindStringSubmatch(line); m != nil {
			w, _ := strconv.ParseUint(m[1], 10, 32)
			h, _ := strconv.ParseUint(m[2], 10, 32)
			width, height = uint32(w), uint32(h)
			caps[format] = append(caps[format], capability.Entry{Width: width, Height: height})
			continue
		}

		if m := intervalLineRegex.FindStringSubmatch(line); m != nil && width != 0 {
			fps, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			entries := caps[format]
			entry := &entries[len(entries)-1]
			if !containsFPS(entry.Framerates, fps) {
				entry.Framerates = append(entry.Framerates, fps)
			}
		}
	}

	// Drop modes v4l2-ctl printed no intervals for
	for format, entries := range caps {
		kept := entries[:0]
		for _, e := range entries {
			if len(e.Framerates) > 0 {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(caps, format)
		} else {
			caps[format] = kept
		}
	}

	return caps
}

func canonicalFormat(fourcc string) string {
	if name, ok := fourccNames[fourcc]; ok {
		return name
	}
	return strings.ToUpper(fourcc)
}

func containsFPS(list []float64, fps float64) bool {
	for _, f := range list {
		if capability.SameFPS(f, fps) {
			return true
		}
	}
	return false
}
