package encoders

import "github.com/smazurov/capturecfg/internal/capability"

// Candidate target heights and framerates offered for the encode step,
// descending. Only entries that keep the source aspect ratio and do not
// exceed the source make the final list; the source value itself is
// always offered.
var (
	commonHeights    = []uint32{2160, 1440, 1080, 720, 480, 360}
	commonFramerates = []float64{120, 60, 30, 24, 15}
)

// TargetResolutions generates the target resolutions the encode step can
// scale to for the given source. Widths are rounded to the nearest even
// integer since hardware encoders generally reject odd dimensions.
func TargetResolutions(srcWidth, srcHeight uint32) []capability.Resolution {
	if srcWidth == 0 || srcHeight == 0 {
		return nil
	}

	out := []capability.Resolution{{Width: srcWidth, Height: srcHeight}}

	d := gcd(srcWidth, srcHeight)
	aspectW, aspectH := srcWidth/d, srcHeight/d

	for _, h := range commonHeights {
		if h >= srcHeight {
			continue
		}
		w := evenWidth(uint32(float64(h)*float64(aspectW)/float64(aspectH) + 0.5))
		if w == 0 || w > srcWidth {
			continue
		}
		out = append(out, capability.Resolution{Width: w, Height: h})
	}
	return out
}

// TargetFramerates generates the target framerates the encode step can
// decimate to for the given source rate, source first.
func TargetFramerates(srcFPS float64) []float64 {
	if srcFPS <= 0 {
		return nil
	}
	out := []float64{srcFPS}
	for _, fps := range commonFramerates {
		if fps >= srcFPS || capability.SameFPS(fps, srcFPS) {
			continue
		}
		out = append(out, fps)
	}
	return out
}

// OffersTargetResolution reports whether (w, h) is in the generated
// target list for the source.
func OffersTargetResolution(srcWidth, srcHeight, w, h uint32) bool {
	for _, res := range TargetResolutions(srcWidth, srcHeight) {
		if res.Width == w && res.Height == h {
			return true
		}
	}
	return false
}

// OffersTargetFramerate reports whether fps is in the generated target
// list for the source rate.
func OffersTargetFramerate(srcFPS, fps float64) bool {
	for _, candidate := range TargetFramerates(srcFPS) {
		if capability.SameFPS(candidate, fps) {
			return true
		}
	}
	return false
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func evenWidth(w uint32) uint32 {
	if w%2 != 0 {
		return w - 1
	}
	return w
}
