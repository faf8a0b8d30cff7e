package resolve

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned for operations on a device without an open
// configuration session.
var ErrNoSession = errors.New("no configuration session for device")

// ErrNothingUsable is returned when a device advertises no capabilities
// a default configuration could be built from.
var ErrNothingUsable = errors.New("device offers no usable capabilities")

// ValidationError reports that the capability source rejected the exact
// mode the configuration asks for. The capability snapshot the config
// was resolved against may be stale relative to the live device.
type ValidationError struct {
	DeviceID string
	Format   string
	Width    uint32
	Height   uint32
	FPS      float64
}

// Tuple renders the rejected mode as "1920x1080 @ 30fps H264".
func (e *ValidationError) Tuple() string {
	return fmt.Sprintf("%dx%d @ %gfps %s", e.Width, e.Height, e.FPS, e.Format)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("device %s rejected %s", e.DeviceID, e.Tuple())
}
