// Package camera wraps local video capture devices. It provides
// opening with fallback, sequential frame reads, and device
// enumeration for the CLI.
package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/tempscope/tempscope/internal/log"
)

// Capture is an exclusively-owned camera handle. Not safe for
// concurrent use; the poll loop is its only reader.
type Capture struct {
	cam   *gocv.VideoCapture
	index int
}

// Open opens the device at the given index.
func Open(index int) (*Capture, error) {
	cam, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %v", ErrOpen, index, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("%w %d", ErrOpen, index)
	}
	return &Capture{cam: cam, index: index}, nil
}

// OpenWithFallback opens the primary index, falling back to the
// secondary when the primary fails. Both failing is a hard error.
func OpenWithFallback(primary, fallback int) (*Capture, error) {
	c, err := Open(primary)
	if err == nil {
		return c, nil
	}
	if fallback == primary {
		return nil, err
	}

	log.Warn("camera open failed, trying fallback", "index", primary, "fallback", fallback, "error", err)
	c, ferr := Open(fallback)
	if ferr != nil {
		return nil, fmt.Errorf("%w %d (fallback %d also failed)", ErrOpen, primary, fallback)
	}
	return c, nil
}

// Index returns the device index this capture was opened on.
func (c *Capture) Index() int {
	return c.index
}

// Read grabs the next frame into dst. Returns ErrRead when the
// device delivers nothing.
func (c *Capture) Read(dst *gocv.Mat) error {
	if c.cam == nil {
		return ErrClosed
	}
	if ok := c.cam.Read(dst); !ok || dst.Empty() {
		return ErrRead
	}
	return nil
}

// FrameSize reports the device's frame dimensions.
func (c *Capture) FrameSize() (width, height int) {
	if c.cam == nil {
		return 0, 0
	}
	width = int(c.cam.Get(gocv.VideoCaptureFrameWidth))
	height = int(c.cam.Get(gocv.VideoCaptureFrameHeight))
	return width, height
}

// Close releases the device. Safe to call more than once.
func (c *Capture) Close() error {
	if c.cam == nil {
		return nil
	}
	err := c.cam.Close()
	c.cam = nil
	return err
}
