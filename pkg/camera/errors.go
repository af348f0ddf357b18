package camera

import "errors"

var (
	// ErrOpen indicates the device could not be opened.
	ErrOpen = errors.New("camera: failed to open device")

	// ErrRead indicates the device delivered no frame.
	ErrRead = errors.New("camera: failed to read frame")

	// ErrClosed indicates the capture was already closed.
	ErrClosed = errors.New("camera: capture is closed")
)
