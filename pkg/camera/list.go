package camera

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Device describes one enumerated camera.
type Device struct {
	Index  int
	Width  int
	Height int
	FPS    int
}

// Default number of indices probed during enumeration.
const DefaultProbeLimit = 10

// List probes device indices 0..limit-1 and returns those that open
// and deliver a frame.
func List(limit int) []Device {
	if limit <= 0 {
		limit = DefaultProbeLimit
	}

	var devices []Device
	for i := 0; i < limit; i++ {
		dev, err := Probe(i)
		if err != nil {
			continue
		}
		devices = append(devices, dev)
	}
	return devices
}

// Probe opens a device and verifies it delivers a frame, returning
// its characteristics.
func Probe(index int) (Device, error) {
	c, err := Open(index)
	if err != nil {
		return Device{}, err
	}
	defer c.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	if err := c.Read(&frame); err != nil {
		return Device{}, err
	}

	w, h := c.FrameSize()
	return Device{
		Index:  index,
		Width:  w,
		Height: h,
		FPS:    int(c.cam.Get(gocv.VideoCaptureFPS)),
	}, nil
}

// Choose prompts on out for a selection from devices and reads the
// answer from in. Pure over its readers and writers so the prompt
// logic tests without hardware.
func Choose(devices []Device, in io.Reader, out io.Writer) (int, error) {
	if len(devices) == 0 {
		return 0, fmt.Errorf("camera: no devices available")
	}

	fmt.Fprintln(out, "Available cameras:")
	for _, d := range devices {
		fmt.Fprintf(out, "  [%d] %dx%d @ %d fps\n", d.Index, d.Width, d.Height, d.FPS)
	}
	fmt.Fprint(out, "Select camera index: ")

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("camera: failed to read selection: %w", err)
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		// Bare enter takes the first listed camera.
		return devices[0].Index, nil
	}

	choice, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("camera: invalid selection %q", trimmed)
	}

	for _, d := range devices {
		if d.Index == choice {
			return choice, nil
		}
	}
	return 0, fmt.Errorf("camera: index %d is not in the list", choice)
}
