package monitor

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/tempscope/tempscope/internal/config"
	"github.com/tempscope/tempscope/internal/log"
)

// Frames shown before the selector freezes the image, so exposure
// settles and the display can be framed.
const calibrateWarmupFrames = 30

// Calibrate shows a live view, then lets the user drag a rectangle
// over a frozen frame to pick a new extraction region. The selection
// is clamped to the frame and persisted; cancelling the selector
// leaves the config untouched. Never run this while a monitor loop
// owns the camera.
func Calibrate(store *config.Store, source FrameSource) error {
	window := gocv.NewWindow("Calibrate Region")
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i < calibrateWarmupFrames; i++ {
		if err := source.Read(&frame); err != nil {
			return fmt.Errorf("calibrate: %w", err)
		}
		window.IMShow(frame)
		window.WaitKey(30)
	}

	log.Info("drag a rectangle over the temperature display, then press ENTER (c cancels)")
	rect := window.SelectROI(frame)
	if rect.Empty() {
		log.Info("calibration cancelled, region unchanged")
		return nil
	}

	roi := config.ROI{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}
	roi = roi.Clamp(frame.Cols(), frame.Rows())

	err := store.Update(func(c *config.Config) {
		c.ROI = roi
	})
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	log.Info("region saved",
		"x", roi.X, "y", roi.Y, "width", roi.Width, "height", roi.Height)
	return nil
}
