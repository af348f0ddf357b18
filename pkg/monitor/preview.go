package monitor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/tempscope/tempscope/internal/config"
	"github.com/tempscope/tempscope/internal/log"
	"github.com/tempscope/tempscope/pkg/extract"
)

const previewWindowTitle = "Temperature Monitor"

var (
	colorNormal = color.RGBA{G: 255}
	colorAlert  = color.RGBA{R: 255}
	colorInfo   = color.RGBA{R: 255, G: 255, B: 255}
	colorRaw    = color.RGBA{R: 200, G: 200, B: 200}
)

// RunPreview polls with a live window until the quit key is pressed
// or the context is cancelled. Unlike Run, a frame read failure ends
// the loop. Keys: q quit, r reset region, c capture snapshot,
// + / - adjust threshold by one degree.
func (m *Monitor) RunPreview(ctx context.Context) error {
	defer m.source.Close()

	window := gocv.NewWindow(previewWindowTitle)
	defer window.Close()

	m.setRunning(true)
	defer m.setRunning(false)

	cfg := m.store.Get()
	log.Info("preview started",
		"threshold", cfg.TemperatureThreshold,
		"direction", cfg.ThresholdDirection)
	log.Info("keys: q quit, r reset region, c capture, +/- adjust threshold")

	frame := gocv.NewMat()
	defer frame.Close()

	lastLog := time.Now()
	lastStream := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := m.source.Read(&frame); err != nil {
			log.Error("frame read failed, stopping preview", "error", err)
			return err
		}

		cfg = m.store.Get()
		reading, ok := m.pollFrame(&frame, cfg, &lastLog)

		m.drawOverlay(&frame, cfg, reading, ok)
		window.IMShow(frame)

		if m.streaming() && time.Since(lastStream) >= frameStreamPeriod {
			m.publishFrame(frame)
			lastStream = time.Now()
		}

		switch window.WaitKey(1) {
		case 'q':
			log.Info("stopping preview")
			return nil
		case 'r':
			m.resetROI(frame.Cols(), frame.Rows())
		case 'c':
			m.snapshot(frame)
		case '+', '=':
			m.adjustThreshold(1)
		case '-':
			m.adjustThreshold(-1)
		}
	}
}

// drawOverlay annotates a frame with the region rectangle, current
// reading, threshold line and raw OCR text.
func (m *Monitor) drawOverlay(frame *gocv.Mat, cfg config.Config, reading extract.Reading, ok bool) {
	roi := cfg.ROI.Clamp(frame.Cols(), frame.Rows())
	gocv.Rectangle(frame, roi.Rect(), colorNormal, 2)
	gocv.PutText(frame, "Temperature ROI", image.Pt(roi.X, roi.Y-10),
		gocv.FontHersheySimplex, 0.6, colorNormal, 2)

	alerting := m.alerts.Alerting()

	if ok {
		c := colorNormal
		if alerting {
			c = colorAlert
		}
		temp := "Temp: " + strconv.FormatFloat(reading.Value, 'f', -1, 64) + "C"
		gocv.PutText(frame, temp, image.Pt(10, 30),
			gocv.FontHersheySimplex, 1, c, 2)
	}

	info := fmt.Sprintf("Threshold: %sC (%s)",
		strconv.FormatFloat(cfg.TemperatureThreshold, 'f', -1, 64),
		cfg.ThresholdDirection)
	gocv.PutText(frame, info, image.Pt(10, 70),
		gocv.FontHersheySimplex, 0.6, colorInfo, 1)

	if reading.Raw != "" {
		gocv.PutText(frame, "OCR: "+reading.Raw, image.Pt(10, frame.Rows()-10),
			gocv.FontHersheySimplex, 0.5, colorRaw, 1)
	}

	if alerting {
		gocv.PutText(frame, "ALERT", image.Pt(frame.Cols()-160, 40),
			gocv.FontHersheySimplex, 1.2, colorAlert, 3)
	}
}

// resetROI recenters the extraction region for the current frame
// size and persists it.
func (m *Monitor) resetROI(frameWidth, frameHeight int) {
	roi := config.CenteredROI(frameWidth, frameHeight)
	err := m.store.Update(func(c *config.Config) {
		c.ROI = roi
	})
	if err != nil {
		log.Warn("region reset failed", "error", err)
		return
	}
	log.Info("region reset to frame center",
		"x", roi.X, "y", roi.Y, "width", roi.Width, "height", roi.Height)
}

// adjustThreshold shifts the alert threshold and persists it.
func (m *Monitor) adjustThreshold(delta float64) {
	var threshold float64
	err := m.store.Update(func(c *config.Config) {
		c.TemperatureThreshold += delta
		threshold = c.TemperatureThreshold
	})
	if err != nil {
		log.Warn("threshold adjustment failed", "error", err)
		return
	}
	log.Info("threshold adjusted", "threshold", threshold)
}

// snapshot writes the current annotated frame to a timestamped file
// in the working directory.
func (m *Monitor) snapshot(frame gocv.Mat) {
	name := snapshotName(time.Now())
	if ok := gocv.IMWrite(name, frame); !ok {
		log.Warn("snapshot write failed", "file", name)
		return
	}
	log.Info("saved capture", "file", name)
}

func snapshotName(ts time.Time) string {
	return "capture_" + ts.Format("20060102_150405") + ".jpg"
}
