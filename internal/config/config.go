// Package config provides the JSON-backed configuration for tempscope.
// Settings load once at startup, are mutated by runtime commands, and
// persist back to the same file on each mutation.
package config

import (
	"fmt"
	"image"
	"time"
)

// Default file name when no path is given.
const DefaultPath = "config.json"

// ROI is the rectangular frame region the extractor reads.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the ROI to an image.Rectangle for cropping.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Minimum ROI side length in pixels.
const minROISide = 10

// Clamp returns a copy of the ROI constrained to the given frame size.
// Never produces coordinates outside the frame bounds.
func (r ROI) Clamp(frameWidth, frameHeight int) ROI {
	if frameWidth <= 0 || frameHeight <= 0 {
		return r
	}

	c := r
	if c.X < 0 {
		c.X = 0
	}
	if c.X > frameWidth-minROISide {
		c.X = frameWidth - minROISide
	}
	if c.Y < 0 {
		c.Y = 0
	}
	if c.Y > frameHeight-minROISide {
		c.Y = frameHeight - minROISide
	}
	if c.X < 0 {
		c.X = 0
	}
	if c.Y < 0 {
		c.Y = 0
	}

	if c.Width < minROISide {
		c.Width = minROISide
	}
	if c.Width > frameWidth-c.X {
		c.Width = frameWidth - c.X
	}
	if c.Height < minROISide {
		c.Height = minROISide
	}
	if c.Height > frameHeight-c.Y {
		c.Height = frameHeight - c.Y
	}

	return c
}

// CenteredROI returns the reset region: a rectangle centered in the
// frame, half the frame wide and a quarter of the frame tall.
func CenteredROI(frameWidth, frameHeight int) ROI {
	r := ROI{
		X:      frameWidth / 4,
		Y:      frameHeight / 4,
		Width:  frameWidth / 2,
		Height: frameHeight / 4,
	}
	return r.Clamp(frameWidth, frameHeight)
}

// Config holds all monitor settings. JSON keys match the file format
// used by earlier versions of the tool, so existing files keep working.
type Config struct {
	// === Capture ===
	CameraIndex     int     `json:"camera_index"`
	CaptureInterval float64 `json:"capture_interval"` // seconds between polls
	ROI             ROI     `json:"roi"`

	// === Threshold ===
	TemperatureThreshold float64 `json:"temperature_threshold"`
	ThresholdDirection   string  `json:"threshold_direction"` // "above" or "below"
	AlertCooldownSeconds float64 `json:"alert_cooldown_seconds"`

	// === Extraction ===
	// OCRConfig carries page segmentation mode and character whitelist
	// in the form "--psm 7 -c tessedit_char_whitelist=0123456789.-".
	OCRConfig string `json:"ocr_config"`

	// === Output ===
	LogFile     string  `json:"log_file"`
	LogInterval float64 `json:"log_interval"` // seconds between status lines

	// === Optional features ===
	EnablePreview bool   `json:"enable_preview"`
	StatusAddr    string `json:"status_addr,omitempty"`   // e.g. ":8090", empty disables
	AlertWebhook  string `json:"alert_webhook,omitempty"` // POST target for alert events
}

// Default returns the settings written on first run.
func Default() Config {
	return Config{
		CameraIndex:     0,
		CaptureInterval: 1,
		ROI:             ROI{X: 100, Y: 100, Width: 200, Height: 100},

		TemperatureThreshold: 50.0,
		ThresholdDirection:   "above",
		AlertCooldownSeconds: 60,

		OCRConfig: "--psm 7 -c tessedit_char_whitelist=0123456789.-°CF",

		LogFile:     "temperature_log.txt",
		LogInterval: 10,

		EnablePreview: true,
	}
}

// Validate checks the config values. Returns a list of problems,
// or nil if valid.
func (c *Config) Validate() []string {
	var problems []string

	if c.CameraIndex < 0 {
		problems = append(problems, "camera_index must not be negative")
	}
	if c.CaptureInterval <= 0 {
		problems = append(problems, "capture_interval must be positive")
	}
	if c.ThresholdDirection != "above" && c.ThresholdDirection != "below" {
		problems = append(problems, fmt.Sprintf("threshold_direction must be above or below, got %q", c.ThresholdDirection))
	}
	if c.AlertCooldownSeconds <= 0 {
		problems = append(problems, "alert_cooldown_seconds must be positive")
	}
	if c.ROI.Width <= 0 || c.ROI.Height <= 0 {
		problems = append(problems, "roi width and height must be positive")
	}
	if c.ROI.X < 0 || c.ROI.Y < 0 {
		problems = append(problems, "roi x and y must not be negative")
	}
	if c.LogFile == "" {
		problems = append(problems, "log_file must not be empty")
	}
	if c.LogInterval <= 0 {
		problems = append(problems, "log_interval must be positive")
	}

	return problems
}

// Cooldown returns the alert cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return secondsToDuration(c.AlertCooldownSeconds, time.Minute)
}

// CapturePeriod returns the poll interval as a duration.
func (c *Config) CapturePeriod() time.Duration {
	return secondsToDuration(c.CaptureInterval, time.Second)
}

// LogPeriod returns the status-line interval as a duration.
func (c *Config) LogPeriod() time.Duration {
	return secondsToDuration(c.LogInterval, 10*time.Second)
}

func secondsToDuration(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
