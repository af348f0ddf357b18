// Package monitor runs the poll loop: read a frame, crop the
// configured region, extract a reading, and feed it to the alert
// machine. It owns all mutable monitoring state; the dashboard and
// the preview window only see copies.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"

	"github.com/tempscope/tempscope/internal/config"
	"github.com/tempscope/tempscope/internal/log"
	"github.com/tempscope/tempscope/pkg/alert"
	"github.com/tempscope/tempscope/pkg/extract"
	"github.com/tempscope/tempscope/pkg/templog"
)

// FrameSource delivers frames from a capture device.
type FrameSource interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// TextReader turns a cropped frame region into a reading.
type TextReader interface {
	ReadRegion(region gocv.Mat) (extract.Reading, error)
}

// State is a copy of the monitor's current view. Served to the
// dashboard and pushed to status subscribers after every reading.
type State struct {
	Running    bool      `json:"running"`
	StartedAt  time.Time `json:"started_at"`
	FrameCount uint64    `json:"frame_count"`
	ReadCount  uint64    `json:"read_count"`
	LastValue  float64   `json:"last_value"`
	LastRaw    string    `json:"last_raw"`
	LastReadAt time.Time `json:"last_read_at"`
	Alerting   bool      `json:"alerting"`
	Threshold  float64   `json:"threshold"`
	Direction  string    `json:"direction"`
}

const (
	// Pause after a failed frame read before trying again.
	readFailPause = time.Second

	// Minimum gap between frames pushed to a stream subscriber.
	frameStreamPeriod = time.Second

	// Regions within this perception-hash distance of the previous
	// one reuse the previous reading instead of re-running OCR.
	maxHashDistance = 3
)

// Monitor drives the capture-extract-alert cycle.
type Monitor struct {
	store  *config.Store
	source FrameSource
	reader TextReader
	alerts *alert.Machine
	tlog   *templog.Logger

	mu        sync.RWMutex
	state     State
	onReading func(State)
	onFrame   func(jpeg []byte)

	// Unchanged-frame detection. Poll loop only; no locking. Both
	// fields always come from the same successful extraction.
	lastHash    *goimagehash.ImageHash
	lastReading extract.Reading
}

// New creates a monitor over the given collaborators.
func New(store *config.Store, source FrameSource, reader TextReader, alerts *alert.Machine, tlog *templog.Logger) *Monitor {
	return &Monitor{
		store:  store,
		source: source,
		reader: reader,
		alerts: alerts,
		tlog:   tlog,
	}
}

// SetOnReading sets a callback invoked with the updated state after
// every completed reading.
func (m *Monitor) SetOnReading(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReading = fn
}

// SetOnFrame sets a callback receiving annotated JPEG frames,
// throttled to about one per second.
func (m *Monitor) SetOnFrame(fn func(jpeg []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFrame = fn
}

// State returns a copy of the current monitor state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Events returns the recorded alert history.
func (m *Monitor) Events() []alert.Event {
	return m.alerts.Events()
}

// Run polls without a display until the context is cancelled. Frame
// read failures are reported and retried after a short pause. The
// camera handle is released on every exit path.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.source.Close()

	cfg := m.store.Get()
	period := cfg.CapturePeriod()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	m.setRunning(true)
	defer m.setRunning(false)

	log.Info("monitor started",
		"threshold", cfg.TemperatureThreshold,
		"direction", cfg.ThresholdDirection,
		"interval", period,
		"log_file", cfg.LogFile)

	frame := gocv.NewMat()
	defer frame.Close()

	lastLog := time.Now()
	lastStream := time.Time{}

	for {
		select {
		case <-ctx.Done():
			log.Info("monitor stopping", "frames", m.State().FrameCount)
			return nil

		case <-ticker.C:
			cfg = m.store.Get()
			if p := cfg.CapturePeriod(); p != period {
				period = p
				ticker.Reset(period)
			}

			if err := m.source.Read(&frame); err != nil {
				log.Warn("frame read failed", "error", err)
				time.Sleep(readFailPause)
				continue
			}

			reading, ok := m.pollFrame(&frame, cfg, &lastLog)

			if m.streaming() && time.Since(lastStream) >= frameStreamPeriod {
				m.drawOverlay(&frame, cfg, reading, ok)
				m.publishFrame(frame)
				lastStream = time.Now()
			}
		}
	}
}

// pollFrame crops the region out of one frame, extracts a reading
// and feeds it onward. Reports whether a reading was produced.
func (m *Monitor) pollFrame(frame *gocv.Mat, cfg config.Config, lastLog *time.Time) (extract.Reading, bool) {
	m.bumpFrame(cfg)

	roi := cfg.ROI.Clamp(frame.Cols(), frame.Rows())
	region := frame.Region(roi.Rect())
	reading, err := m.extractRegion(region)
	region.Close()
	if err != nil {
		log.Debug("no reading this frame", "error", err, "raw", reading.Raw)
		return reading, false
	}

	ev, fired := m.alerts.Offer(reading.Value, cfg.TemperatureThreshold,
		alert.Direction(cfg.ThresholdDirection), cfg.Cooldown())
	if fired {
		log.Warn("temperature alert",
			"value", ev.Value,
			"threshold", ev.Threshold,
			"direction", ev.Direction)
	}

	m.recordReading(reading, cfg)

	if time.Since(*lastLog) >= cfg.LogPeriod() {
		if err := m.tlog.Append(reading.Value, templog.StatusNormal); err != nil {
			log.Warn("temperature log write failed", "error", err)
		}
		*lastLog = time.Now()
	}

	return reading, true
}

// extractRegion runs OCR on the region, reusing the previous reading
// when the region is visually unchanged since the last successful
// extraction. A failed extraction never moves the reuse anchor, so
// the next frame runs OCR again no matter what it looks like.
func (m *Monitor) extractRegion(region gocv.Mat) (extract.Reading, error) {
	hash := regionHash(region)
	if m.reusable(hash) {
		return m.lastReading, nil
	}

	reading, err := m.reader.ReadRegion(region)
	if err != nil {
		return reading, err
	}

	m.lastHash = hash
	m.lastReading = reading
	return reading, nil
}

// reusable reports whether the previous reading can stand in for a
// fresh extraction of a region with the given hash.
func (m *Monitor) reusable(hash *goimagehash.ImageHash) bool {
	if hash == nil || m.lastHash == nil {
		return false
	}
	dist, err := m.lastHash.Distance(hash)
	return err == nil && dist <= maxHashDistance
}

// regionHash fingerprints the region for unchanged-frame detection.
// Returns nil when the region cannot be hashed; the caller then runs
// OCR unconditionally.
func regionHash(region gocv.Mat) *goimagehash.ImageHash {
	img, err := region.ToImage()
	if err != nil {
		return nil
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil
	}
	return hash
}

func (m *Monitor) setRunning(running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Running = running
	if running {
		m.state.StartedAt = time.Now()
	}
}

func (m *Monitor) bumpFrame(cfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.FrameCount++
	m.state.Threshold = cfg.TemperatureThreshold
	m.state.Direction = cfg.ThresholdDirection
	m.state.Alerting = m.alerts.Alerting()
}

// recordReading updates the state with a completed reading and
// notifies the status subscriber.
func (m *Monitor) recordReading(reading extract.Reading, cfg config.Config) {
	m.mu.Lock()
	m.state.ReadCount++
	m.state.LastValue = reading.Value
	m.state.LastRaw = reading.Raw
	m.state.LastReadAt = time.Now()
	m.state.Alerting = m.alerts.Alerting()
	m.state.Threshold = cfg.TemperatureThreshold
	m.state.Direction = cfg.ThresholdDirection
	st := m.state
	onReading := m.onReading
	m.mu.Unlock()

	if onReading != nil {
		onReading(st)
	}
}

func (m *Monitor) streaming() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.onFrame != nil
}

// publishFrame encodes an annotated frame and hands it to the stream
// subscriber. Encoding failures are reported and dropped.
func (m *Monitor) publishFrame(frame gocv.Mat) {
	m.mu.RLock()
	onFrame := m.onFrame
	m.mu.RUnlock()
	if onFrame == nil {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		log.Debug("frame encode failed", "error", err)
		return
	}
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	buf.Close()

	onFrame(data)
}
