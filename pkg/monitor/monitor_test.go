package monitor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/tempscope/tempscope/internal/config"
	"github.com/tempscope/tempscope/pkg/alert"
	"github.com/tempscope/tempscope/pkg/extract"
	"github.com/tempscope/tempscope/pkg/templog"
)

// mockFrameSource serves prepared frames and records reads.
type mockFrameSource struct {
	mu       sync.Mutex
	frames   []gocv.Mat
	idx      int
	failures int
	reads    int
	isClosed bool
}

func (m *mockFrameSource) Read(dst *gocv.Mat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failures > 0 {
		m.failures--
		return errNoFrame
	}
	if len(m.frames) == 0 {
		return errNoFrame
	}
	if m.idx >= len(m.frames) {
		m.idx = len(m.frames) - 1
	}
	m.frames[m.idx].CopyTo(dst)
	m.idx++
	return nil
}

func (m *mockFrameSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isClosed = true
	return nil
}

func (m *mockFrameSource) closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

func (m *mockFrameSource) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// mockTextReader returns a fixed reading and records calls.
type mockTextReader struct {
	mu      sync.Mutex
	reading extract.Reading
	err     error
	calls   int
}

func (m *mockTextReader) ReadRegion(region gocv.Mat) (extract.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return extract.Reading{Raw: m.reading.Raw}, m.err
	}
	return m.reading, nil
}

func (m *mockTextReader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockTextReader) setReading(r extract.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reading = r
}

func (m *mockTextReader) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

var errNoFrame = errors.New("no frame")

// testFrame builds a black frame with a filled white block inside
// the default extraction region.
func testFrame(t *testing.T, block image.Rectangle) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, block, color.RGBA{R: 255, G: 255, B: 255}, -1)
	return frame
}

func testMonitor(t *testing.T, src *mockFrameSource, reader *mockTextReader) (*Monitor, *config.Store, string, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "monitor-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	store, err := config.Load(filepath.Join(dir, "config.json"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to load config: %v", err)
	}

	logPath := filepath.Join(dir, "temperature_log.txt")
	tlog, err := templog.New(logPath)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to open temperature log: %v", err)
	}

	machine := alert.New()
	m := New(store, src, reader, machine, tlog)

	cleanup := func() {
		tlog.Close()
		os.RemoveAll(dir)
	}
	return m, store, logPath, cleanup
}

func TestMonitor_PollFrameRecordsReading(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 42.5, Raw: "42.5"}}
	m, _, logPath, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	lastLog := time.Now().Add(-time.Hour)
	reading, ok := m.pollFrame(&frame, m.store.Get(), &lastLog)
	if !ok {
		t.Fatal("expected a reading")
	}
	if reading.Value != 42.5 {
		t.Errorf("expected value 42.5, got %v", reading.Value)
	}

	st := m.State()
	if st.ReadCount != 1 {
		t.Errorf("expected read count 1, got %d", st.ReadCount)
	}
	if st.FrameCount != 1 {
		t.Errorf("expected frame count 1, got %d", st.FrameCount)
	}
	if st.LastValue != 42.5 {
		t.Errorf("expected last value 42.5, got %v", st.LastValue)
	}
	if st.Alerting {
		t.Error("42.5 is under the default threshold, should not alert")
	}

	// lastLog was an hour old, so a status line must have been written.
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read temperature log: %v", err)
	}
	if !strings.Contains(string(data), "Temperature: 42.5°C - Status: normal") {
		t.Errorf("expected a normal status line, got %q", string(data))
	}
}

func TestMonitor_PollFrameFiresAlert(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 61.5, Raw: "61.5"}}
	m, _, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	lastLog := time.Now()
	if _, ok := m.pollFrame(&frame, m.store.Get(), &lastLog); !ok {
		t.Fatal("expected a reading")
	}

	if !m.alerts.Alerting() {
		t.Error("61.5 over threshold 50 should alert")
	}
	events := m.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 alert event, got %d", len(events))
	}
	if events[0].Value != 61.5 {
		t.Errorf("expected event value 61.5, got %v", events[0].Value)
	}
	if !m.State().Alerting {
		t.Error("state should report alerting")
	}
}

func TestMonitor_CooldownFollowsConfig(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 61.5, Raw: "61.5"}}
	m, store, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	if err := store.Update(func(c *config.Config) { c.AlertCooldownSeconds = 0.05 }); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	lastLog := time.Now()
	if _, ok := m.pollFrame(&frame, m.store.Get(), &lastLog); !ok {
		t.Fatal("expected a reading")
	}
	if !m.alerts.Alerting() {
		t.Fatal("expected the first poll to alert")
	}

	// The edited cooldown armed the reset, so a later qualifying
	// reading fires a second alert.
	time.Sleep(120 * time.Millisecond)
	if m.alerts.Alerting() {
		t.Fatal("expected the configured cooldown to have elapsed")
	}
	if _, ok := m.pollFrame(&frame, m.store.Get(), &lastLog); !ok {
		t.Fatal("expected a reading")
	}
	if got := len(m.Events()); got != 2 {
		t.Errorf("expected 2 alert events, got %d", got)
	}
}

func TestMonitor_ExtractFailureSkipsFrame(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Raw: "??"}, err: extract.ErrNoReading}
	m, _, logPath, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	lastLog := time.Now().Add(-time.Hour)
	if _, ok := m.pollFrame(&frame, m.store.Get(), &lastLog); ok {
		t.Fatal("expected no reading")
	}

	st := m.State()
	if st.ReadCount != 0 {
		t.Errorf("expected read count 0, got %d", st.ReadCount)
	}
	if st.FrameCount != 1 {
		t.Errorf("expected frame count 1, got %d", st.FrameCount)
	}

	// No reading, so no status line even though the interval passed.
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read temperature log: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty temperature log, got %q", string(data))
	}
}

func TestMonitor_UnchangedRegionReusesReading(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 42.5, Raw: "42.5"}}
	m, _, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	lastLog := time.Now()
	for i := 0; i < 3; i++ {
		if _, ok := m.pollFrame(&frame, m.store.Get(), &lastLog); !ok {
			t.Fatalf("poll %d: expected a reading", i)
		}
	}

	if got := reader.callCount(); got != 1 {
		t.Errorf("identical frames should run OCR once, got %d calls", got)
	}
	if st := m.State(); st.ReadCount != 3 {
		t.Errorf("expected read count 3, got %d", st.ReadCount)
	}
}

func TestMonitor_ChangedRegionRunsOCR(t *testing.T) {
	left := testFrame(t, image.Rect(110, 110, 190, 190))
	defer left.Close()
	right := testFrame(t, image.Rect(210, 110, 290, 190))
	defer right.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 42.5, Raw: "42.5"}}
	m, _, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	lastLog := time.Now()
	if _, ok := m.pollFrame(&left, m.store.Get(), &lastLog); !ok {
		t.Fatal("expected a reading from the first frame")
	}
	if _, ok := m.pollFrame(&right, m.store.Get(), &lastLog); !ok {
		t.Fatal("expected a reading from the second frame")
	}

	if got := reader.callCount(); got != 2 {
		t.Errorf("distinct frames should each run OCR, got %d calls", got)
	}
}

func TestMonitor_FailedExtractionIsNeverReused(t *testing.T) {
	left := testFrame(t, image.Rect(110, 110, 190, 190))
	defer left.Close()
	right := testFrame(t, image.Rect(210, 110, 290, 190))
	defer right.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 25.0, Raw: "25.0"}}
	m, _, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	lastLog := time.Now()
	if _, ok := m.pollFrame(&left, m.store.Get(), &lastLog); !ok {
		t.Fatal("expected a reading from the first frame")
	}

	// The display changes and OCR fails on the transition frame.
	reader.setErr(extract.ErrNoReading)
	if _, ok := m.pollFrame(&right, m.store.Get(), &lastLog); ok {
		t.Fatal("expected no reading from the failed frame")
	}

	// The same view again, now readable: OCR must run and report the
	// new value, not the one from before the failure.
	reader.setErr(nil)
	reader.setReading(extract.Reading{Value: 26.0, Raw: "26.0"})
	reading, ok := m.pollFrame(&right, m.store.Get(), &lastLog)
	if !ok {
		t.Fatal("expected a reading after recovery")
	}
	if reading.Value != 26.0 {
		t.Errorf("expected the fresh value 26.0, got %v", reading.Value)
	}
	if got := reader.callCount(); got != 3 {
		t.Errorf("expected OCR on every non-reusable frame, got %d calls", got)
	}
	if st := m.State(); st.LastValue != 26.0 {
		t.Errorf("expected state value 26.0, got %v", st.LastValue)
	}
}

func TestMonitor_OnReadingCallback(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{}
	reader := &mockTextReader{reading: extract.Reading{Value: 42.5, Raw: "42.5"}}
	m, _, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	var mu sync.Mutex
	var got []State
	m.SetOnReading(func(st State) {
		mu.Lock()
		got = append(got, st)
		mu.Unlock()
	})

	lastLog := time.Now()
	m.pollFrame(&frame, m.store.Get(), &lastLog)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected 1 state push, got %d", len(got))
	}
	if got[0].LastValue != 42.5 {
		t.Errorf("expected pushed value 42.5, got %v", got[0].LastValue)
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{frames: []gocv.Mat{frame}}
	reader := &mockTextReader{reading: extract.Reading{Value: 42.5, Raw: "42.5"}}
	m, store, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	if err := store.Update(func(c *config.Config) { c.CaptureInterval = 0.01 }); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	if !m.State().Running {
		t.Error("monitor should report running")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if !src.closed() {
		t.Error("camera must be released when the loop stops")
	}
	st := m.State()
	if st.Running {
		t.Error("monitor should not report running after stop")
	}
	if st.FrameCount == 0 {
		t.Error("expected at least one polled frame")
	}
}

func TestMonitor_RunContinuesAfterReadFailure(t *testing.T) {
	frame := testFrame(t, image.Rect(110, 110, 190, 190))
	defer frame.Close()

	src := &mockFrameSource{frames: []gocv.Mat{frame}, failures: 1}
	reader := &mockTextReader{reading: extract.Reading{Value: 42.5, Raw: "42.5"}}
	m, store, _, cleanup := testMonitor(t, src, reader)
	defer cleanup()

	if err := store.Update(func(c *config.Config) { c.CaptureInterval = 0.01 }); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	// First read fails and triggers the pause; the loop must pick
	// back up and produce readings afterwards.
	time.Sleep(1500 * time.Millisecond)
	cancel()
	<-done

	if src.readCount() < 2 {
		t.Errorf("expected reads to continue after a failure, got %d", src.readCount())
	}
	if m.State().ReadCount == 0 {
		t.Error("expected readings after the failed frame")
	}
}

func TestSnapshotName(t *testing.T) {
	ts := time.Date(2026, 1, 15, 14, 2, 7, 0, time.UTC)
	got := snapshotName(ts)
	want := "capture_20260115_140207.jpg"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
