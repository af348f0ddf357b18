// Package alert implements the two-state threshold alert machine.
// A qualifying reading moves it from Normal to Alerting; a one-shot
// cooldown timer moves it back. While alerting, further qualifying
// readings are ignored.
package alert

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Direction selects which side of the threshold raises an alert.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Check reports whether a reading qualifies as a threshold crossing.
func Check(value, threshold float64, dir Direction) bool {
	switch dir {
	case DirectionAbove:
		return value >= threshold
	case DirectionBelow:
		return value <= threshold
	default:
		return false
	}
}

// Event records one alert firing.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Direction Direction `json:"direction"`
}

// Event history kept for the dashboard.
const maxEvents = 100

// Machine holds the alert state. Offer is called from the poll loop
// only; the cooldown timer is the single other writer and it only
// clears the alerting flag.
type Machine struct {
	alerting atomic.Bool

	mu      sync.Mutex
	beeper  Beeper
	onAlert func(Event)
	events  []Event
}

// New creates a machine in the normal state.
func New() *Machine {
	return &Machine{}
}

// SetBeeper sets the audible cue player. Playback runs detached and
// its failures are swallowed.
func (m *Machine) SetBeeper(b Beeper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beeper = b
}

// SetOnAlert sets a callback invoked synchronously when an alert
// fires. Keep it fast; slow work belongs in the callback's own
// goroutines.
func (m *Machine) SetOnAlert(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlert = fn
}

// Offer feeds one reading to the machine. When the reading crosses
// the threshold and the machine is not already alerting, it fires:
// the returned event is recorded, the cue plays in the background,
// and a reset is scheduled after cooldown. The cooldown is taken per
// call, so a config edit applies to the next alert without a
// restart. Returns false when nothing fired.
func (m *Machine) Offer(value, threshold float64, dir Direction, cooldown time.Duration) (Event, bool) {
	if !Check(value, threshold, dir) {
		return Event{}, false
	}
	if !m.alerting.CompareAndSwap(false, true) {
		// Already alerting: no re-alert, no timer reset.
		return Event{}, false
	}

	ev := Event{
		ID:        uuid.New().String(),
		Time:      time.Now(),
		Value:     value,
		Threshold: threshold,
		Direction: dir,
	}

	m.mu.Lock()
	m.events = append(m.events, ev)
	if len(m.events) > maxEvents {
		m.events = m.events[1:]
	}
	beeper := m.beeper
	onAlert := m.onAlert
	m.mu.Unlock()

	if beeper != nil {
		go func() {
			_ = beeper.Beep()
		}()
	}
	if onAlert != nil {
		onAlert(ev)
	}

	time.AfterFunc(cooldown, func() {
		m.alerting.Store(false)
	})

	return ev, true
}

// Alerting reports whether the machine is in the alerting state.
func (m *Machine) Alerting() bool {
	return m.alerting.Load()
}

// Events returns a copy of the recorded alert history, oldest first.
func (m *Machine) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
