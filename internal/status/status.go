// Package status provides a thread-safe status tracker for the
// tank-monitor daemon. It is read by HTTP handlers and the metrics
// collectors while the tick loop writes it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/tank-monitor/internal/meter"
)

// eventRingCapacity bounds the retained event history.
const eventRingCapacity = 100

// NetworkInfo contains network state for display.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	Samples     int
	SampleGapMs int64
	LeakAfterMs int64
	HTTPPort    string
	NVRAMPath   string
	Pins        string // preformatted pin assignment summary
}

// Counters are monotonically increasing daemon totals.
type Counters struct {
	Ticks        uint64
	Saves        uint64
	SaveFailures uint64
	SensorFaults uint64
	EventsLost   uint64 // events pushed out of the ring
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Meter     meter.Snapshot
	Counters  Counters
	StartTime time.Time
	Now       time.Time
	Network   *NetworkInfo
	Config    Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu       sync.RWMutex
	snap     Snapshot
	events   *eventRing
	counters Counters
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		events: newEventRing(eventRingCapacity),
	}
}

// Update publishes the engine state after a tick and counts the tick.
// Called from the run loop only.
func (t *Tracker) Update(ms meter.Snapshot) {
	t.mu.Lock()
	t.snap.Meter = ms
	t.counters.Ticks++
	t.mu.Unlock()
}

// SetMeter replaces the published engine state without counting a
// tick. The run loop calls this after applying a configuration command
// so reads see the new settings before the next measurement cycle.
func (t *Tracker) SetMeter(ms meter.Snapshot) {
	t.mu.Lock()
	t.snap.Meter = ms
	t.mu.Unlock()
}

// SetDecision publishes a fresh indicator decision between ticks,
// leaving the measurements alone.
func (t *Tracker) SetDecision(d meter.Decision) {
	t.mu.Lock()
	t.snap.Meter.Decision = d
	t.mu.Unlock()
}

// AddEvents appends engine events to the retained history.
func (t *Tracker) AddEvents(events []meter.Event) {
	if len(events) == 0 {
		return
	}
	t.mu.Lock()
	for _, ev := range events {
		t.events.push(ev)
	}
	t.mu.Unlock()
}

// CountSave records a successful state save.
func (t *Tracker) CountSave() {
	t.mu.Lock()
	t.counters.Saves++
	t.mu.Unlock()
}

// CountSaveFailure records a failed state save.
func (t *Tracker) CountSaveFailure() {
	t.mu.Lock()
	t.counters.SaveFailures++
	t.mu.Unlock()
}

// CountSensorFault records a ranging hardware failure.
func (t *Tracker) CountSensorFault() {
	t.mu.Lock()
	t.counters.SensorFaults++
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counters = t.counters
	s.Counters.EventsLost = t.events.dropped
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Events returns the retained event history, newest first.
func (t *Tracker) Events() []meter.Event {
	t.mu.RLock()
	chrono := t.events.list()
	t.mu.RUnlock()

	for i, j := 0, len(chrono)-1; i < j; i, j = i+1, j-1 {
		chrono[i], chrono[j] = chrono[j], chrono[i]
	}
	return chrono
}
