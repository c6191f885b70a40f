package meter

import "time"

// Day-boundary accounting. The day index is derived from device uptime,
// not a calendar: it drifts with the tick cadence and resets on every
// power cycle. The marker cycles through a small window so it fits the
// persisted record's single byte.
const (
	msPerDay        = 24 * 60 * 60 * 1000
	dayMarkerWindow = 7
)

// SaveHysteresisLiters is how far total volume must move before a
// periodic save is due. Keeps storage wear bounded while idle drips
// still get persisted eventually.
const SaveHysteresisLiters = 0.1

// DefaultLeakAfter is the continuous-flow duration that counts as a leak
// when the daemon does not configure one.
const DefaultLeakAfter = 6 * time.Hour

// DayIndex maps device uptime onto the 0..6 day-marker window.
func DayIndex(uptime time.Duration) uint8 {
	if uptime <= 0 {
		return 0
	}
	return uint8((uptime.Milliseconds() / msPerDay) % dayMarkerWindow)
}

// EngineConfig seeds a new Engine, typically from the persisted record.
type EngineConfig struct {
	Settings    Settings
	TotalLiters float64 // restored accumulator
	DailyLiters float64 // restored accumulator
	DayMarker   uint8   // restored day-boundary marker

	// NominalInterval is the configured tick cadence, used for rate
	// conversion until a measured elapsed time is available. Zero means
	// one second.
	NominalInterval time.Duration

	// LeakAfter is the continuous-flow duration that flags a leak.
	// Zero means DefaultLeakAfter.
	LeakAfter time.Duration

	StartTime time.Time
}

// Engine owns all measurement state. It is single-owner: only the tick
// loop calls Tick, Apply, Decide and MarkSaved; everyone else reads value
// copies published via Snapshot.
type Engine struct {
	settings        Settings
	nominalInterval time.Duration
	leakAfter       time.Duration
	startTime       time.Time

	totalLiters  float64
	dailyLiters  float64
	flowRate     float64
	levelPercent float64

	flowing   bool
	flowStart time.Time
	leak      bool

	dayMarker      uint8
	lastTick       time.Time
	lastSavedTotal float64
	decision       Decision
}

// NewEngine builds an engine from restored state. Settings are
// re-validated here regardless of what the store loaded: the engine never
// trusts its inputs enough to divide by zero later.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.NominalInterval <= 0 {
		cfg.NominalInterval = time.Second
	}
	if cfg.LeakAfter <= 0 {
		cfg.LeakAfter = DefaultLeakAfter
	}
	s := cfg.Settings
	s.CalibrationPPL = clampFloat(s.CalibrationPPL, MinCalibrationPPL, MaxCalibrationPPL)
	s.CapacityLiters = clampInt(s.CapacityLiters, MinCapacityLiters, MaxCapacityLiters)
	if !ValidThresholds(s.AlertLow, s.AlertMid, s.AlertHigh) {
		s.AlertLow, s.AlertMid, s.AlertHigh = DefaultAlertLow, DefaultAlertMid, DefaultAlertHigh
	}
	total := cfg.TotalLiters
	if total < 0 {
		total = 0
	}
	daily := cfg.DailyLiters
	if daily < 0 {
		daily = 0
	}
	return &Engine{
		settings:        s,
		nominalInterval: cfg.NominalInterval,
		leakAfter:       cfg.LeakAfter,
		startTime:       cfg.StartTime,
		totalLiters:     total,
		dailyLiters:     daily,
		dayMarker:       cfg.DayMarker % dayMarkerWindow,
		lastSavedTotal:  total,
	}
}

// Tick runs one measurement cycle: pulse accounting, level estimation,
// leak and day-boundary tracking, then alert arbitration. It never
// returns an error; sensor trouble arrives pre-degraded in the Input.
func (e *Engine) Tick(in Input) Report {
	var rep Report

	// Prefer the measured elapsed time over the nominal interval so rate
	// conversion does not accumulate error under tick jitter. The first
	// tick has no predecessor and falls back to the nominal interval.
	elapsed := e.nominalInterval
	if !e.lastTick.IsZero() {
		if d := in.Time.Sub(e.lastTick); d > 0 {
			elapsed = d
		}
	}
	e.lastTick = in.Time

	// Flow accounting. Both accumulators take the same delta, so daily
	// usage can never outrun the total.
	cal := e.settings.CalibrationPPL
	if cal < MinCalibrationPPL {
		cal = MinCalibrationPPL
	}
	delta := float64(in.Pulses) / cal
	e.totalLiters += delta
	e.dailyLiters += delta
	e.flowRate = delta * (60.0 / elapsed.Seconds())

	// Continuous-flow run tracking. Any zero-pulse tick breaks the run;
	// a leak is uninterrupted flow past the threshold, not cumulative.
	if in.Pulses > 0 {
		if !e.flowing {
			e.flowing = true
			e.flowStart = in.Time
			rep.Events = append(rep.Events, Event{Timestamp: in.Time, Type: EventFlowStart})
		}
		if !e.leak && in.Time.Sub(e.flowStart) >= e.leakAfter {
			e.leak = true
			rep.Events = append(rep.Events, Event{Timestamp: in.Time, Type: EventLeak})
		}
	} else if e.flowing {
		e.flowing = false
		rep.Events = append(rep.Events, Event{Timestamp: in.Time, Type: EventFlowStop})
	}

	// Level estimation. A failed read degrades to "no echo".
	dist := in.DistanceCM
	if in.RangeFailed {
		dist = 0
	}
	e.levelPercent = LevelPercent(dist)

	// Day boundary: uptime-derived index vs the persisted marker.
	if day := DayIndex(in.Time.Sub(e.startTime)); day != e.dayMarker {
		e.dayMarker = day
		e.dailyLiters = 0
		rep.Persist = true
		rep.Events = append(rep.Events, Event{Timestamp: in.Time, Type: EventDayRollover})
	}

	if diff := e.totalLiters - e.lastSavedTotal; diff > SaveHysteresisLiters || diff < -SaveHysteresisLiters {
		rep.Persist = true
	}

	e.decision = Arbitrate(e.levelPercent, e.settings, e.leak, in.Time)
	rep.Decision = e.decision
	return rep
}

// Decide re-arbitrates the current state at the given instant without
// touching any measurement. The daemon calls this between ticks so the
// leak overlay actually blinks at the half-second cadence.
func (e *Engine) Decide(now time.Time) Decision {
	e.decision = Arbitrate(e.levelPercent, e.settings, e.leak, now)
	return e.decision
}

// MarkSaved records that the durable fields reached storage. A failed
// save leaves the mark alone, so the hysteresis check naturally retries
// on a later tick.
func (e *Engine) MarkSaved() {
	e.lastSavedTotal = e.totalLiters
}

// Settings returns a copy of the current configuration.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Snapshot returns a value copy of the engine state for publication.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		FlowRateLPM:  e.flowRate,
		TotalLiters:  e.totalLiters,
		DailyLiters:  e.dailyLiters,
		LevelPercent: e.levelPercent,
		TankLiters:   float64(e.settings.CapacityLiters) * e.levelPercent / 100.0,
		Flowing:      e.flowing,
		FlowSince:    e.flowStart,
		LeakDetected: e.leak,
		DayIndex:     e.dayMarker,
		Settings:     e.settings,
		Decision:     e.decision,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	// NaN fails both comparisons; send it to the low bound.
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValidThresholds reports whether a threshold triple can gate the level
// bands: strictly ordered and strictly inside 0..100.
func ValidThresholds(low, mid, high int) bool {
	return 0 < low && low < mid && mid < high && high < 100
}
