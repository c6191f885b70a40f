// Package meter contains the pure measurement engine for the tank monitor:
// flow accounting, level estimation, leak and day-boundary tracking, and
// alert arbitration. This package has NO external dependencies (no GPIO,
// storage, OS, or time.Sleep). Time is always injectable via time.Time
// parameters.
package meter

import "time"

// LEDState summarizes the resolved indicator color.
type LEDState string

const (
	LEDGreen       LEDState = "GREEN"
	LEDYellow      LEDState = "YELLOW"
	LEDRed         LEDState = "RED"
	LEDBlinkingRed LEDState = "BLINKING_RED"
)

// BuzzerState selects the tone the buzzer should emit, if any.
type BuzzerState string

const (
	BuzzerOff      BuzzerState = "OFF"
	BuzzerCritical BuzzerState = "CRITICAL"
	BuzzerLeak     BuzzerState = "LEAK"
)

// EventType represents a state transition worth reporting.
type EventType string

const (
	EventFlowStart   EventType = "FLOW_START"
	EventFlowStop    EventType = "FLOW_STOP"
	EventLeak        EventType = "LEAK_DETECTED"
	EventDayRollover EventType = "DAY_ROLLOVER"
)

// Event represents a state transition produced by a tick.
type Event struct {
	Timestamp time.Time
	Type      EventType
}

// Settings are the user-configurable values of the engine. They are the
// in-memory counterpart of the persisted record's configuration fields.
type Settings struct {
	CalibrationPPL float64 // flow sensor pulses per liter
	CapacityLiters int
	AlertLow       int // percent thresholds, strictly low < mid < high
	AlertMid       int
	AlertHigh      int
	AlertsEnabled  bool
}

// Configuration bounds and defaults. Out-of-range inputs are clamped to
// these bounds; unordered thresholds are rejected outright.
const (
	DefaultCalibrationPPL = 450.0 // YF-S201 class hall sensor
	DefaultCapacityLiters = 1000
	DefaultAlertLow       = 20
	DefaultAlertMid       = 50
	DefaultAlertHigh      = 80

	MinCalibrationPPL = 0.1
	MaxCalibrationPPL = 10000.0
	MinCapacityLiters = 100
	MaxCapacityLiters = 10000
)

// DefaultSettings returns the compile-time default configuration.
func DefaultSettings() Settings {
	return Settings{
		CalibrationPPL: DefaultCalibrationPPL,
		CapacityLiters: DefaultCapacityLiters,
		AlertLow:       DefaultAlertLow,
		AlertMid:       DefaultAlertMid,
		AlertHigh:      DefaultAlertHigh,
		AlertsEnabled:  true,
	}
}

// Decision is the priority-resolved indicator decision for one
// evaluation. Green/Yellow/Red are the physical line states after the
// reset-then-set pass plus the leak overlay; LED and Buzzer summarize
// them for display.
type Decision struct {
	LED    LEDState
	Buzzer BuzzerState
	Green  bool
	Yellow bool
	Red    bool
}

// Input is one tick's worth of sensor readings.
type Input struct {
	Pulses      uint64
	DistanceCM  float64 // averaged ranging distance; 0 = no echo
	RangeFailed bool    // the ranger returned an error; treated as no echo
	Time        time.Time
}

// Report is what one tick produced.
type Report struct {
	Decision Decision
	Events   []Event
	// Persist is set when the durable fields should be written out:
	// total volume moved past the save hysteresis, or a day rollover.
	Persist bool
}

// Snapshot is a point-in-time copy of engine state. It is a value type,
// safe to publish outside the tick loop.
type Snapshot struct {
	FlowRateLPM  float64
	TotalLiters  float64
	DailyLiters  float64
	LevelPercent float64
	TankLiters   float64 // capacity × level; display conversion only
	Flowing      bool
	FlowSince    time.Time
	LeakDetected bool
	DayIndex     uint8
	Settings     Settings
	Decision     Decision
}
