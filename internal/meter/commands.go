package meter

import (
	"fmt"
	"math"
)

// Command is a state mutation applied between ticks. Commands come from
// the web layer over a channel so the engine stays single-owner; apply
// is unexported to keep the command set closed.
type Command interface {
	apply(e *Engine) (persist bool, err error)
}

// Apply runs one command against the engine. It reports whether the
// change must reach durable storage.
func (e *Engine) Apply(cmd Command) (bool, error) {
	return cmd.apply(e)
}

// CommandRequest pairs a command with its reply channel for delivery
// into the tick loop. The loop answers on Reply exactly once.
type CommandRequest struct {
	Cmd   Command
	Reply chan error
}

// SetCalibration changes the flow sensor's pulses-per-liter factor.
// Finite out-of-range values are clamped rather than rejected.
type SetCalibration struct {
	PulsesPerLiter float64
}

func (c SetCalibration) apply(e *Engine) (bool, error) {
	if math.IsNaN(c.PulsesPerLiter) || math.IsInf(c.PulsesPerLiter, 0) {
		return false, fmt.Errorf("calibration must be a finite number")
	}
	e.settings.CalibrationPPL = clampFloat(c.PulsesPerLiter, MinCalibrationPPL, MaxCalibrationPPL)
	return true, nil
}

// SetCapacity changes the nominal tank capacity used for the volume
// readout. Out-of-range values are clamped.
type SetCapacity struct {
	Liters int
}

func (c SetCapacity) apply(e *Engine) (bool, error) {
	e.settings.CapacityLiters = clampInt(c.Liters, MinCapacityLiters, MaxCapacityLiters)
	return true, nil
}

// SetThresholds replaces all three alert thresholds at once. The triple
// must be strictly ordered; clamping individual values could silently
// reorder them, so a bad triple is rejected outright.
type SetThresholds struct {
	Low, Mid, High int
}

func (c SetThresholds) apply(e *Engine) (bool, error) {
	if !ValidThresholds(c.Low, c.Mid, c.High) {
		return false, fmt.Errorf("thresholds %d/%d/%d must satisfy 0 < low < mid < high < 100", c.Low, c.Mid, c.High)
	}
	e.settings.AlertLow = c.Low
	e.settings.AlertMid = c.Mid
	e.settings.AlertHigh = c.High
	return true, nil
}

// SetAlertsEnabled toggles the buzzer. LEDs keep indicating regardless.
type SetAlertsEnabled struct {
	Enabled bool
}

func (c SetAlertsEnabled) apply(e *Engine) (bool, error) {
	e.settings.AlertsEnabled = c.Enabled
	return true, nil
}

// ResetTotal zeroes the lifetime volume counter. Daily usage is zeroed
// with it, since a day's usage can never exceed the total.
type ResetTotal struct{}

func (ResetTotal) apply(e *Engine) (bool, error) {
	e.totalLiters = 0
	e.dailyLiters = 0
	return true, nil
}

// ClearLeak acknowledges a leak alert. If water is still running the
// flow run restarts from now, so an unfixed leak re-alerts only after
// another full threshold interval. Nothing durable changes.
type ClearLeak struct{}

func (ClearLeak) apply(e *Engine) (bool, error) {
	e.leak = false
	if e.flowing {
		e.flowStart = e.lastTick
	}
	return false, nil
}
