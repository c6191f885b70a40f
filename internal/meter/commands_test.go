package meter

import (
	"math"
	"testing"
	"time"
)

func TestSetCalibration(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	persist, err := e.Apply(SetCalibration{PulsesPerLiter: 300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !persist {
		t.Error("calibration change must be persisted")
	}
	if e.Settings().CalibrationPPL != 300 {
		t.Errorf("expected calibration 300, got %v", e.Settings().CalibrationPPL)
	}
}

func TestSetCalibrationClampsRange(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	if _, err := e.Apply(SetCalibration{PulsesPerLiter: 0.01}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.Settings().CalibrationPPL; got != MinCalibrationPPL {
		t.Errorf("expected clamp to %v, got %v", MinCalibrationPPL, got)
	}

	if _, err := e.Apply(SetCalibration{PulsesPerLiter: 50000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.Settings().CalibrationPPL; got != MaxCalibrationPPL {
		t.Errorf("expected clamp to %v, got %v", MaxCalibrationPPL, got)
	}
}

func TestSetCalibrationRejectsNonFinite(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	before := e.Settings().CalibrationPPL

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		persist, err := e.Apply(SetCalibration{PulsesPerLiter: v})
		if err == nil {
			t.Errorf("expected error for %v", v)
		}
		if persist {
			t.Errorf("rejected command must not request a save (input %v)", v)
		}
	}
	if e.Settings().CalibrationPPL != before {
		t.Error("rejected command must leave settings untouched")
	}
}

func TestSetCapacityClamps(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		in   int
		want int
	}{
		{50, MinCapacityLiters},
		{2500, 2500},
		{20000, MaxCapacityLiters},
	}
	for _, tt := range tests {
		persist, err := e.Apply(SetCapacity{Liters: tt.in})
		if err != nil {
			t.Fatalf("SetCapacity(%d): unexpected error: %v", tt.in, err)
		}
		if !persist {
			t.Errorf("SetCapacity(%d): expected save request", tt.in)
		}
		if got := e.Settings().CapacityLiters; got != tt.want {
			t.Errorf("SetCapacity(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSetThresholds(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	persist, err := e.Apply(SetThresholds{Low: 10, Mid: 40, High: 90})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !persist {
		t.Error("threshold change must be persisted")
	}
	s := e.Settings()
	if s.AlertLow != 10 || s.AlertMid != 40 || s.AlertHigh != 90 {
		t.Errorf("expected 10/40/90, got %d/%d/%d", s.AlertLow, s.AlertMid, s.AlertHigh)
	}
}

func TestSetThresholdsRejectsBadTriples(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	before := e.Settings()

	bad := []SetThresholds{
		{0, 50, 80},   // low at the floor
		{-5, 50, 80},  // negative
		{20, 20, 80},  // not strictly increasing
		{20, 80, 50},  // out of order
		{80, 50, 20},  // reversed
		{20, 50, 100}, // high at the ceiling
	}
	for _, cmd := range bad {
		persist, err := e.Apply(cmd)
		if err == nil {
			t.Errorf("expected error for %d/%d/%d", cmd.Low, cmd.Mid, cmd.High)
		}
		if persist {
			t.Errorf("rejected triple %d/%d/%d must not request a save", cmd.Low, cmd.Mid, cmd.High)
		}
	}

	s := e.Settings()
	if s.AlertLow != before.AlertLow || s.AlertMid != before.AlertMid || s.AlertHigh != before.AlertHigh {
		t.Error("rejected triples must leave thresholds untouched")
	}
}

func TestSetAlertsEnabled(t *testing.T) {
	e := newTestEngine(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	persist, err := e.Apply(SetAlertsEnabled{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !persist {
		t.Error("alert toggle must be persisted")
	}
	if e.Settings().AlertsEnabled {
		t.Error("expected alerts disabled")
	}

	if _, err := e.Apply(SetAlertsEnabled{Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Settings().AlertsEnabled {
		t.Error("expected alerts re-enabled")
	}
}

func TestResetTotalZeroesBothAccumulators(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(start)

	e.Tick(Input{Pulses: 900, DistanceCM: 75, Time: start})
	persist, err := e.Apply(ResetTotal{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !persist {
		t.Error("reset must be persisted")
	}

	snap := e.Snapshot()
	if snap.TotalLiters != 0 {
		t.Errorf("expected total 0, got %v", snap.TotalLiters)
	}
	if snap.DailyLiters != 0 {
		t.Errorf("daily must reset with the total, got %v", snap.DailyLiters)
	}
}

func TestResetTotalRetriesThroughHysteresis(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(start)

	e.Tick(Input{Pulses: 900, DistanceCM: 75, Time: start})
	e.MarkSaved()
	e.Apply(ResetTotal{})

	// The immediate save failed, so MarkSaved was never called. The next
	// tick notices the stored total is 2 L off and re-requests.
	rep := e.Tick(Input{Pulses: 0, DistanceCM: 75, Time: start.Add(time.Second)})
	if !rep.Persist {
		t.Error("unsaved reset must re-request a save on the next tick")
	}
}

func TestClearLeakRearmsTimer(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(start)

	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: start})
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: start.Add(6 * time.Hour)})
	if !e.Snapshot().LeakDetected {
		t.Fatal("expected leak before clearing")
	}

	cleared := start.Add(6 * time.Hour)
	persist, err := e.Apply(ClearLeak{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persist {
		t.Error("clearing a leak changes nothing durable")
	}
	if e.Snapshot().LeakDetected {
		t.Error("expected leak cleared")
	}

	// Water still running: no immediate re-alert.
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: cleared.Add(time.Second)})
	if e.Snapshot().LeakDetected {
		t.Error("cleared leak must not re-trip on the next tick")
	}

	// A full threshold after the clear it trips again.
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: cleared.Add(6 * time.Hour)})
	if !e.Snapshot().LeakDetected {
		t.Error("unfixed leak should re-alert after another full interval")
	}
}

func TestClearLeakWhileIdle(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(start)

	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: start})
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: start.Add(6 * time.Hour)})
	e.Tick(Input{Pulses: 0, DistanceCM: 75, Time: start.Add(6*time.Hour + time.Second)})

	if _, err := e.Apply(ClearLeak{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Snapshot().LeakDetected {
		t.Error("expected leak cleared")
	}

	// A fresh run starts its own clock.
	resume := start.Add(7 * time.Hour)
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: resume})
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: resume.Add(6*time.Hour - time.Second)})
	if e.Snapshot().LeakDetected {
		t.Error("new run must not inherit the old run's clock")
	}
	e.Tick(Input{Pulses: 10, DistanceCM: 75, Time: resume.Add(6 * time.Hour)})
	if !e.Snapshot().LeakDetected {
		t.Error("expected leak after a full uninterrupted run")
	}
}
