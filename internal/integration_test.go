package internal

import (
	"testing"
	"time"

	"github.com/sweeney/tank-monitor/internal/gpio"
	"github.com/sweeney/tank-monitor/internal/meter"
	"github.com/sweeney/tank-monitor/internal/nvram"
	"github.com/sweeney/tank-monitor/internal/status"
)

// tickOnce mirrors one pass of the daemon's tick handler: drain pulses,
// sample the ranger, run the engine, drive the indicators, persist when
// the engine asks, and publish the snapshot.
func tickOnce(t *testing.T, src *gpio.FakePulseSource, ranger *gpio.FakeRanger, ind *gpio.FakeIndicators, dev nvram.Device, eng *meter.Engine, tr *status.Tracker, now time.Time) meter.Report {
	t.Helper()

	count := src.Take()
	dist, err := ranger.Distance()

	rep := eng.Tick(meter.Input{
		Pulses:      count,
		DistanceCM:  dist,
		RangeFailed: err != nil,
		Time:        now,
	})

	if err := ind.SetLines(rep.Decision.Green, rep.Decision.Yellow, rep.Decision.Red); err != nil {
		t.Fatalf("SetLines: %v", err)
	}

	if rep.Persist {
		snap := eng.Snapshot()
		err := nvram.Save(dev, nvram.Record{
			Settings:    snap.Settings,
			TotalLiters: snap.TotalLiters,
			DailyLiters: snap.DailyLiters,
			DayMarker:   snap.DayIndex,
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		eng.MarkSaved()
		tr.CountSave()
	}

	tr.Update(eng.Snapshot())
	tr.AddEvents(rep.Events)
	return rep
}

// TestIntegrationFirstBootToPersistence walks the full path: erased
// storage loads defaults, flow accumulates through ticks, the total
// crosses the save hysteresis, and the image round-trips on reload.
func TestIntegrationFirstBootToPersistence(t *testing.T) {
	dev := nvram.NewMemDevice()

	// Erased image: every field defaults, no error.
	rec, defaulted, err := nvram.Load(dev)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defaulted) == 0 {
		t.Error("expected defaulted fields from an erased image")
	}
	if rec.Settings.CalibrationPPL != meter.DefaultCalibrationPPL {
		t.Errorf("CalibrationPPL: got %v, want default", rec.Settings.CalibrationPPL)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := meter.NewEngine(meter.EngineConfig{
		Settings:        rec.Settings,
		TotalLiters:     rec.TotalLiters,
		DailyLiters:     rec.DailyLiters,
		DayMarker:       rec.DayMarker,
		NominalInterval: time.Second,
		StartTime:       start,
	})
	tr := status.NewTracker(start, status.Config{})

	// 450 pulses per tick at default calibration is one liter per tick.
	src := gpio.NewFakePulseSource([]uint64{450, 450, 450})
	ranger := gpio.NewFakeRanger([]float64{30}) // 80% full
	ind := gpio.NewFakeIndicators()

	for i := 1; i <= 3; i++ {
		tickOnce(t, src, ranger, ind, dev, eng, tr, start.Add(time.Duration(i)*time.Second))
	}

	snap := eng.Snapshot()
	if snap.TotalLiters != 3.0 {
		t.Errorf("TotalLiters: got %v, want 3.0", snap.TotalLiters)
	}
	if snap.LevelPercent != 80.0 {
		t.Errorf("LevelPercent: got %v, want 80.0", snap.LevelPercent)
	}
	if !ind.Last().Green {
		t.Errorf("expected green line at 80%% full, got %+v", ind.Last())
	}

	// Reload: a fresh boot sees the accumulated total.
	rec2, defaulted2, err := nvram.Load(dev)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(defaulted2) != 0 {
		t.Errorf("unexpected defaulted fields on reload: %v", defaulted2)
	}
	if rec2.TotalLiters != 3.0 {
		t.Errorf("reloaded TotalLiters: got %v, want 3.0", rec2.TotalLiters)
	}
}

// TestIntegrationLeakAlertAndClear runs flow continuously past the leak
// threshold, checks the blinking overlay rides on the level color, then
// clears the alert through the command path.
func TestIntegrationLeakAlertAndClear(t *testing.T) {
	dev := nvram.NewMemDevice()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := meter.NewEngine(meter.EngineConfig{
		Settings:        meter.DefaultSettings(),
		NominalInterval: time.Second,
		LeakAfter:       6 * time.Hour,
		StartTime:       start,
	})
	tr := status.NewTracker(start, status.Config{})

	src := gpio.NewFakePulseSource([]uint64{5}) // a steady drip, forever
	ranger := gpio.NewFakeRanger([]float64{30}) // 80% full
	ind := gpio.NewFakeIndicators()

	// Hourly ticks with nonzero pulses: the run is uninterrupted. Stop
	// before a second uptime day begins so only the leak path fires.
	var leakAt time.Time
	for hour := 1; hour <= 7; hour++ {
		now := start.Add(time.Duration(hour) * time.Hour)
		rep := tickOnce(t, src, ranger, ind, dev, eng, tr, now)
		for _, ev := range rep.Events {
			if ev.Type == meter.EventLeak {
				leakAt = now
			}
		}
	}
	if leakAt.IsZero() {
		t.Fatal("expected a LEAK_DETECTED event")
	}
	if want := start.Add(7 * time.Hour); !leakAt.Equal(want) {
		// Flow started on the tick at +1h; six hours later is +7h.
		t.Errorf("leak at %v, want %v", leakAt, want)
	}

	snap := eng.Snapshot()
	if snap.Decision.LED != meter.LEDBlinkingRed {
		t.Errorf("LED: got %s, want BLINKING_RED", snap.Decision.LED)
	}
	if !snap.Decision.Green {
		t.Error("level color must survive the leak overlay")
	}

	// The event history carries the flow start and the leak.
	events := tr.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != meter.EventLeak || events[1].Type != meter.EventFlowStart {
		t.Errorf("events: got %s, %s", events[0].Type, events[1].Type)
	}

	// Acknowledge through the command path, as the web API would.
	persist, err := eng.Apply(meter.ClearLeak{})
	if err != nil {
		t.Fatalf("ClearLeak: %v", err)
	}
	if persist {
		t.Error("ClearLeak must not trigger a save")
	}
	if eng.Snapshot().LeakDetected {
		t.Error("expected leak cleared")
	}

	// Still flowing: the run restarts from the acknowledgment, so the
	// next tick shortly after must not re-alert.
	rep := tickOnce(t, src, ranger, ind, dev, eng, tr, start.Add(7*time.Hour+time.Minute))
	for _, ev := range rep.Events {
		if ev.Type == meter.EventLeak {
			t.Error("leak re-alerted immediately after acknowledgment")
		}
	}
}

// TestIntegrationDayRolloverPersists crosses an uptime day boundary and
// verifies the daily counter zeroes in memory and in storage while the
// total is untouched.
func TestIntegrationDayRolloverPersists(t *testing.T) {
	dev := nvram.NewMemDevice()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := meter.NewEngine(meter.EngineConfig{
		Settings:        meter.DefaultSettings(),
		TotalLiters:     100,
		DailyLiters:     12,
		NominalInterval: time.Second,
		StartTime:       start,
	})
	tr := status.NewTracker(start, status.Config{})

	src := gpio.NewFakePulseSource([]uint64{0})
	ranger := gpio.NewFakeRanger([]float64{75})
	ind := gpio.NewFakeIndicators()

	// Just short of the boundary: nothing happens.
	rep := tickOnce(t, src, ranger, ind, dev, eng, tr, start.Add(24*time.Hour-time.Second))
	if len(rep.Events) != 0 {
		t.Errorf("unexpected events before the boundary: %v", rep.Events)
	}
	if eng.Snapshot().DailyLiters != 12 {
		t.Errorf("DailyLiters before boundary: got %v, want 12", eng.Snapshot().DailyLiters)
	}

	// Crossing it: daily zeroes, marker advances, state persists.
	rep = tickOnce(t, src, ranger, ind, dev, eng, tr, start.Add(24*time.Hour+time.Second))
	var rolled bool
	for _, ev := range rep.Events {
		if ev.Type == meter.EventDayRollover {
			rolled = true
		}
	}
	if !rolled {
		t.Fatal("expected a DAY_ROLLOVER event")
	}

	snap := eng.Snapshot()
	if snap.DailyLiters != 0 {
		t.Errorf("DailyLiters after rollover: got %v, want 0", snap.DailyLiters)
	}
	if snap.TotalLiters != 100 {
		t.Errorf("TotalLiters after rollover: got %v, want 100", snap.TotalLiters)
	}

	rec, _, err := nvram.Load(dev)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.DailyLiters != 0 {
		t.Errorf("persisted DailyLiters: got %v, want 0", rec.DailyLiters)
	}
	if rec.DayMarker != 1 {
		t.Errorf("persisted DayMarker: got %d, want 1", rec.DayMarker)
	}
	if rec.TotalLiters != 100 {
		t.Errorf("persisted TotalLiters: got %v, want 100", rec.TotalLiters)
	}
}

// TestIntegrationConfigSurvivesPowerCycle edits settings through the
// command path, persists, and boots a second engine from the image.
func TestIntegrationConfigSurvivesPowerCycle(t *testing.T) {
	dev := nvram.NewMemDevice()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := meter.NewEngine(meter.EngineConfig{
		Settings:        meter.DefaultSettings(),
		NominalInterval: time.Second,
		StartTime:       start,
	})

	for _, cmd := range []meter.Command{
		meter.SetCalibration{PulsesPerLiter: 390.5},
		meter.SetCapacity{Liters: 2500},
		meter.SetThresholds{Low: 10, Mid: 35, High: 85},
		meter.SetAlertsEnabled{Enabled: false},
	} {
		persist, err := eng.Apply(cmd)
		if err != nil {
			t.Fatalf("Apply(%T): %v", cmd, err)
		}
		if !persist {
			t.Errorf("Apply(%T): expected persist", cmd)
		}
	}

	snap := eng.Snapshot()
	if err := nvram.Save(dev, nvram.Record{
		Settings:    snap.Settings,
		TotalLiters: snap.TotalLiters,
		DailyLiters: snap.DailyLiters,
		DayMarker:   snap.DayIndex,
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Power cycle: a fresh engine built from the image carries the edits.
	rec, defaulted, err := nvram.Load(dev)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defaulted) != 0 {
		t.Errorf("unexpected defaulted fields: %v", defaulted)
	}

	eng2 := meter.NewEngine(meter.EngineConfig{
		Settings:        rec.Settings,
		TotalLiters:     rec.TotalLiters,
		DailyLiters:     rec.DailyLiters,
		DayMarker:       rec.DayMarker,
		NominalInterval: time.Second,
		StartTime:       start.Add(48 * time.Hour),
	})
	s := eng2.Settings()
	if s.CalibrationPPL != 390.5 {
		t.Errorf("CalibrationPPL: got %v, want 390.5", s.CalibrationPPL)
	}
	if s.CapacityLiters != 2500 {
		t.Errorf("CapacityLiters: got %d, want 2500", s.CapacityLiters)
	}
	if s.AlertLow != 10 || s.AlertMid != 35 || s.AlertHigh != 85 {
		t.Errorf("thresholds: got %d/%d/%d, want 10/35/85", s.AlertLow, s.AlertMid, s.AlertHigh)
	}
	if s.AlertsEnabled {
		t.Error("expected AlertsEnabled=false after reload")
	}
}
