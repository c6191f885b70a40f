package meter

import (
	"testing"
	"time"
)

// Epoch millisecond zero starts an overlay-on window, so parity is
// explicit in the blink tests.
func blinkOnInstant() time.Time  { return time.UnixMilli(0).UTC() }
func blinkOffInstant() time.Time { return time.UnixMilli(500).UTC() }

func TestArbitrateLevelBands(t *testing.T) {
	s := DefaultSettings() // thresholds 20/50/80
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		level      float64
		wantLED    LEDState
		wantBuzzer BuzzerState
	}{
		{0, LEDRed, BuzzerCritical},
		{10, LEDRed, BuzzerCritical},
		{20, LEDRed, BuzzerCritical}, // boundary belongs to the lower band
		{20.5, LEDYellow, BuzzerOff},
		{35, LEDYellow, BuzzerOff},
		{50, LEDYellow, BuzzerOff},
		{50.5, LEDGreen, BuzzerOff},
		{80, LEDGreen, BuzzerOff},
		{100, LEDGreen, BuzzerOff},
	}
	for _, tt := range tests {
		d := Arbitrate(tt.level, s, false, now)
		if d.LED != tt.wantLED {
			t.Errorf("level %v: LED = %s, want %s", tt.level, d.LED, tt.wantLED)
		}
		if d.Buzzer != tt.wantBuzzer {
			t.Errorf("level %v: buzzer = %s, want %s", tt.level, d.Buzzer, tt.wantBuzzer)
		}
	}
}

func TestArbitrateOneSteadyColor(t *testing.T) {
	s := DefaultSettings()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for level := 0.0; level <= 100.0; level += 0.5 {
		d := Arbitrate(level, s, false, now)
		lit := 0
		for _, on := range []bool{d.Green, d.Yellow, d.Red} {
			if on {
				lit++
			}
		}
		if lit != 1 {
			t.Fatalf("level %v: %d lines lit, want exactly 1 (%+v)", level, lit, d)
		}
	}
}

func TestArbitrateBuzzerDisabled(t *testing.T) {
	s := DefaultSettings()
	s.AlertsEnabled = false
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	d := Arbitrate(5, s, false, now)
	if d.Buzzer != BuzzerOff {
		t.Errorf("expected silent buzzer when alerts disabled, got %s", d.Buzzer)
	}
	if d.LED != LEDRed || !d.Red {
		t.Error("disabling alerts must not dim the LEDs")
	}
}

func TestLeakOverlayOnWindow(t *testing.T) {
	d := Arbitrate(85, DefaultSettings(), true, blinkOnInstant())

	if d.LED != LEDBlinkingRed {
		t.Errorf("expected BLINKING_RED, got %s", d.LED)
	}
	if !d.Green {
		t.Error("steady green must keep showing under the overlay")
	}
	if !d.Red {
		t.Error("overlay-on window must force the red line")
	}
	if d.Buzzer != BuzzerLeak {
		t.Errorf("expected leak tone in the on-window, got %s", d.Buzzer)
	}
}

func TestLeakOverlayOffWindow(t *testing.T) {
	d := Arbitrate(85, DefaultSettings(), true, blinkOffInstant())

	if d.LED != LEDBlinkingRed {
		t.Errorf("expected BLINKING_RED, got %s", d.LED)
	}
	if !d.Green {
		t.Error("steady green must keep showing under the overlay")
	}
	if d.Red {
		t.Error("overlay-off window must release the red line")
	}
	if d.Buzzer != BuzzerOff {
		t.Errorf("expected silence in the off-window, got %s", d.Buzzer)
	}
}

func TestLeakOverlayWithCriticalLevel(t *testing.T) {
	s := DefaultSettings()

	// Off-window: the steady critical red and its tone stand.
	d := Arbitrate(10, s, true, blinkOffInstant())
	if !d.Red {
		t.Error("critical level keeps red on through overlay-off windows")
	}
	if d.Buzzer != BuzzerCritical {
		t.Errorf("expected critical tone in the off-window, got %s", d.Buzzer)
	}

	// On-window: the leak tone takes precedence.
	d = Arbitrate(10, s, true, blinkOnInstant())
	if !d.Red {
		t.Error("expected red line in the on-window")
	}
	if d.Buzzer != BuzzerLeak {
		t.Errorf("expected leak tone to win the on-window, got %s", d.Buzzer)
	}
}

func TestLeakOverlaySilentWhenAlertsDisabled(t *testing.T) {
	s := DefaultSettings()
	s.AlertsEnabled = false

	d := Arbitrate(85, s, true, blinkOnInstant())
	if d.Buzzer != BuzzerOff {
		t.Errorf("expected silence with alerts disabled, got %s", d.Buzzer)
	}
	if !d.Red || d.LED != LEDBlinkingRed {
		t.Error("overlay must keep blinking even with the buzzer disabled")
	}
}

func TestBlinkWindowParity(t *testing.T) {
	tests := []struct {
		ms   int64
		want bool
	}{
		{0, true},
		{499, true},
		{500, false},
		{999, false},
		{1000, true},
		{1500, false},
	}
	for _, tt := range tests {
		if got := blinkOn(time.UnixMilli(tt.ms).UTC()); got != tt.want {
			t.Errorf("blinkOn(%dms) = %v, want %v", tt.ms, got, tt.want)
		}
	}
}
