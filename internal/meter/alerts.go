package meter

import "time"

// blinkWindow is the half-second cadence of the leak overlay. The overlay
// is on during every other window.
const blinkWindow = 500 * time.Millisecond

// Buzzer tone frequencies and lengths, consumed by the indicator layer.
// The critical tone is a short high-pitch beep; the leak tone is a longer,
// distinctly lower one.
const (
	ToneCriticalHz     = 2000
	ToneCriticalLength = 200 * time.Millisecond
	ToneLeakHz         = 1000
	ToneLeakLength     = 300 * time.Millisecond
)

// Arbitrate resolves tank level thresholds and leak state into a single
// indicator decision. All lines start off and exactly one steady color is
// set, so two steady colors can never show at once. The leak overlay is
// layered independently: during its on-windows it forces the red line on
// without clearing the steady color, which reads as a blinking red
// alongside whatever the level alone would show.
func Arbitrate(levelPercent float64, s Settings, leak bool, now time.Time) Decision {
	d := Decision{Buzzer: BuzzerOff}

	switch {
	case levelPercent <= float64(s.AlertLow):
		d.Red = true
		d.LED = LEDRed
		if s.AlertsEnabled {
			d.Buzzer = BuzzerCritical
		}
	case levelPercent <= float64(s.AlertMid):
		d.Yellow = true
		d.LED = LEDYellow
	default:
		d.Green = true
		d.LED = LEDGreen
	}

	if leak {
		d.LED = LEDBlinkingRed
		if blinkOn(now) {
			d.Red = true
			if s.AlertsEnabled {
				// The leak tone wins over the critical tone during
				// overlay windows.
				d.Buzzer = BuzzerLeak
			}
		}
	}

	return d
}

// blinkOn reports whether now falls in an overlay-on window.
func blinkOn(now time.Time) bool {
	return (now.UnixMilli()/blinkWindow.Milliseconds())%2 == 0
}
