// Package gpio drives the monitor's hardware: the flow sensor pulse
// line, the ultrasonic ranger, and the indicator LEDs and buzzer.
// The real implementations use the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "time"

// PulseSource counts falling edges from the flow sensor.
type PulseSource interface {
	// Take returns the number of pulses accumulated since the previous
	// call and resets the count to zero.
	Take() uint64

	// Close releases GPIO resources.
	Close() error
}

// Ranger measures the distance from the sensor face down to the water
// surface.
type Ranger interface {
	// Distance returns centimeters to the nearest echo. A lost echo
	// returns 0 with no error; errors mean the hardware itself failed.
	Distance() (float64, error)

	// Close releases GPIO resources.
	Close() error
}

// Indicators drives the LED lines and the buzzer.
type Indicators interface {
	// SetLines applies all three LED lines in one call.
	SetLines(green, yellow, red bool) error

	// Tone plays a square wave on the buzzer without blocking the
	// caller. A new tone cuts off a still-playing one.
	Tone(freqHz int, length time.Duration) error

	// Close silences and darkens everything, then releases GPIO
	// resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinPulse     = 17 // flow sensor open-collector output
	PinTrigger   = 23 // ultrasonic trigger
	PinEcho      = 24 // ultrasonic echo (level-shifted to 3.3V)
	PinLEDGreen  = 5
	PinLEDYellow = 6
	PinLEDRed    = 13
	PinBuzzer    = 19
)

// AverageDistance takes n ranger readings spaced by gap and returns
// their plain mean. Lost echoes average in as zeros, dragging the level
// estimate down rather than up. The sleep function is injectable so
// tests run without waiting.
func AverageDistance(r Ranger, n int, gap time.Duration, sleep func(time.Duration)) (float64, error) {
	if n <= 0 {
		n = 1
	}
	var sum float64
	for i := 0; i < n; i++ {
		if i > 0 && gap > 0 && sleep != nil {
			sleep(gap)
		}
		d, err := r.Distance()
		if err != nil {
			return 0, err
		}
		sum += d
	}
	return sum / float64(n), nil
}
