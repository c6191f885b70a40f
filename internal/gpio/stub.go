//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPulseSource is not available on non-Linux platforms.
type RealPulseSource struct{}

// NewRealPulseSource returns an error on non-Linux platforms.
func NewRealPulseSource(pin int) (*RealPulseSource, error) {
	return nil, errUnsupported
}

func (s *RealPulseSource) Take() uint64 { return 0 }

func (s *RealPulseSource) Close() error { return nil }

// RealRanger is not available on non-Linux platforms.
type RealRanger struct{}

// NewRealRanger returns an error on non-Linux platforms.
func NewRealRanger(triggerPin, echoPin int) (*RealRanger, error) {
	return nil, errUnsupported
}

func (r *RealRanger) Distance() (float64, error) { return 0, errUnsupported }

func (r *RealRanger) Close() error { return nil }

// RealIndicators is not available on non-Linux platforms.
type RealIndicators struct{}

// NewRealIndicators returns an error on non-Linux platforms.
func NewRealIndicators(greenPin, yellowPin, redPin, buzzerPin int) (*RealIndicators, error) {
	return nil, errUnsupported
}

func (ind *RealIndicators) SetLines(green, yellow, red bool) error { return errUnsupported }

func (ind *RealIndicators) Tone(freqHz int, length time.Duration) error { return errUnsupported }

func (ind *RealIndicators) Close() error { return nil }
