//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// chipName is the GPIO character device all lines are requested from.
const chipName = "gpiochip0"

// Ultrasonic timing. The trigger pulse wakes the module; the echo pulse
// width encodes the round trip. 30ms of echo covers just over 5m of
// round trip, past the module's rated range, so a longer pulse is a
// lost echo.
const (
	triggerPulse     = 10 * time.Microsecond
	echoStartTimeout = 60 * time.Millisecond
	echoTimeout      = 30 * time.Millisecond
	speedOfSoundCMS  = 34300.0
	maxRangeCM       = 400.0
)

// RealPulseSource counts flow sensor edges from actual hardware using
// kernel edge events, so pulses between ticks are never lost.
type RealPulseSource struct {
	line  *gpiocdev.Line
	count atomic.Uint64
}

// NewRealPulseSource requests the flow sensor line with falling-edge
// detection. The sensor output is open collector, hence the pull-up.
func NewRealPulseSource(pin int) (*RealPulseSource, error) {
	s := &RealPulseSource{}
	line, err := gpiocdev.RequestLine(chipName, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(s.handleEdge))
	if err != nil {
		return nil, fmt.Errorf("request pulse pin %d: %w", pin, err)
	}
	s.line = line
	return s, nil
}

// handleEdge runs on the gpiocdev event goroutine; it must not block.
func (s *RealPulseSource) handleEdge(gpiocdev.LineEvent) {
	s.count.Add(1)
}

// Take returns the pulses accumulated since the previous call.
func (s *RealPulseSource) Take() uint64 {
	return s.count.Swap(0)
}

// Close releases the pulse line.
func (s *RealPulseSource) Close() error {
	if s.line != nil {
		if err := s.line.Close(); err != nil {
			return fmt.Errorf("close pulse line: %w", err)
		}
	}
	return nil
}

// RealRanger drives an HC-SR04 style ultrasonic module. Echo edges are
// timestamped by the kernel, which keeps the width measurement immune
// to scheduling jitter in this process.
type RealRanger struct {
	trigger *gpiocdev.Line
	echo    *gpiocdev.Line
	events  chan gpiocdev.LineEvent
}

// NewRealRanger requests the trigger and echo lines.
func NewRealRanger(triggerPin, echoPin int) (*RealRanger, error) {
	r := &RealRanger{events: make(chan gpiocdev.LineEvent, 4)}

	trigger, err := gpiocdev.RequestLine(chipName, triggerPin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request trigger pin %d: %w", triggerPin, err)
	}
	r.trigger = trigger

	echo, err := gpiocdev.RequestLine(chipName, echoPin,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.handleEcho))
	if err != nil {
		trigger.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", echoPin, err)
	}
	r.echo = echo

	return r, nil
}

// handleEcho runs on the gpiocdev event goroutine; it must not block.
// A full channel means a measurement already timed out, so the event is
// stale and safe to drop.
func (r *RealRanger) handleEcho(evt gpiocdev.LineEvent) {
	select {
	case r.events <- evt:
	default:
	}
}

// Distance fires the trigger and times the echo pulse. A lost or
// out-of-range echo reads as 0.
func (r *RealRanger) Distance() (float64, error) {
	// Drop edges left over from a previous, timed-out measurement.
	for {
		select {
		case <-r.events:
			continue
		default:
		}
		break
	}

	if err := r.trigger.SetValue(1); err != nil {
		return 0, fmt.Errorf("raise trigger: %w", err)
	}
	time.Sleep(triggerPulse)
	if err := r.trigger.SetValue(0); err != nil {
		return 0, fmt.Errorf("drop trigger: %w", err)
	}

	rise, ok := r.waitEdge(gpiocdev.LineEventRisingEdge, echoStartTimeout)
	if !ok {
		return 0, nil
	}
	fall, ok := r.waitEdge(gpiocdev.LineEventFallingEdge, echoTimeout)
	if !ok {
		return 0, nil
	}

	width := fall.Timestamp - rise.Timestamp
	if width <= 0 {
		return 0, nil
	}
	cm := width.Seconds() * speedOfSoundCMS / 2
	if cm > maxRangeCM {
		return 0, nil
	}
	return cm, nil
}

func (r *RealRanger) waitEdge(want gpiocdev.LineEventType, timeout time.Duration) (gpiocdev.LineEvent, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case evt := <-r.events:
			if evt.Type == want {
				return evt, true
			}
		case <-deadline.C:
			return gpiocdev.LineEvent{}, false
		}
	}
}

// Close releases both ultrasonic lines.
func (r *RealRanger) Close() error {
	var errs []error
	if r.echo != nil {
		if err := r.echo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close echo line: %w", err))
		}
	}
	if r.trigger != nil {
		if err := r.trigger.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drop trigger: %w", err))
		}
		if err := r.trigger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trigger line: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealIndicators drives the LED lines and buzzer on actual hardware.
// The buzzer is a passive element, so tones are software square waves.
type RealIndicators struct {
	green  *gpiocdev.Line
	yellow *gpiocdev.Line
	red    *gpiocdev.Line
	buzzer *gpiocdev.Line

	mu       sync.Mutex
	toneStop chan struct{}
}

// NewRealIndicators requests the three LED lines and the buzzer line,
// all initially low.
func NewRealIndicators(greenPin, yellowPin, redPin, buzzerPin int) (*RealIndicators, error) {
	ind := &RealIndicators{}

	lines := []struct {
		name string
		pin  int
		dst  **gpiocdev.Line
	}{
		{"green led", greenPin, &ind.green},
		{"yellow led", yellowPin, &ind.yellow},
		{"red led", redPin, &ind.red},
		{"buzzer", buzzerPin, &ind.buzzer},
	}
	for _, l := range lines {
		line, err := gpiocdev.RequestLine(chipName, l.pin, gpiocdev.AsOutput(0))
		if err != nil {
			ind.releaseLines()
			return nil, fmt.Errorf("request %s pin %d: %w", l.name, l.pin, err)
		}
		*l.dst = line
	}

	return ind, nil
}

// SetLines applies all three LED lines.
func (ind *RealIndicators) SetLines(green, yellow, red bool) error {
	if err := ind.green.SetValue(boolValue(green)); err != nil {
		return fmt.Errorf("set green led: %w", err)
	}
	if err := ind.yellow.SetValue(boolValue(yellow)); err != nil {
		return fmt.Errorf("set yellow led: %w", err)
	}
	if err := ind.red.SetValue(boolValue(red)); err != nil {
		return fmt.Errorf("set red led: %w", err)
	}
	return nil
}

// Tone starts a square wave on the buzzer line and returns immediately.
// A tone already playing is cut off first.
func (ind *RealIndicators) Tone(freqHz int, length time.Duration) error {
	if freqHz <= 0 || length <= 0 {
		return nil
	}

	ind.mu.Lock()
	if ind.toneStop != nil {
		close(ind.toneStop)
	}
	stop := make(chan struct{})
	ind.toneStop = stop
	ind.mu.Unlock()

	half := time.Second / time.Duration(2*freqHz)
	go func() {
		defer ind.buzzer.SetValue(0)
		tick := time.NewTicker(half)
		defer tick.Stop()
		end := time.Now().Add(length)
		level := 0
		for time.Now().Before(end) {
			select {
			case <-stop:
				return
			case <-tick.C:
				level ^= 1
				if ind.buzzer.SetValue(level) != nil {
					return
				}
			}
		}
	}()
	return nil
}

// Close silences the buzzer, darkens the LEDs, and releases all lines.
func (ind *RealIndicators) Close() error {
	ind.mu.Lock()
	if ind.toneStop != nil {
		close(ind.toneStop)
		ind.toneStop = nil
	}
	ind.mu.Unlock()

	if err := ind.releaseLines(); err != nil {
		return err
	}
	return nil
}

// releaseLines drops every requested line to 0 and closes it.
func (ind *RealIndicators) releaseLines() error {
	var errs []error
	for _, line := range []*gpiocdev.Line{ind.green, ind.yellow, ind.red, ind.buzzer} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, err)
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
