package gpio

import "time"

// FakePulseSource is a test double returning scripted pulse counts.
type FakePulseSource struct {
	// Deltas contains scripted pulse counts. Each call to Take()
	// consumes the next one; when exhausted, the last repeats.
	Deltas []uint64

	// index tracks current position in Deltas
	index int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakePulseSource creates a FakePulseSource with the given deltas.
func NewFakePulseSource(deltas []uint64) *FakePulseSource {
	return &FakePulseSource{Deltas: deltas}
}

// Take returns the next scripted count. With no script it returns 0.
func (f *FakePulseSource) Take() uint64 {
	if len(f.Deltas) == 0 {
		return 0
	}
	d := f.Deltas[f.index]
	if f.index < len(f.Deltas)-1 {
		f.index++
	}
	return d
}

// Close marks the source as closed.
func (f *FakePulseSource) Close() error {
	f.Closed = true
	return nil
}

// FakeRanger is a test double returning scripted distances.
type FakeRanger struct {
	// Distances contains scripted readings in centimeters. Each call
	// to Distance() consumes the next one; when exhausted, the last
	// repeats.
	Distances []float64

	// Err, if set, is returned by Distance()
	Err error

	// index tracks current position in Distances
	index int

	// Calls counts Distance() invocations, failed ones included
	Calls int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeRanger creates a FakeRanger with the given distances.
func NewFakeRanger(distances []float64) *FakeRanger {
	return &FakeRanger{Distances: distances}
}

// Distance returns the next scripted reading.
func (f *FakeRanger) Distance() (float64, error) {
	f.Calls++
	if f.Err != nil {
		return 0, f.Err
	}
	if len(f.Distances) == 0 {
		return 0, nil
	}
	d := f.Distances[f.index]
	if f.index < len(f.Distances)-1 {
		f.index++
	}
	return d, nil
}

// Close marks the ranger as closed.
func (f *FakeRanger) Close() error {
	f.Closed = true
	return nil
}

// LineState is one recorded SetLines call.
type LineState struct {
	Green, Yellow, Red bool
}

// ToneCall is one recorded Tone call.
type ToneCall struct {
	FreqHz int
	Length time.Duration
}

// FakeIndicators records every line and tone command for inspection.
type FakeIndicators struct {
	// Lines holds every SetLines call in order.
	Lines []LineState

	// Tones holds every Tone call in order.
	Tones []ToneCall

	// LineErr, if set, is returned by SetLines()
	LineErr error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeIndicators creates an empty recording double.
func NewFakeIndicators() *FakeIndicators {
	return &FakeIndicators{}
}

// SetLines records the requested state.
func (f *FakeIndicators) SetLines(green, yellow, red bool) error {
	if f.LineErr != nil {
		return f.LineErr
	}
	f.Lines = append(f.Lines, LineState{Green: green, Yellow: yellow, Red: red})
	return nil
}

// Tone records the requested tone.
func (f *FakeIndicators) Tone(freqHz int, length time.Duration) error {
	f.Tones = append(f.Tones, ToneCall{FreqHz: freqHz, Length: length})
	return nil
}

// Last returns the most recent line state, or all-off if none was set.
func (f *FakeIndicators) Last() LineState {
	if len(f.Lines) == 0 {
		return LineState{}
	}
	return f.Lines[len(f.Lines)-1]
}

// Close marks the indicators as closed.
func (f *FakeIndicators) Close() error {
	f.Closed = true
	return nil
}
