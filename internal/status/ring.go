package status

import "github.com/sweeney/tank-monitor/internal/meter"

// eventRing is a fixed-capacity FIFO keeping the most recent events.
// Not safe for concurrent use — the Tracker synchronizes access.
type eventRing struct {
	buf      []meter.Event
	capacity int
	head     int // next write position
	count    int
	dropped  uint64 // events overwritten since start
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{
		buf:      make([]meter.Event, capacity),
		capacity: capacity,
	}
}

func (r *eventRing) push(ev meter.Event) {
	if r.count == r.capacity {
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = ev
		r.head = (r.head + 1) % r.capacity
		r.dropped++
		return
	}
	r.buf[r.head] = ev
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// list returns the retained events oldest first.
func (r *eventRing) list() []meter.Event {
	if r.count == 0 {
		return nil
	}

	result := make([]meter.Event, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}
	return result
}

func (r *eventRing) len() int {
	return r.count
}
