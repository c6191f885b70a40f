package nvram

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sweeney/tank-monitor/internal/meter"
)

// Field offsets within the image. These are a stable contract: fields
// only ever get added in the reserved tail, never moved or resized.
const (
	offTotalLiters    = 0  // float32 LE
	offCalibrationPPL = 4  // float32 LE
	offCapacityLiters = 8  // uint16 LE
	offAlertLow       = 10 // uint8
	offAlertMid       = 11 // uint8
	offAlertHigh      = 12 // uint8
	offDailyLiters    = 13 // float32 LE
	offDayMarker      = 17 // uint8, 0..6
	offAlertsEnabled  = 18 // uint8, 0 or 1
)

// maxPlausibleLiters bounds the volume accumulators on load. A lifetime
// total past ten million liters on a domestic tank means the image is
// garbage, not that the household drank it.
const maxPlausibleLiters = 1e7

// Record is the decoded image: tank settings plus the accumulators that
// must survive a power cycle.
type Record struct {
	Settings    meter.Settings
	TotalLiters float64
	DailyLiters float64
	DayMarker   uint8
}

// DefaultRecord is the state of a freshly provisioned monitor.
func DefaultRecord() Record {
	return Record{Settings: meter.DefaultSettings()}
}

// Load decodes the image, substituting the default for every field whose
// stored value falls outside its plausible range. The returned slice
// names the substituted fields. A non-nil error means the device itself
// was unreadable; the record is then all defaults and still usable.
func Load(dev Device) (Record, []string, error) {
	rec := DefaultRecord()
	buf := make([]byte, Size)
	if _, err := dev.ReadAt(buf, 0); err != nil {
		return rec, nil, fmt.Errorf("reading state image: %w", err)
	}

	var defaulted []string

	// The positive-form range checks fail on NaN, which is what erased
	// float regions (all 0xFF) decode to.
	if v := readF32(buf, offTotalLiters); v >= 0 && v < maxPlausibleLiters {
		rec.TotalLiters = v
	} else {
		defaulted = append(defaulted, "total_liters")
	}

	if v := readF32(buf, offCalibrationPPL); v >= meter.MinCalibrationPPL && v <= meter.MaxCalibrationPPL {
		rec.Settings.CalibrationPPL = v
	} else {
		defaulted = append(defaulted, "calibration_ppl")
	}

	if v := int(binary.LittleEndian.Uint16(buf[offCapacityLiters:])); v >= meter.MinCapacityLiters && v <= meter.MaxCapacityLiters {
		rec.Settings.CapacityLiters = v
	} else {
		defaulted = append(defaulted, "capacity_liters")
	}

	// The three threshold bytes stand or fall together; taking a subset
	// could produce an unordered triple no one ever configured.
	low, mid, high := int(buf[offAlertLow]), int(buf[offAlertMid]), int(buf[offAlertHigh])
	if meter.ValidThresholds(low, mid, high) {
		rec.Settings.AlertLow, rec.Settings.AlertMid, rec.Settings.AlertHigh = low, mid, high
	} else {
		defaulted = append(defaulted, "alert_thresholds")
	}

	if v := readF32(buf, offDailyLiters); v >= 0 && v < maxPlausibleLiters {
		rec.DailyLiters = v
	} else {
		defaulted = append(defaulted, "daily_liters")
	}
	// Cross-field sanity: a day's usage can never exceed the lifetime
	// total. Possible when the total itself was defaulted.
	if rec.DailyLiters > rec.TotalLiters {
		rec.DailyLiters = rec.TotalLiters
		defaulted = append(defaulted, "daily_liters")
	}

	if v := buf[offDayMarker]; v <= 6 {
		rec.DayMarker = v
	} else {
		defaulted = append(defaulted, "day_marker")
	}

	switch buf[offAlertsEnabled] {
	case 0:
		rec.Settings.AlertsEnabled = false
	case 1:
		rec.Settings.AlertsEnabled = true
	default:
		defaulted = append(defaulted, "alerts_enabled")
	}

	return rec, defaulted, nil
}

// Save writes every field region in offset order and flushes. Fields are
// written individually so an interrupted save leaves later fields stale
// but never tears a value across field boundaries.
func Save(dev Device, rec Record) error {
	fields := []struct {
		name string
		off  int64
		data []byte
	}{
		{"total_liters", offTotalLiters, f32le(rec.TotalLiters)},
		{"calibration_ppl", offCalibrationPPL, f32le(rec.Settings.CalibrationPPL)},
		{"capacity_liters", offCapacityLiters, u16le(uint16(rec.Settings.CapacityLiters))},
		{"alert_low", offAlertLow, []byte{uint8(rec.Settings.AlertLow)}},
		{"alert_mid", offAlertMid, []byte{uint8(rec.Settings.AlertMid)}},
		{"alert_high", offAlertHigh, []byte{uint8(rec.Settings.AlertHigh)}},
		{"daily_liters", offDailyLiters, f32le(rec.DailyLiters)},
		{"day_marker", offDayMarker, []byte{rec.DayMarker}},
		{"alerts_enabled", offAlertsEnabled, []byte{boolByte(rec.Settings.AlertsEnabled)}},
	}
	for _, f := range fields {
		if _, err := dev.WriteAt(f.data, f.off); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	if err := dev.Sync(); err != nil {
		return fmt.Errorf("flushing state image: %w", err)
	}
	return nil
}

func readF32(buf []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])))
}

func f32le(v float64) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	return b
}

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
