package web

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/tank-monitor/internal/status"
)

// newMetrics builds a registry of collectors reading straight from the
// tracker, so /metrics always reports the latest published snapshot
// without its own update path.
func newMetrics(tracker *status.Tracker) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string, value func(status.Snapshot) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return value(tracker.Snapshot())
		})
	}
	counter := func(name, help string, value func(status.Snapshot) float64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			return value(tracker.Snapshot())
		})
	}

	reg.MustRegister(
		gauge("tank_level_percent", "Tank fill level.", func(s status.Snapshot) float64 {
			return s.Meter.LevelPercent
		}),
		gauge("flow_rate_lpm", "Current flow rate in liters per minute.", func(s status.Snapshot) float64 {
			return s.Meter.FlowRateLPM
		}),
		gauge("total_volume_liters", "Lifetime volume through the flow sensor.", func(s status.Snapshot) float64 {
			return s.Meter.TotalLiters
		}),
		gauge("daily_usage_liters", "Volume since the last day boundary.", func(s status.Snapshot) float64 {
			return s.Meter.DailyLiters
		}),
		gauge("leak_detected", "1 while a leak alert is active.", func(s status.Snapshot) float64 {
			if s.Meter.LeakDetected {
				return 1
			}
			return 0
		}),
		counter("ticks_total", "Measurement cycles completed.", func(s status.Snapshot) float64 {
			return float64(s.Counters.Ticks)
		}),
		counter("nvram_saves_total", "Successful state saves.", func(s status.Snapshot) float64 {
			return float64(s.Counters.Saves)
		}),
		counter("sensor_faults_total", "Ranging sensor hardware failures.", func(s status.Snapshot) float64 {
			return float64(s.Counters.SensorFaults)
		}),
	)

	return reg
}
