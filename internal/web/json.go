package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tank-monitor/internal/meter"
	"github.com/sweeney/tank-monitor/internal/status"
)

// StatusJSON is the JSON representation of the daemon status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	FlowRateLPM   float64      `json:"flow_rate_lpm"`
	TotalLiters   float64      `json:"total_liters"`
	DailyLiters   float64      `json:"daily_liters"`
	LevelPercent  float64      `json:"level_percent"`
	TankLiters    float64      `json:"tank_liters"`
	Flowing       bool         `json:"flowing"`
	LeakDetected  bool         `json:"leak_detected"`
	DayIndex      int          `json:"day_index"`
	Alert         AlertJSON    `json:"alert"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Counters      CountersJSON `json:"counters"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Settings      SettingsJSON `json:"settings"`
	Config        ConfigJSON   `json:"config"`
}

// AlertJSON is the JSON representation of the current alert decision.
type AlertJSON struct {
	LED    string `json:"led"`
	Buzzer string `json:"buzzer"`
	Green  bool   `json:"green"`
	Yellow bool   `json:"yellow"`
	Red    bool   `json:"red"`
}

// CountersJSON is the JSON representation of the daemon counters.
type CountersJSON struct {
	Ticks        uint64 `json:"ticks"`
	Saves        uint64 `json:"saves"`
	SaveFailures uint64 `json:"save_failures"`
	SensorFaults uint64 `json:"sensor_faults"`
	EventsLost   uint64 `json:"events_lost"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// SettingsJSON is the JSON representation of the tank settings. The same
// shape is accepted by PUT /api/config.
type SettingsJSON struct {
	CalibrationPPL float64 `json:"calibration_ppl"`
	CapacityLiters int     `json:"capacity_liters"`
	AlertLow       int     `json:"alert_low"`
	AlertMid       int     `json:"alert_mid"`
	AlertHigh      int     `json:"alert_high"`
	AlertsEnabled  bool    `json:"alerts_enabled"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	Samples     int    `json:"samples"`
	SampleGapMs int64  `json:"sample_gap_ms"`
	LeakAfterMs int64  `json:"leak_after_ms"`
	HTTPAddr    string `json:"http_addr"`
	NVRAMPath   string `json:"nvram_path"`
	Pins        string `json:"pins"`
}

// EventJSON is one entry of the event history.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

func settingsJSON(s meter.Settings) SettingsJSON {
	return SettingsJSON{
		CalibrationPPL: s.CalibrationPPL,
		CapacityLiters: s.CapacityLiters,
		AlertLow:       s.AlertLow,
		AlertMid:       s.AlertMid,
		AlertHigh:      s.AlertHigh,
		AlertsEnabled:  s.AlertsEnabled,
	}
}

func alertJSON(d meter.Decision) AlertJSON {
	led := string(d.LED)
	if led == "" {
		led = "UNKNOWN"
	}
	buzzer := string(d.Buzzer)
	if buzzer == "" {
		buzzer = string(meter.BuzzerOff)
	}
	return AlertJSON{
		LED:    led,
		Buzzer: buzzer,
		Green:  d.Green,
		Yellow: d.Yellow,
		Red:    d.Red,
	}
}

func formatJSON(snap status.Snapshot) []byte {
	sj := StatusJSON{
		Status: StatusInner{
			FlowRateLPM:   snap.Meter.FlowRateLPM,
			TotalLiters:   snap.Meter.TotalLiters,
			DailyLiters:   snap.Meter.DailyLiters,
			LevelPercent:  snap.Meter.LevelPercent,
			TankLiters:    snap.Meter.TankLiters,
			Flowing:       snap.Meter.Flowing,
			LeakDetected:  snap.Meter.LeakDetected,
			DayIndex:      int(snap.Meter.DayIndex),
			Alert:         alertJSON(snap.Meter.Decision),
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			Counters: CountersJSON{
				Ticks:        snap.Counters.Ticks,
				Saves:        snap.Counters.Saves,
				SaveFailures: snap.Counters.SaveFailures,
				SensorFaults: snap.Counters.SensorFaults,
				EventsLost:   snap.Counters.EventsLost,
			},
			Settings: settingsJSON(snap.Meter.Settings),
			Config: ConfigJSON{
				TickMs:      snap.Config.TickMs,
				Samples:     snap.Config.Samples,
				SampleGapMs: snap.Config.SampleGapMs,
				LeakAfterMs: snap.Config.LeakAfterMs,
				HTTPAddr:    snap.Config.HTTPPort,
				NVRAMPath:   snap.Config.NVRAMPath,
				Pins:        snap.Config.Pins,
			},
		},
	}

	if snap.Network != nil {
		sj.Status.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	data, _ := json.MarshalIndent(sj, "", "  ")
	return data
}

func formatEvents(events []meter.Event) []EventJSON {
	out := make([]EventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, EventJSON{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Type:      string(ev.Type),
		})
	}
	return out
}
