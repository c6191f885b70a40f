package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/tank-monitor/internal/meter"
	"github.com/sweeney/tank-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"liters": func(v float64) string {
		return fmt.Sprintf("%.1f L", v)
	},
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"ledClass": func(led meter.LEDState) string {
		switch led {
		case meter.LEDGreen:
			return "green"
		case meter.LEDYellow:
			return "yellow"
		case meter.LEDRed:
			return "red"
		case meter.LEDBlinkingRed:
			return "blink"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Tank Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.gauge { width: 100%; height: 22px; border: 1px solid #888; background: #f4f4f4; }
.gauge div { height: 100%; }
.green { background: #2a2; color: #2a2; }
.yellow { background: #ca2; color: #ca2; }
.red { background: #c22; color: #c22; }
.blink { background: #c22; color: #c22; animation: blink 1s step-start infinite; }
@keyframes blink { 50% { opacity: 0.2; } }
.led { display: inline-block; width: 12px; height: 12px; border-radius: 50%; margin-right: 6px; vertical-align: middle; }
.leak-banner { background: #c22; color: #fff; padding: 8px 12px; font-weight: bold; }
.off { color: #888; }
</style>
</head>
<body>
<h1>Tank Monitor</h1>

{{if .Meter.LeakDetected}}<p class="leak-banner">LEAK DETECTED &mdash; continuous flow since {{.Meter.FlowSince.UTC.Format "2006-01-02T15:04:05Z"}}</p>{{end}}

<h2>Tank</h2>
<div class="gauge"><div class="{{ledClass .Meter.Decision.LED}}" style="width: {{printf "%.1f" .Meter.LevelPercent}}%"></div></div>
<table>
<tr><th>Level</th><td>{{percent .Meter.LevelPercent}}</td></tr>
<tr><th>Volume</th><td>{{liters .Meter.TankLiters}} of {{.Meter.Settings.CapacityLiters}} L</td></tr>
<tr><th>Alert</th><td><span class="led {{ledClass .Meter.Decision.LED}}"></span>{{.Meter.Decision.LED}}{{if ne .Meter.Decision.Buzzer "OFF"}} ({{.Meter.Decision.Buzzer}} tone){{end}}</td></tr>
</table>

<h2>Flow</h2>
<table>
<tr><th>Rate</th><td>{{printf "%.2f" .Meter.FlowRateLPM}} L/min{{if .Meter.Flowing}} (flowing){{else}}<span class="off"> (idle)</span>{{end}}</td></tr>
<tr><th>Today</th><td>{{liters .Meter.DailyLiters}}</td></tr>
<tr><th>Total</th><td>{{liters .Meter.TotalLiters}}</td></tr>
</table>

<h2>Settings</h2>
<table>
<tr><th>Calibration</th><td>{{printf "%.1f" .Meter.Settings.CalibrationPPL}} pulses/L</td></tr>
<tr><th>Thresholds</th><td>{{.Meter.Settings.AlertLow}} / {{.Meter.Settings.AlertMid}} / {{.Meter.Settings.AlertHigh}} %</td></tr>
<tr><th>Buzzer</th><td>{{if .Meter.Settings.AlertsEnabled}}enabled{{else}}<span class="off">disabled</span>{{end}}</td></tr>
</table>

{{if .Events}}<h2>Recent events</h2>
<table>
{{range .Events}}<tr><th>{{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</th><td>{{.Type}}</td></tr>
{{end}}</table>{{end}}

{{if .Network}}<h2>Network</h2>
<table>
<tr><th>Status</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} &mdash; {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>
</table>{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ticks</th><td>{{.Counters.Ticks}}</td></tr>
<tr><th>Saves</th><td>{{.Counters.Saves}}{{if .Counters.SaveFailures}} ({{.Counters.SaveFailures}} failed){{end}}</td></tr>
<tr><th>Sensor faults</th><td>{{.Counters.SensorFaults}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
<tr><th>State file</th><td>{{.Config.NVRAMPath}}</td></tr>
<tr><th>Pins</th><td>{{.Config.Pins}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, events []meter.Event) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Events []meter.Event
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Events:   events,
	}
	indexTmpl.Execute(w, data)
}
