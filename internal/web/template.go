package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/drowsiness-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
	"probability": func(p *float64) string {
		if p == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *p)
	},
	"stateClass": func(kind string) string {
		switch kind {
		case "LIKELY_ASLEEP":
			return "asleep"
		case "DROWSY":
			return "drowsy"
		default:
			return "awake"
		}
	},
	"utc": func(v any) string {
		var t time.Time
		switch tv := v.(type) {
		case time.Time:
			t = tv
		case *time.Time:
			if tv != nil {
				t = *tv
			}
		}
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>Drowsiness Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.awake { color: green; }
.drowsy { color: orange; font-weight: bold; }
.asleep { color: red; font-weight: bold; }
.missing { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Drowsiness Sensor</h1>

<h2>State</h2>
<table>
{{if .Evaluated}}{{with .Evaluation}}<tr><th>State</th><td id="state" class="{{stateClass (printf "%s" .State.Kind)}}">{{.State}}</td></tr>
<tr><th>Probability</th><td>{{probability .Probability}}</td></tr>
<tr><th>Missing data</th><td{{if .HadMissingData}} class="missing"{{end}}>{{if .HadMissingData}}yes{{else}}no{{end}}</td></tr>
<tr><th>Pending since</th><td>{{if .PendingSince}}{{utc .PendingSince}}{{else}}-{{end}}</td></tr>
<tr><th>Confirmed</th><td>{{if .Confirmed}}yes{{else}}no{{end}}</td></tr>
<tr><th>Last evaluation</th><td>{{utc .Timestamp}}</td></tr>{{end}}
{{else}}<tr><th>State</th><td id="state" class="missing">not evaluated yet</td></tr>
{{end}}<tr><th>Threshold</th><td>{{printf "%.2f" .Threshold}}</td></tr>
<tr><th>Inactive for</th><td>{{duration .Inactivity}}</td></tr>
<tr><th>Last alert</th><td>{{utc .LastAlert}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>Background</th><td>{{if .BackgroundRegistered}}registered{{else}}poll only{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Evaluations</th><td>{{.Counts.Evaluations}}</td></tr>
<tr><th>Missing data</th><td>{{.Counts.MissingData}}</td></tr>
<tr><th>Poll alerts</th><td>{{.Counts.PollAlerts}}</td></tr>
<tr><th>Background alerts</th><td>{{.Counts.BackgroundAlerts}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{utc .StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Confirmation</th><td>{{.Config.ConfirmationMs}}ms</td></tr>
<tr><th>Lookback</th><td>{{.Config.LookbackMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Store</th><td>{{.Config.Store}}{{if .Config.Session}} ({{.Config.Session}}){{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods but the template needs Duration fields.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Inactivity time.Duration
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Inactivity: snap.Inactivity(),
	}
	return indexTmpl.Execute(w, data)
}
