package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event               string       `json:"event,omitempty"`
	Reason              string       `json:"reason,omitempty"`
	Ready               bool         `json:"ready"`
	Evaluation          *Evaluation  `json:"evaluation,omitempty"`
	Threshold           float64      `json:"threshold"`
	InactivitySeconds   int64        `json:"inactivity_seconds"`
	LastInteraction     string       `json:"last_interaction"`
	LastAlert           string       `json:"last_alert,omitempty"`
	BackgroundObservers bool         `json:"background_observers"`
	UptimeSeconds       int64        `json:"uptime_seconds"`
	StartTime           string       `json:"start_time"`
	Timestamp           string       `json:"timestamp"`
	MQTT                MQTTStatus   `json:"mqtt"`
	Counts              CountsJSON   `json:"counts"`
	Network             *NetworkJSON `json:"network,omitempty"`
	Config              ConfigJSON   `json:"config"`
}

// Evaluation is the JSON form of the latest engine snapshot.
type Evaluation struct {
	Timestamp       string   `json:"timestamp"`
	State           string   `json:"state"`
	Probability     *float64 `json:"probability"`
	MissingData     bool     `json:"missing_data"`
	Confirmed       bool     `json:"confirmed"`
	PendingSince    string   `json:"pending_since,omitempty"`
	LowHeartRate    bool     `json:"low_heart_rate"`
	VeryLowMotion   bool     `json:"very_low_motion"`
	Inactive        bool     `json:"sufficient_inactivity"`
	HeartRateMedian *float64 `json:"heart_rate_median,omitempty"`
	TotalEnergy     float64  `json:"total_energy_kcal"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of evaluation counts.
type CountsJSON struct {
	Evaluations      int `json:"evaluations"`
	MissingData      int `json:"missing_data"`
	PollAlerts       int `json:"poll_alerts"`
	BackgroundAlerts int `json:"background_alerts"`
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

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Source         string `json:"source"`
	PollMs         int64  `json:"poll_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	ConfirmationMs int64  `json:"confirmation_ms"`
	LookbackMs     int64  `json:"lookback_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	Store          string `json:"store"`
	Session        string `json:"session,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildEvaluation(snap Snapshot) *Evaluation {
	if !snap.Evaluated {
		return nil
	}
	e := snap.Evaluation
	state := string(e.State.Kind)
	if state == "" {
		state = "AWAKE"
	}
	out := &Evaluation{
		Timestamp:     formatTime(e.Timestamp),
		State:         state,
		Probability:   e.Probability,
		MissingData:   e.HadMissingData,
		Confirmed:     e.Confirmed,
		LowHeartRate:  e.Signals.LowHeartRate,
		VeryLowMotion: e.Signals.VeryLowMotion,
		Inactive:      e.Signals.SufficientInactivity,
		TotalEnergy:   e.Signals.TotalEnergy,
	}
	if e.PendingSince != nil {
		out.PendingSince = formatTime(*e.PendingSince)
	}
	if e.Signals.HasHeartRate {
		m := e.Signals.HeartRateMedian
		out.HeartRateMedian = &m
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:               snap.Evaluated,
		Evaluation:          buildEvaluation(snap),
		Threshold:           snap.Threshold,
		InactivitySeconds:   int64(snap.Inactivity().Truncate(time.Second).Seconds()),
		LastInteraction:     formatTime(snap.LastInteraction),
		LastAlert:           formatTime(snap.LastAlert),
		BackgroundObservers: snap.BackgroundRegistered,
		UptimeSeconds:       int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:           formatTime(snap.StartTime),
		Timestamp:           formatTime(snap.Now),
		MQTT:                MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Evaluations:      snap.Counts.Evaluations,
			MissingData:      snap.Counts.MissingData,
			PollAlerts:       snap.Counts.PollAlerts,
			BackgroundAlerts: snap.Counts.BackgroundAlerts,
		},
		Config: ConfigJSON{
			Source:         snap.Config.Source,
			PollMs:         snap.Config.PollMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			ConfirmationMs: snap.Config.ConfirmationMs,
			LookbackMs:     snap.Config.LookbackMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			Store:          snap.Config.Store,
			Session:        snap.Config.Session,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
