// Package mqtt publishes drowsiness alerts and lifecycle events to MQTT, with
// an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/drowsiness-sensor/internal/engine"
)

// TopicAlerts is the MQTT topic for confirmed-sleep alerts.
const TopicAlerts = "drowsiness/sensor/alerts"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "drowsiness/sensor/system"

// TopicInteraction receives "user is awake" pings from companion devices.
const TopicInteraction = "drowsiness/sensor/interaction"

// EventSleepConfirmed is the event name carried by every alert.
const EventSleepConfirmed = "SLEEP_CONFIRMED"

// Alert sources.
const (
	SourcePoll       = "poll"
	SourceBackground = "background"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishAlert sends a confirmed-sleep alert.
	// Returns error if publishing fails (should not crash the process).
	PublishAlert(alert Alert) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Alert is a confirmed-sleep decision ready to publish.
type Alert struct {
	ID           string
	Timestamp    time.Time
	State        string
	Probability  float64
	PendingSince time.Time
	Source       string // SourcePoll or SourceBackground
}

// NewAlert builds an Alert with a fresh ID from a confirming snapshot.
func NewAlert(snap engine.Snapshot, source string) Alert {
	a := Alert{
		ID:        uuid.NewString(),
		Timestamp: snap.Timestamp,
		State:     string(snap.State.Kind),
		Source:    source,
	}
	if snap.Probability != nil {
		a.Probability = *snap.Probability
	}
	if snap.PendingSince != nil {
		a.PendingSince = *snap.PendingSince
	}
	return a
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message body for an alert.
type Payload struct {
	Drowsiness AlertPayload `json:"drowsiness"`
}

// AlertPayload contains the alert details.
type AlertPayload struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Event        string  `json:"event"`
	State        string  `json:"state"`
	Probability  float64 `json:"probability"`
	PendingSince string  `json:"pending_since,omitempty"`
	Source       string  `json:"source"`
}

// FormatAlertPayload creates the JSON payload for an alert.
func FormatAlertPayload(alert Alert) ([]byte, error) {
	p := Payload{
		Drowsiness: AlertPayload{
			ID:          alert.ID,
			Timestamp:   alert.Timestamp.UTC().Format(time.RFC3339),
			Event:       EventSleepConfirmed,
			State:       alert.State,
			Probability: alert.Probability,
			Source:      alert.Source,
		},
	}
	if !alert.PendingSince.IsZero() {
		p.Drowsiness.PendingSince = alert.PendingSince.UTC().Format(time.RFC3339)
	}
	return json.Marshal(p)
}

// SystemPayload is the MQTT message body for simple system events that don't
// carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
