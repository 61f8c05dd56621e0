// Package status provides a thread-safe status tracker for the
// drowsiness-sensor daemon. It is read by the HTTP handlers and used to build
// lifecycle event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/drowsiness-sensor/internal/engine"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Source         string
	PollMs         int64
	HeartbeatMs    int64
	ConfirmationMs int64
	LookbackMs     int64
	Broker         string
	HTTPAddr       string
	Store          string
	Session        string
}

// Counts tallies evaluation outcomes since startup.
type Counts struct {
	Evaluations      int
	MissingData      int
	PollAlerts       int
	BackgroundAlerts int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Evaluation           engine.Snapshot
	Evaluated            bool
	Threshold            float64
	LastInteraction      time.Time
	LastAlert            time.Time
	Counts               Counts
	BackgroundRegistered bool
	StartTime            time.Time
	Now                  time.Time
	MQTTConnected        bool
	Network              *NetworkInfo
	Config               Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Inactivity returns the time since the last interaction as of Now.
func (s Snapshot) Inactivity() time.Duration {
	if s.LastInteraction.IsZero() || s.Now.Before(s.LastInteraction) {
		return 0
	}
	return s.Now.Sub(s.LastInteraction)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:       startTime,
			LastInteraction: startTime,
			Config:          cfg,
		},
	}
}

// RecordEvaluation stores the latest engine snapshot and counts it.
func (t *Tracker) RecordEvaluation(snap engine.Snapshot) {
	t.mu.Lock()
	t.snap.Evaluation = snap
	t.snap.Evaluated = true
	t.snap.Threshold = snap.Threshold
	t.snap.Counts.Evaluations++
	if snap.HadMissingData {
		t.snap.Counts.MissingData++
	}
	t.mu.Unlock()
}

// RecordAlert counts an alert from the poll loop or a background trigger.
func (t *Tracker) RecordAlert(at time.Time, background bool) {
	t.mu.Lock()
	if background {
		t.snap.Counts.BackgroundAlerts++
	} else {
		t.snap.Counts.PollAlerts++
	}
	t.snap.LastAlert = at
	t.mu.Unlock()
}

// SetLastInteraction sets the time of the most recent user interaction.
func (t *Tracker) SetLastInteraction(at time.Time) {
	t.mu.Lock()
	t.snap.LastInteraction = at
	t.mu.Unlock()
}

// SetThreshold sets the current acceptance threshold.
func (t *Tracker) SetThreshold(p float64) {
	t.mu.Lock()
	t.snap.Threshold = p
	t.mu.Unlock()
}

// SetBackgroundRegistered records whether background observers are active.
func (t *Tracker) SetBackgroundRegistered(ok bool) {
	t.mu.Lock()
	t.snap.BackgroundRegistered = ok
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
