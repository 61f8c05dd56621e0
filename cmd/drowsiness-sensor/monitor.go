package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweeney/drowsiness-sensor/internal/engine"
	"github.com/sweeney/drowsiness-sensor/internal/metrics"
	"github.com/sweeney/drowsiness-sensor/internal/mqtt"
	"github.com/sweeney/drowsiness-sensor/internal/status"
	"github.com/sweeney/drowsiness-sensor/internal/store"
)

// storeTimeout bounds a single snapshot write.
const storeTimeout = 3 * time.Second

// monitor wraps the engine with the daemon's side effects: status tracking,
// snapshot persistence and alert dispatch. Both the poll loop and the
// background trigger adapter evaluate through it.
type monitor struct {
	eng       *engine.Engine
	publisher mqtt.Publisher
	status    *status.Tracker
	store     store.Store // nil disables persistence
	session   string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// EvaluateSnapshot runs one engine evaluation and records the snapshot it
// produced.
func (m *monitor) EvaluateSnapshot(ctx context.Context) (engine.Snapshot, error) {
	snap, err := m.eng.EvaluateSnapshot(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}

	m.status.RecordEvaluation(snap)
	m.status.SetLastInteraction(m.eng.LastInteraction())

	if m.store != nil {
		sctx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := m.store.Put(sctx, store.FromSnapshot(m.session, snap)); err != nil {
			m.logger.Warn("snapshot not persisted", "error", err)
		}
		cancel()
	}
	return snap, nil
}

// alert publishes a confirmed-sleep alert. Publish failures are logged only.
func (m *monitor) alert(snap engine.Snapshot, source string) {
	a := mqtt.NewAlert(snap, source)
	m.metrics.Alert(source)
	m.status.RecordAlert(snap.Timestamp, source == mqtt.SourceBackground)
	m.logger.Info("sleep confirmed",
		"id", a.ID,
		"state", a.State,
		"probability", a.Probability,
		"pending_since", a.PendingSince,
		"source", source,
	)
	if err := m.publisher.PublishAlert(a); err != nil {
		m.logger.Warn("alert publish failed", "id", a.ID, "error", err)
	}
}

// backgroundAlert adapts alert to the trigger package's callback.
func (m *monitor) backgroundAlert(_ context.Context, snap engine.Snapshot) {
	m.alert(snap, mqtt.SourceBackground)
}

// noteInteraction records a user interaction from any input.
func (m *monitor) noteInteraction(via string) {
	m.eng.NoteInteraction()
	m.status.SetLastInteraction(m.eng.LastInteraction())
	m.logger.Info("interaction recorded", "via", via)
}

// publishSystem publishes a lifecycle event carrying the full status snapshot.
func (m *monitor) publishSystem(mqttStatus mqtt.ConnectionStatus, at time.Time, event, reason string, retained bool) {
	if mqttStatus != nil {
		m.status.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := m.status.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := m.publisher.PublishSystem(ev); err != nil {
		m.logger.Warn("system event not published", "event", event, "error", err)
		return
	}
	m.logger.Info("published system event", "event", event)
}
