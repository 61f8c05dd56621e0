package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/tidwall/gjson"
)

// DefaultTopicPrefix is where sample bridges publish readings. Each kind has
// its own topic: <prefix>/<kind>.
const DefaultTopicPrefix = "drowsiness/sensor/samples"

// MQTTSource receives samples pushed over MQTT by a health-platform bridge,
// keeps a rolling window per kind, and notifies subscribers on arrival.
type MQTTSource struct {
	prefix  string
	windows map[Kind]*sampleWindow
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	subscribers map[Kind][]func()
}

// NewMQTTSource creates a source retaining samples for the given duration.
// Call Attach with a connected client (typically from the client's
// OnConnect handler) to start receiving.
func NewMQTTSource(prefix string, retention time.Duration, logger *slog.Logger) *MQTTSource {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &MQTTSource{
		prefix:      prefix,
		windows:     make(map[Kind]*sampleWindow, len(Kinds)),
		logger:      logger,
		now:         time.Now,
		subscribers: map[Kind][]func(){},
	}
	for _, k := range Kinds {
		s.windows[k] = newSampleWindow(retention)
	}
	return s
}

// Topic returns the MQTT topic carrying samples of kind.
func (s *MQTTSource) Topic(kind Kind) string {
	return s.prefix + "/" + string(kind)
}

// Attach subscribes the client to every sample topic. Safe to call again
// after a reconnect.
func (s *MQTTSource) Attach(client paho.Client) error {
	for _, kind := range Kinds {
		token := client.Subscribe(s.Topic(kind), 1, func(_ paho.Client, msg paho.Message) {
			s.handle(kind, msg.Payload())
		})
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("subscribe %s: timeout", s.Topic(kind))
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.Topic(kind), err)
		}
		s.logger.Debug("subscribed to samples", "topic", s.Topic(kind))
	}
	return nil
}

// FetchSamples returns the retained samples of kind within [start, end].
func (s *MQTTSource) FetchSamples(_ context.Context, kind Kind, start, end time.Time) ([]float64, error) {
	w, ok := s.windows[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return w.between(start, end), nil
}

// Subscribe registers onChange to run after new samples of kind are stored.
func (s *MQTTSource) Subscribe(kind Kind, onChange func()) error {
	if _, ok := s.windows[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	s.mu.Lock()
	s.subscribers[kind] = append(s.subscribers[kind], onChange)
	s.mu.Unlock()
	return nil
}

func (s *MQTTSource) handle(kind Kind, payload []byte) {
	samples, err := ParseSamples(payload, s.now())
	if err != nil {
		s.logger.Warn("dropping malformed sample payload", "kind", kind, "error", err)
		return
	}
	if len(samples) == 0 {
		return
	}
	s.windows[kind].add(samples...)
	s.logger.Debug("samples received", "kind", kind, "count", len(samples))

	s.mu.Lock()
	subs := append([]func(){}, s.subscribers[kind]...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// ParseSamples decodes a sample payload. Accepted shapes:
//
//	72.5
//	{"timestamp": "2026-01-01T23:00:00Z", "value": 72.5}
//	[{"timestamp": ..., "value": ...}, ...]
//	{"samples": [{"timestamp": ..., "value": ...}, ...]}
//
// timestamp may be RFC3339 or unix seconds; a missing timestamp means
// receivedAt.
func ParseSamples(payload []byte, receivedAt time.Time) ([]Sample, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid JSON payload")
	}
	root := gjson.ParseBytes(payload)

	var items []gjson.Result
	switch {
	case root.Type == gjson.Number:
		return []Sample{{Time: receivedAt, Value: root.Float()}}, nil
	case root.IsArray():
		items = root.Array()
	case root.Get("samples").IsArray():
		items = root.Get("samples").Array()
	case root.IsObject():
		items = []gjson.Result{root}
	default:
		return nil, fmt.Errorf("unsupported payload type %s", root.Type)
	}

	out := make([]Sample, 0, len(items))
	for i, item := range items {
		v := item.Get("value")
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("sample[%d]: missing numeric value", i)
		}
		ts, err := parseTimestamp(item.Get("timestamp"), receivedAt)
		if err != nil {
			return nil, fmt.Errorf("sample[%d]: %w", i, err)
		}
		out = append(out, Sample{Time: ts, Value: v.Float()})
	}
	return out, nil
}

func parseTimestamp(r gjson.Result, fallback time.Time) (time.Time, error) {
	switch r.Type {
	case gjson.Null:
		return fallback, nil
	case gjson.Number:
		return time.Unix(r.Int(), 0).UTC(), nil
	case gjson.String:
		ts, err := time.Parse(time.RFC3339, r.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", r.String(), err)
		}
		return ts, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %s", r.Type)
	}
}
