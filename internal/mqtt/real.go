package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 64

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed by Flush.
type RealPublisher struct {
	client paho.Client
	logger *slog.Logger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher wraps a client created by NewClient. Register Flush as an
// OnConnect hook so buffered messages go out after a reconnect.
func NewRealPublisher(client paho.Client, bufferSize int, logger *slog.Logger) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RealPublisher{
		client: client,
		logger: logger,
		buffer: newRingBuffer(bufferSize, logger),
	}
}

// PublishAlert sends an alert with QoS 1, not retained.
func (p *RealPublisher) PublishAlert(alert Alert) error {
	payload, err := FormatAlertPayload(alert)
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicAlerts, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		p.logger.Debug("mqtt offline, message buffered", "topic", msg.topic)
		return nil
	}
	if err := p.send(msg); err != nil {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// Flush replays buffered messages in order. Messages that fail again are
// re-buffered.
func (p *RealPublisher) Flush() {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	p.logger.Info("mqtt replaying buffered messages", "count", len(pending))
	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.logger.Warn("mqtt replay failed, re-buffering", "error", err, "remaining", len(pending)-i)
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
