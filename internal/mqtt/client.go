package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrConnectTimeout is returned by Connect when the first connection attempt
// does not finish in time. The client keeps retrying in the background.
var ErrConnectTimeout = errors.New("mqtt: connection timeout")

// ClientConfig configures the shared broker connection.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// OnConnect hooks run on every (re)connection, in order.
	OnConnect []func(paho.Client)
}

// NewClient builds a paho client with auto-reconnect and a retained OFFLINE
// last-will on TopicSystem. It does not connect. Message handlers run
// concurrently so they may publish.
func NewClient(cfg ClientConfig, logger *slog.Logger) (paho.Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "drowsiness-sensor"
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "connection lost"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			logger.Info("mqtt connected", "broker", cfg.Broker)
			for _, hook := range cfg.OnConnect {
				hook(c)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			logger.Debug("mqtt reconnecting", "broker", cfg.Broker)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	return paho.NewClient(opts), nil
}

// Connect starts the connection and waits up to timeout for the first attempt.
func Connect(client paho.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// SubscribeInteraction calls onInteraction for every message on
// TopicInteraction. The payload is ignored.
func SubscribeInteraction(client paho.Client, onInteraction func()) error {
	token := client.Subscribe(TopicInteraction, 1, func(_ paho.Client, _ paho.Message) {
		onInteraction()
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", TopicInteraction)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicInteraction, err)
	}
	return nil
}
