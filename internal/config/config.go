// Package config parses the daemon configuration.
//
// Values come from command-line flags, falling back to environment variables
// and then defaults:
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/drowsiness-sensor/internal/engine"
	"github.com/sweeney/drowsiness-sensor/internal/gpio"
)

// Poll interval bounds. Values outside are clamped.
const (
	MinPollInterval = time.Minute
	MaxPollInterval = 10 * time.Minute
)

// Sample sources.
const (
	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)

// Store backends.
const (
	StoreNone   = "none"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full daemon configuration.
type Config struct {
	Source            string
	SampleTopicPrefix string
	SampleRetention   time.Duration
	HTTPSourceURL     string
	HTTPValuePath     string
	HTTPCacheTTL      time.Duration

	Broker       string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTBuffer   int

	PollInterval time.Duration
	Heartbeat    time.Duration
	Background   bool
	Engine       engine.Config

	Store         string
	Session       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	ButtonPin      int
	ButtonDebounce time.Duration

	HTTPAddr   string
	PrintState bool
	LogFormat  string
	LogLevel   string
}

// Load parses args (without the program name) on a fresh FlagSet.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	def := engine.DefaultConfig()
	fs := flag.NewFlagSet("drowsiness-sensor", flag.ContinueOnError)

	fs.StringVar(&cfg.Source, "source", getEnv("SOURCE", SourceMQTT), "Sample source (mqtt|http)")
	fs.StringVar(&cfg.SampleTopicPrefix, "sample-topic-prefix", getEnv("SAMPLE_TOPIC_PREFIX", "drowsiness/sensor/samples"), "MQTT topic prefix for incoming samples")
	fs.DurationVar(&cfg.SampleRetention, "sample-retention", getEnvDuration("SAMPLE_RETENTION", 30*time.Minute), "How long MQTT samples are kept")
	fs.StringVar(&cfg.HTTPSourceURL, "http-source-url", getEnv("HTTP_SOURCE_URL", ""), "Base URL of the HTTP health bridge")
	fs.StringVar(&cfg.HTTPValuePath, "http-value-path", getEnv("HTTP_VALUE_PATH", ""), "gjson path selecting sample values in HTTP responses")
	fs.DurationVar(&cfg.HTTPCacheTTL, "http-cache-ttl", getEnvDuration("HTTP_CACHE_TTL", 30*time.Second), "HTTP response cache TTL (negative disables)")

	fs.StringVar(&cfg.Broker, "broker", getEnv("MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker address")
	fs.StringVar(&cfg.MQTTClientID, "mqtt-client-id", getEnv("MQTT_CLIENT_ID", "drowsiness-sensor"), "MQTT client ID")
	fs.StringVar(&cfg.MQTTUsername, "mqtt-username", getEnv("MQTT_USERNAME", ""), "MQTT username")
	fs.StringVar(&cfg.MQTTPassword, "mqtt-password", getEnv("MQTT_PASSWORD", ""), "MQTT password")
	fs.IntVar(&cfg.MQTTBuffer, "mqtt-buffer", getEnvInt("MQTT_BUFFER", 64), "Messages kept while the broker is unreachable")

	fs.DurationVar(&cfg.PollInterval, "poll", getEnvDuration("POLL_INTERVAL", time.Minute), "Evaluation interval (clamped to 1m..10m)")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", getEnvDuration("HEARTBEAT", 15*time.Minute), "Heartbeat interval (0 to disable)")
	fs.BoolVar(&cfg.Background, "background", getEnvBool("BACKGROUND", true), "Evaluate on sample notifications as well as on the poll")
	fs.Float64Var(&cfg.Engine.MinCandidateProbability, "threshold", getEnvFloat("THRESHOLD", def.MinCandidateProbability), "Minimum candidate probability (0.1..1.0)")
	fs.DurationVar(&cfg.Engine.ConfirmationWindow, "confirmation-window", getEnvDuration("CONFIRMATION_WINDOW", def.ConfirmationWindow), "How long a candidate must persist")
	fs.DurationVar(&cfg.Engine.LookbackWindow, "lookback", getEnvDuration("LOOKBACK", def.LookbackWindow), "Sample lookback window")
	fs.DurationVar(&cfg.Engine.InactivityRequirement, "inactivity", getEnvDuration("INACTIVITY", def.InactivityRequirement), "Inactivity needed for the inactivity signal")

	fs.StringVar(&cfg.Store, "store", getEnv("STORE", StoreMemory), "Snapshot store (none|memory|redis)")
	fs.StringVar(&cfg.Session, "session", getEnv("SESSION", "default"), "Session name used as the store key")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis record TTL")

	fs.IntVar(&cfg.ButtonPin, "button-pin", getEnvInt("BUTTON_PIN", -1), fmt.Sprintf("BCM pin of the interaction button, e.g. %d (-1 to disable)", gpio.DefaultPin))
	fs.DurationVar(&cfg.ButtonDebounce, "button-debounce", getEnvDuration("BUTTON_DEBOUNCE", gpio.DefaultDebounce), "Button debounce")

	fs.StringVar(&cfg.HTTPAddr, "http", getEnv("HTTP_ADDR", ":8080"), "HTTP status address (empty to disable)")
	fs.BoolVar(&cfg.PrintState, "print-state", false, "Run one evaluation, print it and exit")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format (text|json)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and clamps the poll interval.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceMQTT:
	case SourceHTTP:
		if c.HTTPSourceURL == "" {
			return errors.New("-http-source-url is required with -source=http")
		}
	default:
		return fmt.Errorf("unknown source %q (want mqtt or http)", c.Source)
	}
	switch c.Store {
	case StoreNone, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want none, memory or redis)", c.Store)
	}
	if c.Broker == "" {
		return errors.New("-broker is required")
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must be >= 0, got %v", c.Heartbeat)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	// the MQTT buffer must still hold a full lookback window when the engine asks for it
	if c.Source == SourceMQTT && c.SampleRetention < c.Engine.LookbackWindow {
		return fmt.Errorf("sample retention %v is shorter than lookback %v", c.SampleRetention, c.Engine.LookbackWindow)
	}
	c.PollInterval = ClampPoll(c.PollInterval)
	return nil
}

// ClampPoll bounds d to [MinPollInterval, MaxPollInterval].
func ClampPoll(d time.Duration) time.Duration {
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the daemon logger writing to w.
func NewLogger(c *Config, w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if c.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "drowsiness-sensor")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
