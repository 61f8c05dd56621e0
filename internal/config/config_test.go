package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != SourceMQTT {
		t.Errorf("Source: got %q, want mqtt", cfg.Source)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval: got %v, want 1m", cfg.PollInterval)
	}
	if cfg.Engine.MinCandidateProbability != 0.7 {
		t.Errorf("threshold: got %v, want 0.7", cfg.Engine.MinCandidateProbability)
	}
	if cfg.Engine.ConfirmationWindow != 12*time.Minute {
		t.Errorf("confirmation: got %v, want 12m", cfg.Engine.ConfirmationWindow)
	}
	if cfg.Engine.LookbackWindow != 15*time.Minute {
		t.Errorf("lookback: got %v, want 15m", cfg.Engine.LookbackWindow)
	}
	if !cfg.Background {
		t.Error("Background: want true by default")
	}
	if cfg.ButtonPin != -1 {
		t.Errorf("ButtonPin: got %d, want -1", cfg.ButtonPin)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store: got %q, want memory", cfg.Store)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://from-env:1883")
	t.Setenv("THRESHOLD", "0.8")

	cfg, err := Load([]string{"-broker", "tcp://from-flag:1883"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker != "tcp://from-flag:1883" {
		t.Errorf("Broker: got %q, want flag value", cfg.Broker)
	}
	if cfg.Engine.MinCandidateProbability != 0.8 {
		t.Errorf("threshold: got %v, want 0.8 from env", cfg.Engine.MinCandidateProbability)
	}
}

func TestLoadClampsPoll(t *testing.T) {
	tests := []struct {
		arg  string
		want time.Duration
	}{
		{"10s", time.Minute},
		{"1m", time.Minute},
		{"5m", 5 * time.Minute},
		{"10m", 10 * time.Minute},
		{"1h", 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			cfg, err := Load([]string{"-poll", tt.arg})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.PollInterval != tt.want {
				t.Errorf("got %v, want %v", cfg.PollInterval, tt.want)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown source", []string{"-source", "bluetooth"}},
		{"http source without url", []string{"-source", "http"}},
		{"unknown store", []string{"-store", "postgres"}},
		{"threshold too low", []string{"-threshold", "0.05"}},
		{"threshold too high", []string{"-threshold", "1.5"}},
		{"bad log level", []string{"-log-level", "verbose"}},
		{"bad log format", []string{"-log-format", "xml"}},
		{"negative heartbeat", []string{"-heartbeat", "-1m"}},
		{"empty broker", []string{"-broker", ""}},
		{"unknown flag", []string{"-nope"}},
		{"retention shorter than lookback", []string{"-lookback", "45m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRetentionCoversLookback(t *testing.T) {
	cfg, err := Load([]string{"-lookback", "45m", "-sample-retention", "1h"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleRetention != time.Hour || cfg.Engine.LookbackWindow != 45*time.Minute {
		t.Errorf("retention %v, lookback %v", cfg.SampleRetention, cfg.Engine.LookbackWindow)
	}

	// the HTTP bridge keeps its own history
	if _, err := Load([]string{"-source", "http", "-http-source-url", "http://bridge:9000", "-lookback", "45m"}); err != nil {
		t.Errorf("http source with long lookback: %v", err)
	}
}

func TestLoadHTTPSource(t *testing.T) {
	cfg, err := Load([]string{"-source", "http", "-http-source-url", "http://bridge:9000"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPSourceURL != "http://bridge:9000" {
		t.Errorf("HTTPSourceURL: got %q", cfg.HTTPSourceURL)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_FALSE", "no")

	if got := getEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt: got %d, want 42", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt invalid: got %d, want default 7", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat: got %v, want 0.25", got)
	}
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration: got %v, want 90s", got)
	}
	if !getEnvBool("TEST_BOOL", false) {
		t.Error("getEnvBool: want true for 1")
	}
	if getEnvBool("TEST_FALSE", true) {
		t.Error("getEnvBool: want false for no")
	}
	if got := getEnv("TEST_UNSET_VARIABLE", "fallback"); got != "fallback" {
		t.Errorf("getEnv: got %q, want fallback", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "kind", "heart_rate")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"service":"drowsiness-sensor"`) {
		t.Errorf("unexpected JSON log output: %s", out)
	}
}
