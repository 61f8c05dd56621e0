// Command drowsiness-sensor evaluates health samples on a poll loop and on
// data-change notifications, and publishes confirmed-sleep alerts to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/drowsiness-sensor/internal/config"
	"github.com/sweeney/drowsiness-sensor/internal/engine"
	"github.com/sweeney/drowsiness-sensor/internal/gpio"
	"github.com/sweeney/drowsiness-sensor/internal/health"
	"github.com/sweeney/drowsiness-sensor/internal/inactivity"
	"github.com/sweeney/drowsiness-sensor/internal/logic"
	"github.com/sweeney/drowsiness-sensor/internal/metrics"
	"github.com/sweeney/drowsiness-sensor/internal/mqtt"
	"github.com/sweeney/drowsiness-sensor/internal/status"
	"github.com/sweeney/drowsiness-sensor/internal/store"
	"github.com/sweeney/drowsiness-sensor/internal/trigger"
	"github.com/sweeney/drowsiness-sensor/internal/web"
)

const (
	connectTimeout  = 10 * time.Second
	retainedWait    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "drowsiness-sensor: %v\n", err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Sample source
	var (
		source     health.Source
		mqttSource *health.MQTTSource
	)
	switch cfg.Source {
	case config.SourceHTTP:
		src, err := health.NewHTTPSource(health.HTTPConfig{
			BaseURL:   cfg.HTTPSourceURL,
			ValuePath: cfg.HTTPValuePath,
			CacheTTL:  cfg.HTTPCacheTTL,
		}, logger)
		if err != nil {
			return fmt.Errorf("init http source: %w", err)
		}
		source = src
	default:
		mqttSource = health.NewMQTTSource(cfg.SampleTopicPrefix, cfg.SampleRetention, logger)
		source = mqttSource
	}

	startTime := time.Now()
	eng, err := engine.New(cfg.Engine, source, inactivity.New(time.Now),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(startTime, status.Config{
		Source:         cfg.Source,
		PollMs:         cfg.PollInterval.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		ConfirmationMs: cfg.Engine.ConfirmationWindow.Milliseconds(),
		LookbackMs:     cfg.Engine.LookbackWindow.Milliseconds(),
		Broker:         cfg.Broker,
		HTTPAddr:       cfg.HTTPAddr,
		Store:          cfg.Store,
		Session:        cfg.Session,
	})
	tracker.SetThreshold(eng.MinCandidateProbability())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Snapshot store
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		restoreLatest(st, cfg.Session, logger)
	}

	// MQTT client shared by the sample source, the interaction topic and the publisher
	var publisher *mqtt.RealPublisher
	mon := &monitor{
		eng:     eng,
		status:  tracker,
		store:   st,
		session: cfg.Session,
		metrics: m,
		logger:  logger,
	}

	hooks := []func(paho.Client){
		func(c paho.Client) {
			if err := mqtt.SubscribeInteraction(c, func() { mon.noteInteraction("mqtt") }); err != nil {
				logger.Warn("interaction topic not subscribed", "error", err)
			}
		},
		func(paho.Client) {
			if publisher != nil {
				publisher.Flush()
			}
		},
	}
	if mqttSource != nil {
		hooks = append([]func(paho.Client){func(c paho.Client) {
			if err := mqttSource.Attach(c); err != nil {
				logger.Warn("sample topics not subscribed", "error", err)
			}
		}}, hooks...)
	}

	client, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:    cfg.Broker,
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		OnConnect: hooks,
	}, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	publisher = mqtt.NewRealPublisher(client, cfg.MQTTBuffer, logger)
	mon.publisher = publisher
	defer publisher.Close()

	if err := mqtt.Connect(client, connectTimeout); err != nil {
		if !errors.Is(err, mqtt.ErrConnectTimeout) {
			return fmt.Errorf("connect mqtt: %w", err)
		}
		logger.Warn("mqtt broker unreachable, retrying in background", "broker", cfg.Broker)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Print state mode
	if cfg.PrintState {
		if mqttSource != nil {
			time.Sleep(retainedWait)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PollInterval)
		defer cancel()
		snap, err := eng.EvaluateSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		printState(os.Stdout, snap, eng.Inactivity())
		return nil
	}

	// Interaction button
	if cfg.ButtonPin >= 0 {
		button, err := gpio.NewRealButton(cfg.ButtonPin, cfg.ButtonDebounce, func() { mon.noteInteraction("button") })
		if err != nil {
			logger.Warn("interaction button unavailable", "pin", cfg.ButtonPin, "error", err)
		} else {
			defer button.Close()
			logger.Info("interaction button ready", "pin", cfg.ButtonPin)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background observers
	if cfg.Background {
		adapter := trigger.New(mon, source, nil, logger)
		if err := adapter.RegisterBackgroundObservers(ctx, mon.backgroundAlert); err != nil {
			logger.Warn("background evaluation disabled, poll only", "error", err)
		}
		tracker.SetBackgroundRegistered(adapter.Registered())
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn("startup event not published", "error", err)
	} else {
		logger.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker,
			web.WithMetrics(reg),
			web.WithInteraction(func() { mon.noteInteraction("http") }),
			web.WithLogger(logger),
		)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	logger.Info("started",
		"source", cfg.Source,
		"poll", cfg.PollInterval,
		"threshold", eng.MinCandidateProbability(),
		"confirmation_window", cfg.Engine.ConfirmationWindow,
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, mon, publisher, cfg.PollInterval, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// runLoop evaluates on every tick until a signal arrives. Each evaluation is
// bounded by the poll interval so a stalled source cannot pile up ticks.
func runLoop(ctx context.Context, mon *monitor, mqttStatus mqtt.ConnectionStatus, poll, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			mon.logger.Info("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			mon.publishSystem(mqttStatus, now(), "SHUTDOWN", signalName, true)
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			t := now()
			ectx, cancel := context.WithTimeout(ctx, poll)
			snap, err := mon.EvaluateSnapshot(ectx)
			cancel()
			if err != nil {
				mon.logger.Warn("evaluation abandoned", "error", err)
				continue
			}
			if snap.Confirmed {
				mon.alert(snap, mqtt.SourcePoll)
			}

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				if net := readNetworkInfo(); net != nil {
					mon.status.SetNetwork(net)
				}
				mon.publishSystem(mqttStatus, t, "HEARTBEAT", "", false)
			}

			if mqttStatus != nil {
				mon.status.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreRedis:
		rs, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		return rs, nil
	}
	return nil, nil
}

// restoreLatest logs the last persisted evaluation of the session.
func restoreLatest(st store.Store, session string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	rec, ok, err := st.Latest(ctx, session)
	if err != nil {
		logger.Warn("previous snapshot unavailable", "session", session, "error", err)
		return
	}
	if ok {
		logger.Info("previous snapshot",
			"session", session,
			"timestamp", rec.Timestamp,
			"state", rec.State,
			"confirmed", rec.Confirmed,
		)
	}
}

// printState writes a one-line colored summary of snap.
func printState(w io.Writer, snap engine.Snapshot, idle time.Duration) {
	c := color.New(color.FgGreen)
	switch snap.State.Kind {
	case logic.StateDrowsy:
		c = color.New(color.FgYellow)
	case logic.StateLikelyAsleep:
		c = color.New(color.FgRed, color.Bold)
	}

	prob := "n/a"
	if snap.Probability != nil {
		prob = fmt.Sprintf("%.2f", *snap.Probability)
	}
	fmt.Fprintf(w, "State: %s, Probability: %s, Inactivity: %s, Confirmed: %t\n",
		c.Sprint(snap.State.Kind), prob, idle.Truncate(time.Second), snap.Confirmed)
	if snap.HadMissingData {
		color.New(color.FgHiBlack).Fprintln(w, "no health samples in lookback window")
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
