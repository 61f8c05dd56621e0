// Package engine runs drowsiness evaluations: it fetches recent samples from
// the health source, estimates a sleep state, and debounces candidate states
// into a stable alert decision.
//
// One Engine is shared by every invocation path (the poll loop and background
// data-change triggers) so they agree on the confirmation streak.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/drowsiness-sensor/internal/health"
	"github.com/sweeney/drowsiness-sensor/internal/inactivity"
	"github.com/sweeney/drowsiness-sensor/internal/logic"
	"github.com/sweeney/drowsiness-sensor/internal/metrics"
)

// Probability threshold bounds accepted by SetMinCandidateProbability.
const (
	MinThreshold = 0.1
	MaxThreshold = 1.0
)

// Config holds the tunables of the decision engine.
type Config struct {
	// MinCandidateProbability is the acceptance threshold for a candidate state.
	MinCandidateProbability float64
	// ConfirmationWindow is how long a qualifying streak must last.
	ConfirmationWindow time.Duration
	// LookbackWindow is how far back samples are fetched.
	LookbackWindow time.Duration
	// InactivityRequirement is the inactivity needed for the inactivity signal.
	InactivityRequirement time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		MinCandidateProbability: 0.7,
		ConfirmationWindow:      12 * time.Minute,
		LookbackWindow:          15 * time.Minute,
		InactivityRequirement:   logic.InactivityRequirement,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if math.IsNaN(c.MinCandidateProbability) || c.MinCandidateProbability < MinThreshold || c.MinCandidateProbability > MaxThreshold {
		return fmt.Errorf("min candidate probability %v out of range [%v, %v]", c.MinCandidateProbability, MinThreshold, MaxThreshold)
	}
	if c.ConfirmationWindow < 0 {
		return fmt.Errorf("confirmation window must be >= 0, got %v", c.ConfirmationWindow)
	}
	if c.LookbackWindow <= 0 {
		return fmt.Errorf("lookback window must be > 0, got %v", c.LookbackWindow)
	}
	if c.InactivityRequirement <= 0 {
		return fmt.Errorf("inactivity requirement must be > 0, got %v", c.InactivityRequirement)
	}
	return nil
}

// Snapshot describes the most recent evaluation. It is a value type; each
// evaluation replaces it wholesale.
type Snapshot struct {
	Timestamp time.Time
	// Probability is nil when neither signal stream had samples.
	Probability    *float64
	State          logic.SleepState
	HadMissingData bool
	Signals        logic.Signals
	Threshold      float64
	// Confirmed is the decision returned by the evaluation.
	Confirmed bool
	// PendingSince is the start of the qualifying streak, if one is running.
	PendingSince *time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is the drowsiness decision engine.
type Engine struct {
	source             health.Fetcher
	tracker            *inactivity.Tracker
	lookback           time.Duration
	inactivityRequired time.Duration
	now                func() time.Time
	logger             *slog.Logger
	metrics            *metrics.Metrics

	// evalSlot serializes evaluations; debouncer is only touched while it is
	// held. A channel lets waiters give up when their context ends.
	evalSlot  chan struct{}
	debouncer *logic.Debouncer

	mu        sync.RWMutex
	threshold float64
	snapshot  Snapshot
	hasSnap   bool
}

// New creates an Engine. A nil tracker gets a fresh one on the engine's clock.
func New(cfg Config, source health.Fetcher, tracker *inactivity.Tracker, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, errors.New("engine: health source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		source:             source,
		lookback:           cfg.LookbackWindow,
		inactivityRequired: cfg.InactivityRequirement,
		now:                time.Now,
		evalSlot:           make(chan struct{}, 1),
		debouncer:          logic.NewDebouncer(cfg.ConfirmationWindow),
		threshold:          cfg.MinCandidateProbability,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if tracker == nil {
		tracker = inactivity.New(e.now)
	}
	e.tracker = tracker
	return e, nil
}

// Evaluate runs one evaluation and reports whether sleep is confirmed.
// Missing or failed sample fetches are not errors; the only error returned is
// ctx's, in which case neither the streak nor the snapshot are changed.
func (e *Engine) Evaluate(ctx context.Context) (bool, error) {
	snap, err := e.EvaluateSnapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.Confirmed, nil
}

// EvaluateSnapshot is Evaluate returning the snapshot the evaluation produced.
// Callers that act on the decision should use it rather than LastSnapshot,
// which may already hold a later evaluation.
func (e *Engine) EvaluateSnapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	select {
	case e.evalSlot <- struct{}{}:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	defer func() { <-e.evalSlot }()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	started := time.Now()
	now := e.now()
	windowStart := now.Add(-e.lookback)

	var heartRates, energy []float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		heartRates = e.fetch(gctx, health.KindHeartRate, windowStart, now)
		return nil
	})
	g.Go(func() error {
		energy = e.fetch(gctx, health.KindActiveEnergy, windowStart, now)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.logger.Debug("evaluation cancelled", "error", err)
		return Snapshot{}, err
	}

	missing := len(heartRates) == 0 && len(energy) == 0
	idle := e.tracker.CurrentInactivityDuration()
	state, p, signals := logic.EstimateWith(e.inactivityRequired, heartRates, energy, idle)
	threshold := e.MinCandidateProbability()

	confirmed := e.debouncer.Observe(logic.Observation{
		Time:        now,
		State:       state,
		MissingData: missing,
		Threshold:   threshold,
	})

	snap := Snapshot{
		Timestamp:      now,
		State:          state,
		HadMissingData: missing,
		Signals:        signals,
		Threshold:      threshold,
		Confirmed:      confirmed,
	}
	if !missing {
		snap.Probability = &p
	}
	if since, ok := e.debouncer.Pending(); ok {
		snap.PendingSince = &since
	}

	e.mu.Lock()
	e.snapshot = snap
	e.hasSnap = true
	e.mu.Unlock()

	e.metrics.ObserveEvaluation(time.Since(started), snap.Probability, idle, missing)
	e.logger.Debug("evaluation complete",
		"state", state.String(),
		"probability", p,
		"heart_rate_samples", len(heartRates),
		"energy_samples", len(energy),
		"inactivity", idle,
		"missing_data", missing,
		"confirmed", confirmed,
	)
	if missing {
		e.logger.Info("no health samples in lookback window", "lookback", e.lookback)
	}

	return snap, nil
}

// fetch degrades every failure to an empty sample list.
func (e *Engine) fetch(ctx context.Context, kind health.Kind, start, end time.Time) []float64 {
	values, err := e.source.FetchSamples(ctx, kind, start, end)
	if err != nil {
		if ctx.Err() == nil {
			e.metrics.FetchError(string(kind))
			e.logger.Warn("sample fetch failed, treating as no samples", "kind", kind, "error", err)
		}
		return nil
	}
	return values
}

// NoteInteraction records a user interaction.
func (e *Engine) NoteInteraction() {
	e.tracker.NoteInteraction()
}

// Inactivity returns the current time since the last interaction.
func (e *Engine) Inactivity() time.Duration {
	return e.tracker.CurrentInactivityDuration()
}

// LastInteraction returns the time of the last recorded interaction.
func (e *Engine) LastInteraction() time.Time {
	return e.tracker.LastInteraction()
}

// SetMinCandidateProbability changes the acceptance threshold, clamped to
// [MinThreshold, MaxThreshold]. It applies from the next evaluation and does
// not reset a running streak. NaN is ignored.
func (e *Engine) SetMinCandidateProbability(p float64) {
	if math.IsNaN(p) {
		return
	}
	p = math.Max(MinThreshold, math.Min(MaxThreshold, p))

	e.mu.Lock()
	changed := e.threshold != p
	e.threshold = p
	e.mu.Unlock()

	if changed {
		e.logger.Info("min candidate probability updated", "threshold", p)
	}
}

// MinCandidateProbability returns the current acceptance threshold.
func (e *Engine) MinCandidateProbability() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threshold
}

// LastSnapshot returns the most recent evaluation, if any.
func (e *Engine) LastSnapshot() (Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot, e.hasSnap
}

// ConfirmationWindow returns the configured confirmation window.
func (e *Engine) ConfirmationWindow() time.Duration {
	return e.debouncer.Window()
}
