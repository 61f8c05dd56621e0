// Package trigger runs engine evaluations in response to health-source
// data-change notifications, in addition to the daemon's poll loop.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sweeney/drowsiness-sensor/internal/engine"
	"github.com/sweeney/drowsiness-sensor/internal/health"
)

// AlertFunc is called once for every evaluation that confirms sleep.
type AlertFunc func(ctx context.Context, snap engine.Snapshot)

// Evaluator is the part of the engine the adapter drives. The returned
// snapshot must be the one produced by that evaluation.
type Evaluator interface {
	EvaluateSnapshot(ctx context.Context) (engine.Snapshot, error)
}

// Adapter subscribes to sample notifications and evaluates on each one.
type Adapter struct {
	eval   Evaluator
	sub    health.Subscriber
	kinds  []health.Kind
	logger *slog.Logger

	mu         sync.Mutex
	registered bool
}

// New creates an Adapter. A nil kinds list means health.Kinds.
func New(eval Evaluator, sub health.Subscriber, kinds []health.Kind, logger *slog.Logger) *Adapter {
	if kinds == nil {
		kinds = health.Kinds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		eval:   eval,
		sub:    sub,
		kinds:  kinds,
		logger: logger,
	}
}

// RegisterBackgroundObservers subscribes to every kind. Calling it again after
// a successful registration is a no-op. A kind that cannot be subscribed is
// logged and skipped; an error is returned only when no kind could be.
// Evaluations triggered by notifications run under ctx.
func (a *Adapter) RegisterBackgroundObservers(ctx context.Context, alert AlertFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registered {
		return nil
	}

	var errs []error
	for _, kind := range a.kinds {
		err := a.sub.Subscribe(kind, func() { a.onChange(ctx, kind, alert) })
		if err != nil {
			a.logger.Warn("background observer not registered", "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("subscribe %s: %w", kind, err))
			continue
		}
		a.logger.Info("background observer registered", "kind", kind)
	}

	if len(a.kinds) > 0 && len(errs) == len(a.kinds) {
		return errors.Join(errs...)
	}
	a.registered = true
	return nil
}

// Registered reports whether observers have been registered.
func (a *Adapter) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registered
}

func (a *Adapter) onChange(ctx context.Context, kind health.Kind, alert AlertFunc) {
	snap, err := a.eval.EvaluateSnapshot(ctx)
	if err != nil {
		a.logger.Debug("background evaluation aborted", "kind", kind, "error", err)
		return
	}
	if !snap.Confirmed {
		return
	}
	a.logger.Info("sleep confirmed by background trigger", "kind", kind, "state", snap.State.String())
	if alert != nil {
		alert(ctx, snap)
	}
}
