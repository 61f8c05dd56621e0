// Package health abstracts the health-data platform that supplies heart-rate
// and activity-energy samples. Implementations degrade to empty sample lists
// rather than failing; callers treat any error as "no samples".
package health

import (
	"context"
	"errors"
	"time"
)

// Kind identifies a sampled signal.
type Kind string

const (
	// KindHeartRate samples are in beats per minute.
	KindHeartRate Kind = "heart_rate"
	// KindActiveEnergy samples are in kilocalories.
	KindActiveEnergy Kind = "active_energy"
)

// Kinds lists every signal kind the monitor tracks.
var Kinds = []Kind{KindHeartRate, KindActiveEnergy}

var (
	// ErrUnauthorized is returned when the platform denies access to a kind.
	ErrUnauthorized = errors.New("health: not authorized")
	// ErrSubscribeUnsupported is returned by sources that cannot push
	// data-change notifications.
	ErrSubscribeUnsupported = errors.New("health: data-change notifications not supported")
	// ErrUnknownKind is returned for a Kind the source does not carry.
	ErrUnknownKind = errors.New("health: unknown sample kind")
)

// Fetcher returns the samples of one kind recorded in [start, end].
// An empty result is not an error.
type Fetcher interface {
	FetchSamples(ctx context.Context, kind Kind, start, end time.Time) ([]float64, error)
}

// Subscriber registers a callback fired whenever new samples of kind arrive.
// Registration is best-effort.
type Subscriber interface {
	Subscribe(kind Kind, onChange func()) error
}

// Source is a health platform that can both fetch and notify.
type Source interface {
	Fetcher
	Subscriber
}

// Sample is a single timestamped reading.
type Sample struct {
	Time  time.Time
	Value float64
}
