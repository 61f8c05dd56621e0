// Package store persists the latest evaluation record per monitoring session
// so that status survives restarts and can be read by other processes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/drowsiness-sensor/internal/engine"
)

// Record is the persisted form of an engine snapshot.
type Record struct {
	Session           string     `json:"session"`
	Timestamp         time.Time  `json:"timestamp"`
	State             string     `json:"state"`
	Probability       *float64   `json:"probability,omitempty"`
	HadMissingData    bool       `json:"had_missing_data"`
	Threshold         float64    `json:"threshold"`
	Confirmed         bool       `json:"confirmed"`
	PendingSince      *time.Time `json:"pending_since,omitempty"`
	HeartRateMedian   *float64   `json:"heart_rate_median,omitempty"`
	TotalEnergy       float64    `json:"total_energy_kcal"`
	InactivitySeconds float64    `json:"inactivity_seconds"`
}

// FromSnapshot converts an engine snapshot into a Record for session.
func FromSnapshot(session string, snap engine.Snapshot) Record {
	r := Record{
		Session:           session,
		Timestamp:         snap.Timestamp,
		State:             string(snap.State.Kind),
		Probability:       snap.Probability,
		HadMissingData:    snap.HadMissingData,
		Threshold:         snap.Threshold,
		Confirmed:         snap.Confirmed,
		PendingSince:      snap.PendingSince,
		TotalEnergy:       snap.Signals.TotalEnergy,
		InactivitySeconds: snap.Signals.Inactivity.Seconds(),
	}
	if r.State == "" {
		r.State = "AWAKE"
	}
	if snap.Signals.HasHeartRate {
		m := snap.Signals.HeartRateMedian
		r.HeartRateMedian = &m
	}
	return r
}

// Store persists evaluation records.
type Store interface {
	// Put replaces the latest record for r.Session.
	Put(ctx context.Context, r Record) error

	// Latest returns the latest record for session. found is false if none
	// exists; that is not an error.
	Latest(ctx context.Context, session string) (r Record, found bool, err error)

	Close() error
}

func validateSession(session string) error {
	if session == "" {
		return errors.New("session name required")
	}
	for _, c := range session {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid session name %q: only alphanumeric, hyphens, and underscores allowed", session)
		}
	}
	return nil
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

// Put stores r.
func (m *MemoryStore) Put(_ context.Context, r Record) error {
	if err := validateSession(r.Session); err != nil {
		return err
	}
	m.mu.Lock()
	m.records[r.Session] = r
	m.mu.Unlock()
	return nil
}

// Latest returns the record for session.
func (m *MemoryStore) Latest(_ context.Context, session string) (Record, bool, error) {
	if err := validateSession(session); err != nil {
		return Record{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[session]
	return r, ok, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
