// Package inactivity tracks the time since the user last interacted with the device.
package inactivity

import (
	"sync"
	"time"
)

// Tracker records the last interaction timestamp behind an RWMutex.
// Safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	last time.Time
	now  func() time.Time
}

// New creates a Tracker. The last interaction is set to the current time so a
// freshly started monitor never looks long inactive. A nil clock uses time.Now.
func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{last: now(), now: now}
}

// NoteInteraction records an interaction at the current time.
func (t *Tracker) NoteInteraction() {
	ts := t.now()
	t.mu.Lock()
	if ts.After(t.last) {
		t.last = ts
	}
	t.mu.Unlock()
}

// CurrentInactivityDuration returns the time since the last interaction.
// Never negative.
func (t *Tracker) CurrentInactivityDuration() time.Duration {
	t.mu.RLock()
	last := t.last
	t.mu.RUnlock()

	d := t.now().Sub(last)
	if d < 0 {
		return 0
	}
	return d
}

// LastInteraction returns the timestamp of the last recorded interaction.
func (t *Tracker) LastInteraction() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}
