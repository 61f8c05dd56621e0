package logic

import (
	"testing"
	"time"
)

const testWindow = 12 * time.Minute

func qualifying(at time.Time) Observation {
	return Observation{Time: at, State: Drowsy(0.8), Threshold: 0.7}
}

func TestNewDebouncer(t *testing.T) {
	d := NewDebouncer(testWindow)
	if d.Window() != testWindow {
		t.Errorf("window: got %v, want %v", d.Window(), testWindow)
	}
	if _, pending := d.Pending(); pending {
		t.Error("new debouncer should not be pending")
	}
}

func TestConfirmAfterWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(testWindow)

	// Every minute up to window - 1s: all pending
	for i := 0; i < 12; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		if d.Observe(qualifying(at)) {
			t.Fatalf("minute %d: confirmed before window elapsed", i)
		}
	}
	if d.Observe(qualifying(start.Add(testWindow - time.Second))) {
		t.Fatal("confirmed at window - 1s")
	}

	since, pending := d.Pending()
	if !pending {
		t.Fatal("expected pending streak")
	}
	if !since.Equal(start) {
		t.Errorf("pending since: got %v, want %v", since, start)
	}

	// Exactly at the window
	if !d.Observe(qualifying(start.Add(testWindow))) {
		t.Error("expected confirmation at window")
	}
	// Still qualifying afterwards: keeps returning true
	if !d.Observe(qualifying(start.Add(testWindow + time.Minute))) {
		t.Error("expected confirmation after window")
	}
}

func TestResetOnAwake(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(testWindow)

	d.Observe(qualifying(start))
	if !d.Observe(qualifying(start.Add(testWindow))) {
		t.Fatal("expected confirmation")
	}

	// One awake evaluation breaks the streak
	if d.Observe(Observation{Time: start.Add(13 * time.Minute), State: Awake(), Threshold: 0.7}) {
		t.Error("awake must not confirm")
	}
	if _, pending := d.Pending(); pending {
		t.Error("awake should clear pending streak")
	}

	// Full window required again
	restart := start.Add(14 * time.Minute)
	if d.Observe(qualifying(restart)) {
		t.Error("confirmed immediately after reset")
	}
	if d.Observe(qualifying(restart.Add(testWindow - time.Second))) {
		t.Error("confirmed before full window after reset")
	}
	if !d.Observe(qualifying(restart.Add(testWindow))) {
		t.Error("expected confirmation after full window")
	}
}

func TestResetBelowThreshold(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(testWindow)

	d.Observe(qualifying(start))
	got := d.Observe(Observation{Time: start.Add(time.Minute), State: Drowsy(0.6), Threshold: 0.7})
	if got {
		t.Error("below-threshold candidate must not confirm")
	}
	if _, pending := d.Pending(); pending {
		t.Error("below-threshold candidate should clear pending streak")
	}
}

func TestResetOnMissingData(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(testWindow)

	d.Observe(qualifying(start))
	obs := qualifying(start.Add(testWindow))
	obs.MissingData = true
	if d.Observe(obs) {
		t.Error("missing data must not confirm")
	}
	if _, pending := d.Pending(); pending {
		t.Error("missing data should clear pending streak")
	}
}

func TestThresholdBoundary(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(0)

	// Candidate equal to threshold qualifies
	if !d.Observe(Observation{Time: start, State: Drowsy(0.7), Threshold: 0.7}) {
		t.Error("candidate equal to threshold should qualify")
	}
}

func TestLikelyAsleepQualifies(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(testWindow)

	d.Observe(Observation{Time: start, State: LikelyAsleep(1), Threshold: 0.7})
	// Mixing drowsy and likely-asleep keeps the same streak
	d.Observe(Observation{Time: start.Add(6 * time.Minute), State: Drowsy(0.8), Threshold: 0.7})
	if !d.Observe(Observation{Time: start.Add(testWindow), State: LikelyAsleep(1), Threshold: 0.7}) {
		t.Error("mixed candidate kinds should form one streak")
	}
}

func TestThresholdChangeKeepsStreak(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	d := NewDebouncer(testWindow)

	d.Observe(Observation{Time: start, State: Drowsy(0.8), Threshold: 0.7})
	// Threshold lowered mid-streak: streak survives
	d.Observe(Observation{Time: start.Add(5 * time.Minute), State: Drowsy(0.8), Threshold: 0.5})
	since, pending := d.Pending()
	if !pending || !since.Equal(start) {
		t.Errorf("pending: got (%v, %v), want (%v, true)", since, pending, start)
	}
}
