package logic

import "time"

// Debouncer turns a stream of per-evaluation sleep states into a stable
// confirmation signal. A streak of qualifying candidates must last at least
// the confirmation window before Observe returns true.
type Debouncer struct {
	window time.Duration
	// Time when the current qualifying streak was first observed
	provisionalStart time.Time
	pending          bool
}

// NewDebouncer creates a debouncer with the given confirmation window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Observe feeds one evaluation into the debouncer and reports whether sleep is
// confirmed at in.Time. Any non-qualifying observation breaks the streak.
func (d *Debouncer) Observe(in Observation) bool {
	p, ok := in.State.Candidate()
	if !ok || p < in.Threshold || in.MissingData {
		d.Reset()
		return false
	}

	if !d.pending {
		d.provisionalStart = in.Time
		d.pending = true
	}

	return in.Time.Sub(d.provisionalStart) >= d.window
}

// Pending returns the start of the current qualifying streak, if any.
func (d *Debouncer) Pending() (time.Time, bool) {
	return d.provisionalStart, d.pending
}

// Reset clears any in-progress streak.
func (d *Debouncer) Reset() {
	d.provisionalStart = time.Time{}
	d.pending = false
}

// Window returns the confirmation window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}
