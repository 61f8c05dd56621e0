package gpio

import (
	"sync"
	"time"
)

// FakeButton is a test double whose presses are triggered by the test.
type FakeButton struct {
	mu      sync.Mutex
	onPress func()
	filter  *pressFilter
	presses int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeButton creates a FakeButton applying the same debounce as the real one.
func NewFakeButton(debounce time.Duration, onPress func()) *FakeButton {
	return &FakeButton{
		onPress: onPress,
		filter:  &pressFilter{gap: debounce},
	}
}

// Press simulates a press at the current time.
func (f *FakeButton) Press() bool {
	return f.PressAt(time.Now())
}

// PressAt simulates a press at a given time and reports whether it was
// delivered. Presses after Close and bounced presses are dropped.
func (f *FakeButton) PressAt(at time.Time) bool {
	f.mu.Lock()
	if f.Closed || !f.filter.accept(at) {
		f.mu.Unlock()
		return false
	}
	f.presses++
	fn := f.onPress
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Presses returns the number of delivered presses.
func (f *FakeButton) Presses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presses
}

// Close stops delivering presses.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
