// Package gpio provides the physical "I'm awake" button with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"sync"
	"time"
)

// Button delivers presses to a callback until closed.
type Button interface {
	// Close releases GPIO resources. No presses are delivered afterwards.
	Close() error
}

// DefaultPin is the button input (BCM numbering).
const DefaultPin = 17

// DefaultDebounce suppresses contact bounce on the button.
const DefaultDebounce = 50 * time.Millisecond

// pressFilter drops presses that arrive within gap of the previously
// accepted one. The kernel debounce is not available on every chip.
type pressFilter struct {
	mu   sync.Mutex
	gap  time.Duration
	last time.Time
	seen bool
}

func (f *pressFilter) accept(at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen && at.Sub(f.last) < f.gap {
		return false
	}
	f.last = at
	f.seen = true
	return true
}
