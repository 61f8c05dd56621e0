//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(pin int, debounce time.Duration, onPress func()) (*RealButton, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Close is a no-op on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}
