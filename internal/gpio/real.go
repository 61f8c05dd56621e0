//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealButton watches a GPIO line wired to a normally-open switch to ground.
type RealButton struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	filter *pressFilter

	mu      sync.Mutex
	onPress func()
}

// NewRealButton requests pin as an input with pull-up and calls onPress on
// every falling edge, debounced by debounce.
func NewRealButton(pin int, debounce time.Duration, onPress func()) (*RealButton, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealButton{
		chip:    chip,
		filter:  &pressFilter{gap: debounce},
		onPress: onPress,
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(b.handle),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line
	return b, nil
}

func (b *RealButton) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	if !b.filter.accept(time.Now()) {
		return
	}
	b.mu.Lock()
	fn := b.onPress
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close releases GPIO resources.
// The line is reconfigured to input with pull-down (Pi boot default) first.
func (b *RealButton) Close() error {
	b.mu.Lock()
	b.onPress = nil
	b.mu.Unlock()

	var errs []error
	if b.line != nil {
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
