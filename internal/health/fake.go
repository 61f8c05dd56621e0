package health

import (
	"context"
	"sync"
	"time"
)

// FakeSource is a test double returning scripted samples per kind.
type FakeSource struct {
	mu sync.Mutex

	// Samples maps each kind to the values FetchSamples returns.
	Samples map[Kind][]float64

	// Errors maps each kind to an error FetchSamples returns instead.
	Errors map[Kind]error

	// SubscribeErrors maps each kind to an error Subscribe returns.
	SubscribeErrors map[Kind]error

	// Fetches counts FetchSamples calls per kind.
	Fetches map[Kind]int

	// Block, if set, makes FetchSamples wait until it is closed or the
	// context is cancelled.
	Block chan struct{}

	// LastWindow records the most recent [start, end] requested.
	LastStart, LastEnd time.Time

	subscribers map[Kind][]func()
}

// NewFakeSource creates an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Samples:         map[Kind][]float64{},
		Errors:          map[Kind]error{},
		SubscribeErrors: map[Kind]error{},
		Fetches:         map[Kind]int{},
		subscribers:     map[Kind][]func(){},
	}
}

// Set replaces the scripted samples for kind.
func (f *FakeSource) Set(kind Kind, values ...float64) {
	f.mu.Lock()
	f.Samples[kind] = values
	f.mu.Unlock()
}

// FetchSamples returns the scripted samples for kind.
func (f *FakeSource) FetchSamples(ctx context.Context, kind Kind, start, end time.Time) ([]float64, error) {
	f.mu.Lock()
	f.Fetches[kind]++
	f.LastStart, f.LastEnd = start, end
	block := f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[kind]; err != nil {
		return nil, err
	}
	out := make([]float64, len(f.Samples[kind]))
	copy(out, f.Samples[kind])
	return out, nil
}

// Subscribe records the callback for kind.
func (f *FakeSource) Subscribe(kind Kind, onChange func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SubscribeErrors[kind]; err != nil {
		return err
	}
	f.subscribers[kind] = append(f.subscribers[kind], onChange)
	return nil
}

// Notify fires every callback registered for kind, synchronously.
func (f *FakeSource) Notify(kind Kind) {
	f.mu.Lock()
	subs := append([]func(){}, f.subscribers[kind]...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Subscribers returns the number of callbacks registered for kind.
func (f *FakeSource) Subscribers(kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[kind])
}

// FetchCount returns the number of FetchSamples calls for kind so far.
func (f *FakeSource) FetchCount(kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fetches[kind]
}
