package inactivity

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestNewStartsAtZeroInactivity(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)}
	tr := New(clk.Now)

	if got := tr.CurrentInactivityDuration(); got != 0 {
		t.Errorf("inactivity: got %v, want 0", got)
	}
	if !tr.LastInteraction().Equal(clk.Now()) {
		t.Errorf("last interaction: got %v, want %v", tr.LastInteraction(), clk.Now())
	}
}

func TestInactivityGrowsAndResets(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)}
	tr := New(clk.Now)

	clk.Advance(11 * time.Minute)
	if got := tr.CurrentInactivityDuration(); got != 11*time.Minute {
		t.Errorf("inactivity: got %v, want 11m", got)
	}

	tr.NoteInteraction()
	if got := tr.CurrentInactivityDuration(); got != 0 {
		t.Errorf("after interaction: got %v, want 0", got)
	}

	clk.Advance(30 * time.Second)
	if got := tr.CurrentInactivityDuration(); got != 30*time.Second {
		t.Errorf("inactivity: got %v, want 30s", got)
	}
}

func TestClockStepBackwardsIsNonNegative(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)}
	tr := New(clk.Now)

	clk.Advance(-5 * time.Minute)
	if got := tr.CurrentInactivityDuration(); got != 0 {
		t.Errorf("inactivity: got %v, want 0", got)
	}

	// An interaction at an earlier clock reading does not move last backwards
	last := tr.LastInteraction()
	tr.NoteInteraction()
	if !tr.LastInteraction().Equal(last) {
		t.Errorf("last interaction moved backwards: got %v, want %v", tr.LastInteraction(), last)
	}
}

func TestNilClockUsesWallTime(t *testing.T) {
	tr := New(nil)
	if got := tr.CurrentInactivityDuration(); got < 0 || got > time.Second {
		t.Errorf("inactivity: got %v, want ~0", got)
	}
}

func TestConcurrentInteractionsAndReads(t *testing.T) {
	tr := New(nil)

	const writers = 16
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				tr.NoteInteraction()
			}
		}()
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if d := tr.CurrentInactivityDuration(); d < 0 {
				t.Errorf("negative inactivity: %v", d)
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone
}
