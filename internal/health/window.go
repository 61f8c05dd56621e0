package health

import (
	"sort"
	"sync"
	"time"
)

// sampleWindow keeps recent samples for one kind, ordered by time, and drops
// anything older than the retention period.
// Safe for concurrent use.
type sampleWindow struct {
	mu        sync.RWMutex
	samples   []Sample
	retention time.Duration
}

func newSampleWindow(retention time.Duration) *sampleWindow {
	return &sampleWindow{retention: retention}
}

// add inserts samples and prunes relative to the newest sample seen.
func (w *sampleWindow) add(in ...Sample) {
	if len(in) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, in...)
	sort.SliceStable(w.samples, func(i, j int) bool {
		return w.samples[i].Time.Before(w.samples[j].Time)
	})

	if w.retention <= 0 {
		return
	}
	cutoff := w.samples[len(w.samples)-1].Time.Add(-w.retention)
	i := sort.Search(len(w.samples), func(i int) bool {
		return !w.samples[i].Time.Before(cutoff)
	})
	if i > 0 {
		w.samples = append(w.samples[:0:0], w.samples[i:]...)
	}
}

// between returns the values recorded in [start, end].
func (w *sampleWindow) between(start, end time.Time) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []float64
	for _, s := range w.samples {
		if s.Time.Before(start) {
			continue
		}
		if s.Time.After(end) {
			break
		}
		out = append(out, s.Value)
	}
	return out
}

func (w *sampleWindow) len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}
