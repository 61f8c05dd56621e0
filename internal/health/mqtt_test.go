package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseSamples(t *testing.T) {
	recv := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		payload   string
		wantTimes []time.Time
		wantVals  []float64
		wantErr   bool
	}{
		{
			name:      "bare number",
			payload:   `58.5`,
			wantTimes: []time.Time{recv},
			wantVals:  []float64{58.5},
		},
		{
			name:      "single object rfc3339",
			payload:   `{"timestamp":"2026-01-01T22:55:00Z","value":57}`,
			wantTimes: []time.Time{recv.Add(-5 * time.Minute)},
			wantVals:  []float64{57},
		},
		{
			name:      "single object unix seconds",
			payload:   `{"timestamp":1767308100,"value":0.2}`,
			wantTimes: []time.Time{time.Unix(1767308100, 0).UTC()},
			wantVals:  []float64{0.2},
		},
		{
			name:      "object without timestamp",
			payload:   `{"value":61}`,
			wantTimes: []time.Time{recv},
			wantVals:  []float64{61},
		},
		{
			name:      "array",
			payload:   `[{"timestamp":"2026-01-01T22:58:00Z","value":55},{"timestamp":"2026-01-01T22:59:00Z","value":54}]`,
			wantTimes: []time.Time{recv.Add(-2 * time.Minute), recv.Add(-time.Minute)},
			wantVals:  []float64{55, 54},
		},
		{
			name:      "samples envelope",
			payload:   `{"samples":[{"value":1.5},{"value":0.5}]}`,
			wantTimes: []time.Time{recv, recv},
			wantVals:  []float64{1.5, 0.5},
		},
		{name: "invalid json", payload: `{"value":`, wantErr: true},
		{name: "missing value", payload: `{"timestamp":"2026-01-01T22:55:00Z"}`, wantErr: true},
		{name: "string value", payload: `{"value":"57"}`, wantErr: true},
		{name: "bad timestamp", payload: `{"timestamp":"yesterday","value":57}`, wantErr: true},
		{name: "string payload", payload: `"hello"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSamples([]byte(tt.payload), recv)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantVals) {
				t.Fatalf("len: got %d, want %d", len(got), len(tt.wantVals))
			}
			for i := range got {
				if got[i].Value != tt.wantVals[i] {
					t.Errorf("sample %d value: got %v, want %v", i, got[i].Value, tt.wantVals[i])
				}
				if !got[i].Time.Equal(tt.wantTimes[i]) {
					t.Errorf("sample %d time: got %v, want %v", i, got[i].Time, tt.wantTimes[i])
				}
			}
		})
	}
}

func newTestMQTTSource(now time.Time) *MQTTSource {
	s := NewMQTTSource("", 30*time.Minute, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestMQTTSourceTopic(t *testing.T) {
	s := NewMQTTSource("", time.Minute, nil)
	if got := s.Topic(KindHeartRate); got != "drowsiness/sensor/samples/heart_rate" {
		t.Errorf("topic: got %q", got)
	}
	s = NewMQTTSource("home/watch", time.Minute, nil)
	if got := s.Topic(KindActiveEnergy); got != "home/watch/active_energy" {
		t.Errorf("topic: got %q", got)
	}
}

func TestMQTTSourceStoresAndFetchesWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	s := newTestMQTTSource(now)

	s.handle(KindHeartRate, []byte(`[
		{"timestamp":"2026-01-01T22:30:00Z","value":70},
		{"timestamp":"2026-01-01T22:50:00Z","value":55},
		{"timestamp":"2026-01-01T22:59:00Z","value":53}
	]`))

	got, err := s.FetchSamples(context.Background(), KindHeartRate, now.Add(-15*time.Minute), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 55 || got[1] != 53 {
		t.Errorf("samples: got %v, want [55 53]", got)
	}

	energy, err := s.FetchSamples(context.Background(), KindActiveEnergy, now.Add(-15*time.Minute), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(energy) != 0 {
		t.Errorf("energy: got %v, want empty", energy)
	}
}

func TestMQTTSourceNotifiesSubscribers(t *testing.T) {
	now := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	s := newTestMQTTSource(now)

	var hr, energy int
	if err := s.Subscribe(KindHeartRate, func() { hr++ }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := s.Subscribe(KindActiveEnergy, func() { energy++ }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	s.handle(KindHeartRate, []byte(`{"value":58}`))
	s.handle(KindHeartRate, []byte(`not json`))
	s.handle(KindActiveEnergy, []byte(`{"samples":[]}`))

	if hr != 1 {
		t.Errorf("heart rate notifications: got %d, want 1", hr)
	}
	if energy != 0 {
		t.Errorf("energy notifications: got %d, want 0 (empty payload)", energy)
	}
}

func TestMQTTSourceUnknownKind(t *testing.T) {
	s := NewMQTTSource("", time.Minute, nil)
	if _, err := s.FetchSamples(context.Background(), Kind("steps"), time.Time{}, time.Now()); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("fetch: got %v, want ErrUnknownKind", err)
	}
	if err := s.Subscribe(Kind("steps"), func() {}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("subscribe: got %v, want ErrUnknownKind", err)
	}
}

func TestSampleWindowRetention(t *testing.T) {
	base := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	w := newSampleWindow(10 * time.Minute)

	w.add(Sample{Time: base, Value: 1}, Sample{Time: base.Add(5 * time.Minute), Value: 2})
	if w.len() != 2 {
		t.Fatalf("len: got %d, want 2", w.len())
	}

	// Newer sample pushes the oldest out of retention
	w.add(Sample{Time: base.Add(12 * time.Minute), Value: 3})
	if w.len() != 2 {
		t.Errorf("len after prune: got %d, want 2", w.len())
	}

	got := w.between(base, base.Add(time.Hour))
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("between: got %v, want [2 3]", got)
	}
}

func TestSampleWindowOutOfOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	w := newSampleWindow(time.Hour)

	w.add(Sample{Time: base.Add(2 * time.Minute), Value: 2})
	w.add(Sample{Time: base, Value: 1})
	w.add(Sample{Time: base.Add(time.Minute), Value: 1.5})

	got := w.between(base, base.Add(2*time.Minute))
	want := []float64{1, 1.5, 2}
	if len(got) != len(want) {
		t.Fatalf("between: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("between[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}
