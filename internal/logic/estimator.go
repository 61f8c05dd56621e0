package logic

import (
	"sort"
	"time"
)

// Signal thresholds.
const (
	LowHeartRateBPM       = 60.0
	VeryLowEnergyKcal     = 3.0
	InactivityRequirement = 10 * time.Minute
)

// Score weights. They sum to 1.15 so that two agreeing signals plus inactivity
// saturate the score; Score clamps the result.
const (
	WeightLowHeartRate  = 0.45
	WeightVeryLowMotion = 0.35
	WeightInactivity    = 0.35
)

// Classification thresholds.
const (
	LikelyAsleepThreshold = 0.9
	DrowsyThreshold       = 0.55
)

// Median returns the median of values, or false if values is empty.
// The input slice is not modified.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

// DeriveSignals reduces raw samples and the current inactivity to the three
// boolean signals.
func DeriveSignals(heartRates, energy []float64, inactivity time.Duration) Signals {
	return deriveSignals(heartRates, energy, inactivity, InactivityRequirement)
}

func deriveSignals(heartRates, energy []float64, inactivity, requirement time.Duration) Signals {
	var s Signals
	s.Inactivity = inactivity

	if m, ok := Median(heartRates); ok {
		s.HeartRateMedian = m
		s.HasHeartRate = true
		s.LowHeartRate = m < LowHeartRateBPM
	}

	for _, e := range energy {
		s.TotalEnergy += e
	}
	s.VeryLowMotion = len(energy) > 0 && s.TotalEnergy < VeryLowEnergyKcal
	s.SufficientInactivity = inactivity >= requirement

	return s
}

// Score combines the signals into a probability in [0,1].
func Score(s Signals) float64 {
	p := 0.0
	if s.LowHeartRate {
		p += WeightLowHeartRate
	}
	if s.VeryLowMotion {
		p += WeightVeryLowMotion
	}
	if s.SufficientInactivity {
		p += WeightInactivity
	}
	return clamp01(p)
}

// Classify maps a probability and its supporting signals to a SleepState.
// LikelyAsleep additionally requires inactivity plus at least one
// physiological signal.
func Classify(p float64, s Signals) SleepState {
	if p >= LikelyAsleepThreshold && (s.LowHeartRate || s.VeryLowMotion) && s.SufficientInactivity {
		return LikelyAsleep(p)
	}
	if p >= DrowsyThreshold {
		return Drowsy(p)
	}
	return Awake()
}

// Estimate converts a batch of samples and the inactivity duration into a
// sleep state and the raw probability. It is a pure function of its inputs.
func Estimate(heartRates, energy []float64, inactivity time.Duration) (SleepState, float64) {
	state, p, _ := EstimateWith(InactivityRequirement, heartRates, energy, inactivity)
	return state, p
}

// EstimateWith is Estimate with a custom inactivity requirement. It also
// returns the derived signals for diagnostics.
func EstimateWith(requirement time.Duration, heartRates, energy []float64, inactivity time.Duration) (SleepState, float64, Signals) {
	s := deriveSignals(heartRates, energy, inactivity, requirement)
	p := Score(s)
	return Classify(p, s), p, s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
