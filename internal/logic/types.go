// Package logic contains the pure drowsiness decision logic.
// This package has NO external dependencies (no MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// StateKind names the qualitative sleep state.
type StateKind string

const (
	StateAwake        StateKind = "AWAKE"
	StateDrowsy       StateKind = "DROWSY"
	StateLikelyAsleep StateKind = "LIKELY_ASLEEP"
)

// SleepState is the outcome of one estimate. Probability is only meaningful
// for the Drowsy and LikelyAsleep kinds.
type SleepState struct {
	Kind        StateKind
	Probability float64
}

// Awake returns the non-candidate state.
func Awake() SleepState {
	return SleepState{Kind: StateAwake}
}

// Drowsy returns a drowsy state carrying probability p.
func Drowsy(p float64) SleepState {
	return SleepState{Kind: StateDrowsy, Probability: p}
}

// LikelyAsleep returns a likely-asleep state carrying probability p.
func LikelyAsleep(p float64) SleepState {
	return SleepState{Kind: StateLikelyAsleep, Probability: p}
}

// Candidate returns the state's probability if it is a sleep candidate
// (Drowsy or LikelyAsleep).
func (s SleepState) Candidate() (float64, bool) {
	switch s.Kind {
	case StateDrowsy, StateLikelyAsleep:
		return s.Probability, true
	default:
		return 0, false
	}
}

func (s SleepState) String() string {
	switch s.Kind {
	case StateDrowsy, StateLikelyAsleep:
		return fmt.Sprintf("%s(%.2f)", s.Kind, s.Probability)
	case "":
		return string(StateAwake)
	default:
		return string(s.Kind)
	}
}

// Signals are the three boolean inputs to the probability score, plus the
// aggregates they were derived from.
type Signals struct {
	LowHeartRate         bool
	VeryLowMotion        bool
	SufficientInactivity bool

	// HeartRateMedian is only valid when HasHeartRate is true.
	HeartRateMedian float64
	HasHeartRate    bool
	TotalEnergy     float64
	Inactivity      time.Duration
}

// Observation is one input to the Debouncer.
type Observation struct {
	Time        time.Time
	State       SleepState
	MissingData bool
	// Threshold is the minimum candidate probability that may start or
	// continue a streak.
	Threshold float64
}
