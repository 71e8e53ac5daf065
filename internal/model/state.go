package model

import (
	"strconv"
	"time"
)

// DerivedMetric is the UI-ready form of a reading. It is a value type; a new
// reading always produces a new DerivedMetric.
type DerivedMetric struct {
	Value float64 // display value
	Ratio float64 // Value normalized against the configured maximum, [0, 100]
}

// Width returns the ratio as a CSS width percentage, e.g. "42%".
func (m DerivedMetric) Width() string {
	return strconv.FormatFloat(m.Ratio, 'f', -1, 64) + "%"
}

// Display returns the value formatted for display.
func (m DerivedMetric) Display() string {
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// Phase tags a FetchState.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// FetchState describes where a subscription is in its lifecycle.
// Metric is only meaningful when Phase is PhaseReady, Err only when PhaseFailed.
type FetchState struct {
	Phase  Phase
	Metric DerivedMetric
	Err    ErrorInfo
	Raw    string    // source text of the reading, Ready only
	Block  uint64    // block that triggered the transition, 0 if unknown
	At     time.Time // when the transition happened
}

// IdleState returns the initial (and post-release) state.
func IdleState() FetchState {
	return FetchState{Phase: PhaseIdle, At: time.Now()}
}

// LoadingState returns the state entered on subscribe.
func LoadingState() FetchState {
	return FetchState{Phase: PhaseLoading, At: time.Now()}
}

// ReadyState returns a settled state carrying m.
func ReadyState(m DerivedMetric, block uint64) FetchState {
	return FetchState{Phase: PhaseReady, Metric: m, Block: block, At: time.Now()}
}

// FailedState returns a settled error state.
func FailedState(info ErrorInfo) FetchState {
	return FetchState{Phase: PhaseFailed, Err: info, At: time.Now()}
}

// Settled reports whether the state is Ready or Failed.
func (s FetchState) Settled() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseFailed
}
