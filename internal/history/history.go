// Package history provides the append-only, step-indexed attribute series
// shared by every stateful entity in the simulation. An attribute's current
// value is always the last element; alignment across entities is done by
// absolute step number, never by slice position, because entities enter the
// simulation at different steps.
package history

import "fmt"

// Series records one time-varying attribute. The zero value is an empty
// series; most callers construct one with New at the owning entity's
// creation step.
type Series[T any] struct {
	born int // absolute step of the first sample
	vals []T
}

// New creates a series whose first sample is recorded at the given step.
func New[T any](step int, v T) Series[T] {
	return Series[T]{born: step, vals: []T{v}}
}

// Len returns the number of recorded samples.
func (s *Series[T]) Len() int {
	return len(s.vals)
}

// Born returns the step at which the first sample was recorded.
func (s *Series[T]) Born() int {
	return s.born
}

// LastStep returns the step of the most recent sample.
// Panics on an empty series: querying state that was never recorded is a
// sequencing bug upstream, not a condition to default away.
func (s *Series[T]) LastStep() int {
	if len(s.vals) == 0 {
		panic("history: LastStep on empty series")
	}
	return s.born + len(s.vals) - 1
}

// Current returns the most recent sample. Panics on an empty series.
func (s *Series[T]) Current() T {
	if len(s.vals) == 0 {
		panic("history: Current on empty series")
	}
	return s.vals[len(s.vals)-1]
}

// Set overwrites the most recent sample. Panics on an empty series.
func (s *Series[T]) Set(v T) {
	if len(s.vals) == 0 {
		panic("history: Set on empty series")
	}
	s.vals[len(s.vals)-1] = v
}

// Append records the next step's sample.
func (s *Series[T]) Append(v T) {
	s.vals = append(s.vals, v)
}

// Mirror appends a copy of the current sample, the default for an attribute
// no phase touches this step. Slice-valued attributes must clone before
// mutating the new sample; Mirror aliases the previous one.
func (s *Series[T]) Mirror() {
	s.Append(s.Current())
}

// At returns the sample recorded at the given absolute step. The second
// return is false when the series did not exist yet at that step.
func (s *Series[T]) At(step int) (T, bool) {
	var zero T
	if len(s.vals) == 0 || step < s.born || step > s.LastStep() {
		return zero, false
	}
	return s.vals[step-s.born], true
}

// MustAt is At for callers that have already established the step is in
// range, e.g. cross-entity queries aligned by construction.
func (s *Series[T]) MustAt(step int) T {
	v, ok := s.At(step)
	if !ok {
		panic(fmt.Sprintf("history: no sample at step %d (born %d, len %d)", step, s.born, len(s.vals)))
	}
	return v
}
