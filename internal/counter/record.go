// Package counter implements a time-decaying counter: a value that loses a fixed
// amount per elapsed interval, computed lazily from its creation time.
//
// Records never store decayed values. Every observation recomputes the current
// value from Created and Value, so reading a counter any number of times is safe.
package counter

import "math"

// Epsilon is the tolerance under which an observable value counts as zero.
const Epsilon = 1e-9

// Record is the persisted state of one counter key.
type Record struct {
	Created   int64   // unix milliseconds at which the current epoch began
	DecayRate float64 // subtracted from Value once per elapsed interval
	Intervals int32   // units per interval, at least 1
	Unit      Unit
	Value     float64 // raw accumulated value, before decay
}

// Policy is the decay policy supplied with an increment.
type Policy struct {
	DecayRate float64
	Interval  Interval
}

func (r Record) policy() Policy {
	return Policy{DecayRate: r.DecayRate, Interval: Interval{Count: r.Intervals, Unit: r.Unit}}
}

// Compute returns the observable value of r at now: the raw value minus one
// DecayRate per elapsed interval, never below zero.
//
// Age is divided by the unit size and then by the interval count, each step
// truncating. A negative age counts as zero. Records with an invalid unit or
// interval count observe as 0.
func Compute(r Record, now int64) float64 {
	unitMs := r.Unit.Millis()
	if unitMs == 0 || r.Intervals < 1 {
		return 0
	}
	age := now - r.Created
	if age < 0 {
		age = 0
	}
	elapsed := age / unitMs / int64(r.Intervals)
	v := r.Value - float64(elapsed)*r.DecayRate
	if v < 0 {
		return 0
	}
	return v
}

func isZero(v float64) bool {
	return math.Abs(v) < Epsilon
}
