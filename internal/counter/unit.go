package counter

import (
	"fmt"
	"math"
	"strconv"
)

// Unit is the time granularity used to quantize a counter's age.
type Unit int64

const (
	Milliseconds Unit = 0
	Seconds      Unit = 1
	Minutes      Unit = 2
)

// Valid reports whether u is one of the defined units.
func (u Unit) Valid() bool {
	switch u {
	case Milliseconds, Seconds, Minutes:
		return true
	}
	return false
}

// Millis returns the length of one unit in milliseconds, or 0 for an invalid unit.
func (u Unit) Millis() int64 {
	switch u {
	case Milliseconds:
		return 1
	case Seconds:
		return 1000
	case Minutes:
		return 60 * 1000
	}
	return 0
}

func (u Unit) String() string {
	switch u {
	case Milliseconds:
		return "ms"
	case Seconds:
		return "sec"
	case Minutes:
		return "min"
	}
	return fmt.Sprintf("unit(%d)", int64(u))
}

func parseUnit(s string) (Unit, bool) {
	switch s {
	case "ms":
		return Milliseconds, true
	case "sec":
		return Seconds, true
	case "min":
		return Minutes, true
	}
	return 0, false
}

// maxUnitLen is the longest unit token accepted after the count.
const maxUnitLen = 3

// Interval is one decay interval: Count units of time.
type Interval struct {
	Count int32
	Unit  Unit
}

// ParseInterval parses "<count><unit>" with no separator, e.g. "30min", "5sec", "250ms".
// The count must be a positive 32-bit integer.
func ParseInterval(s string) (Interval, error) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	num, tok := s[:i], s[i:]
	if tok == "" || len(tok) > maxUnitLen {
		return Interval{}, fmt.Errorf("interval %q: missing or invalid unit: %w", s, ErrSyntax)
	}
	unit, ok := parseUnit(tok)
	if !ok {
		return Interval{}, fmt.Errorf("interval %q: unknown unit %q: %w", s, tok, ErrSyntax)
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: invalid count: %w", s, ErrSyntax)
	}
	if n < 1 || n > math.MaxInt32 {
		return Interval{}, fmt.Errorf("interval %q: count must be between 1 and %d: %w", s, math.MaxInt32, ErrSyntax)
	}
	return Interval{Count: int32(n), Unit: unit}, nil
}

func (iv Interval) String() string {
	return strconv.FormatInt(int64(iv.Count), 10) + iv.Unit.String()
}
