package counter

import "testing"

func TestComputeLinearDecay(t *testing.T) {
	rec := Record{Created: 0, DecayRate: 2, Intervals: 1, Unit: Seconds, Value: 10}

	tests := []struct {
		now  int64
		want float64
	}{
		{0, 10},
		{999, 10},
		{1000, 8},
		{3000, 4},
		{3999, 4},
		{5000, 0},
		{6000, 0},
		{600000, 0},
	}
	for _, tt := range tests {
		if got := Compute(rec, tt.now); got != tt.want {
			t.Errorf("Compute(at %dms) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestComputeTwoStageDivision(t *testing.T) {
	// 3 minutes of age with 2-minute intervals: 180000/60000 = 3, 3/2 = 1.
	rec := Record{Created: 0, DecayRate: 1, Intervals: 2, Unit: Minutes, Value: 100}
	if got := Compute(rec, 180000); got != 99 {
		t.Errorf("Compute = %v, want 99", got)
	}

	// 3.9 minutes still truncates to 3 whole minutes first.
	if got := Compute(rec, 239999); got != 99 {
		t.Errorf("Compute = %v, want 99", got)
	}
	if got := Compute(rec, 240000); got != 98 {
		t.Errorf("Compute = %v, want 98", got)
	}
}

func TestComputeUnits(t *testing.T) {
	tests := []struct {
		unit Unit
		age  int64
		want float64
	}{
		{Milliseconds, 250, 750},
		{Seconds, 250, 1000},
		{Seconds, 2500, 998},
		{Minutes, 59999, 1000},
		{Minutes, 120000, 998},
	}
	for _, tt := range tests {
		rec := Record{Created: 1000, DecayRate: 1, Intervals: 1, Unit: tt.unit, Value: 1000}
		if got := Compute(rec, 1000+tt.age); got != tt.want {
			t.Errorf("%s after %dms = %v, want %v", tt.unit, tt.age, got, tt.want)
		}
	}
}

func TestComputeNegativeAge(t *testing.T) {
	rec := Record{Created: 10000, DecayRate: 1, Intervals: 1, Unit: Seconds, Value: 5}
	if got := Compute(rec, 4000); got != 5 {
		t.Errorf("Compute before creation = %v, want 5", got)
	}
}

func TestComputeInvalidPolicy(t *testing.T) {
	bad := []Record{
		{Intervals: 1, Unit: Unit(7), Value: 10},
		{Intervals: 1, Unit: Unit(-1), Value: 10},
		{Intervals: 0, Unit: Seconds, Value: 10},
	}
	for _, rec := range bad {
		if got := Compute(rec, 1000); got != 0 {
			t.Errorf("Compute(%+v) = %v, want 0", rec, got)
		}
	}
}

func TestComputeMonotoneAndNonNegative(t *testing.T) {
	recs := []Record{
		{Created: 0, DecayRate: 0.5, Intervals: 3, Unit: Milliseconds, Value: 40},
		{Created: 0, DecayRate: 1.25, Intervals: 1, Unit: Seconds, Value: 7.5},
		{Created: 0, DecayRate: 0, Intervals: 1, Unit: Minutes, Value: 3},
		{Created: 0, DecayRate: 1, Intervals: 1, Unit: Seconds, Value: -4},
	}
	for _, rec := range recs {
		prev := Compute(rec, 0)
		for now := int64(0); now <= 200000; now += 137 {
			v := Compute(rec, now)
			if v < 0 {
				t.Fatalf("Compute(%+v, %d) = %v, negative", rec, now, v)
			}
			if v > prev {
				t.Fatalf("Compute(%+v) grew from %v to %v at %d", rec, prev, v, now)
			}
			prev = v
		}
	}
}
