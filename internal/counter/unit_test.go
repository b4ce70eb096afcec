package counter

import (
	"errors"
	"testing"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want Interval
	}{
		{"30min", Interval{30, Minutes}},
		{"5sec", Interval{5, Seconds}},
		{"250ms", Interval{250, Milliseconds}},
		{"1ms", Interval{1, Milliseconds}},
		{"+2sec", Interval{2, Seconds}},
		{"2147483647min", Interval{2147483647, Minutes}},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if err != nil {
			t.Errorf("ParseInterval(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInterval(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseIntervalErrors(t *testing.T) {
	bad := []string{
		"",
		"5",
		"sec",
		"5 sec",
		"5secs",
		"5hour",
		"5h",
		"0sec",
		"-5sec",
		"2147483648min",
		"99999999999999999999ms",
		"1.5sec",
		"5SEC",
	}
	for _, in := range bad {
		_, err := ParseInterval(in)
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("ParseInterval(%q) error = %v, want ErrSyntax", in, err)
		}
	}
}

func TestIntervalRoundTrip(t *testing.T) {
	for _, u := range []Unit{Milliseconds, Seconds, Minutes} {
		for _, n := range []int32{1, 2, 7, 30, 60, 1000, 65535, 2147483647} {
			iv := Interval{Count: n, Unit: u}
			got, err := ParseInterval(iv.String())
			if err != nil {
				t.Fatalf("ParseInterval(%q): %v", iv.String(), err)
			}
			if got != iv {
				t.Errorf("round trip %q = %+v, want %+v", iv.String(), got, iv)
			}
		}
	}
}

func TestUnitString(t *testing.T) {
	if Unit(9).Valid() {
		t.Error("Unit(9) reported valid")
	}
	if got := Unit(9).String(); got != "unit(9)" {
		t.Errorf("Unit(9).String() = %q", got)
	}
}
