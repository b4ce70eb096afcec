package counter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command names understood by Controller.Exec.
const (
	CmdIncr = "DC.INCR"
	CmdDecr = "DC.DECR"
	CmdPeek = "DC.PEEK"
	CmdDel  = "DEL"
)

// IncrArgs are the named parameters of an increment.
type IncrArgs struct {
	Amount float64
	Policy Policy
}

// ParseIncrArgs parses "AMOUNT <float> DEGRADE_RATE <float> INTERVAL <n><unit>".
// Names are case-insensitive and may come in any order; all three are required.
func ParseIncrArgs(args []string) (IncrArgs, error) {
	if len(args) != 6 {
		return IncrArgs{}, fmt.Errorf("wrong number of arguments: %w", ErrSyntax)
	}
	var (
		out  IncrArgs
		seen = map[string]bool{}
	)
	for i := 0; i < len(args); i += 2 {
		name, val := strings.ToUpper(args[i]), args[i+1]
		if seen[name] {
			return IncrArgs{}, fmt.Errorf("duplicate parameter %s: %w", name, ErrSyntax)
		}
		seen[name] = true

		var err error
		switch name {
		case "AMOUNT":
			out.Amount, err = parseFloat(name, val)
		case "DEGRADE_RATE":
			out.Policy.DecayRate, err = parseFloat(name, val)
		case "INTERVAL":
			out.Policy.Interval, err = ParseInterval(val)
		default:
			err = fmt.Errorf("unknown parameter %q: %w", args[i], ErrSyntax)
		}
		if err != nil {
			return IncrArgs{}, err
		}
	}
	return out, nil
}

// ParseDecrArgs parses the optional decrement amount, defaulting to 1.
func ParseDecrArgs(args []string) (float64, error) {
	switch len(args) {
	case 0:
		return 1, nil
	case 1:
		return parseFloat("amount", args[0])
	}
	return 0, fmt.Errorf("wrong number of arguments: %w", ErrSyntax)
}

func parseFloat(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s %q is not a valid float: %w", name, s, ErrSyntax)
	}
	return f, nil
}
