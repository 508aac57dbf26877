package timing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var timeUnits = map[string]VTimeInSec{
	"":    1,
	"s":   1,
	"sec": 1,
	"ms":  1e-3,
	"us":  1e-6,
	"ns":  1e-9,
	"ps":  1e-12,
	"fs":  1e-15,
}

var timePattern = regexp.MustCompile(`^\s*([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

// ParseTime converts strings such as "10 ns", "2.5us" or "3" (seconds) into
// simulated time. Negative durations are rejected.
func ParseTime(s string) (VTimeInSec, error) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}

	unit, ok := timeUnits[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("invalid time unit %q in %q", m[2], s)
	}

	if v < 0 {
		return 0, fmt.Errorf("negative time %q", s)
	}

	return v * unit, nil
}

// FormatTime prints a time with the largest unit that keeps the value at or
// above 1.
func FormatTime(t VTimeInSec) string {
	switch {
	case t == 0:
		return "0 s"
	case t >= 1:
		return strconv.FormatFloat(t, 'g', -1, 64) + " s"
	case t >= 1e-3:
		return strconv.FormatFloat(t*1e3, 'g', 6, 64) + " ms"
	case t >= 1e-6:
		return strconv.FormatFloat(t*1e6, 'g', 6, 64) + " us"
	case t >= 1e-9:
		return strconv.FormatFloat(t*1e9, 'g', 6, 64) + " ns"
	default:
		return strconv.FormatFloat(t*1e12, 'g', 6, 64) + " ps"
	}
}
