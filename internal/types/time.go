package types

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatHMS renders seconds as HH:MM:SS, rounding to the nearest second.
// Negative input is treated as zero.
func FormatHMS(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds + 0.5)
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseHMS parses HH:MM:SS or MM:SS into seconds.
func ParseHMS(v string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM:SS or MM:SS", v)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time component %q in %q", p, v)
		}
		total = total*60 + n
	}
	return float64(total), nil
}
