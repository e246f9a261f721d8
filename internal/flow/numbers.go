package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseNumber reads body as a non-negative decimal integer. Only bodies made entirely of
// ASCII digits qualify, so "4pm", "+4", "1.5" and "" are all non-numeric.
func ParseNumber(body string) (int, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return 0, false
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return 0, false
	}
	return n, true
}

// numberIn reports whether body is a number within [lo, hi].
func numberIn(body string, lo, hi int) (int, bool) {
	n, ok := ParseNumber(body)
	if !ok || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// ParseDurationCode converts a reminder duration code such as "24h" or "2d" into a
// time.Duration. Units are h (hour) and d (24 hours).
func ParseDurationCode(code string) (time.Duration, error) {
	if len(code) < 2 {
		return 0, fmt.Errorf("invalid duration code %q", code)
	}
	value, ok := ParseNumber(code[:len(code)-1])
	if !ok {
		return 0, fmt.Errorf("invalid duration value in %q", code)
	}
	switch code[len(code)-1] {
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit in %q", code)
	}
}

// FireAt returns the absolute time a reminder created at now with the given code fires.
func FireAt(now time.Time, code string) (time.Time, error) {
	d, err := ParseDurationCode(code)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}
