package update

import (
	"fmt"
	"strconv"
	"strings"
)

func ClampInt(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

// Wrap moves cursor by delta inside [0, total) with wrap-around.
func Wrap(cursor, delta, total int) int {
	if total <= 0 {
		return 0
	}
	return ((cursor+delta)%total + total) % total
}

// ListWindow returns the [start, end) slice of a list of total rows that
// keeps cursor visible in size rows.
func ListWindow(cursor, total, size int) (int, int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	if total <= size {
		return 0, total
	}
	cursor = ClampInt(cursor, 0, total-1)
	start := cursor - size/2
	start = ClampInt(start, 0, total-size)
	return start, start + size
}

// MaxScroll is how far a list of total rows can scroll back with size rows
// visible.
func MaxScroll(total, size int) int {
	if total <= size {
		return 0
	}
	return total - size
}

func ParseDigit(key string) (int, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	return int(key[0] - '0'), true
}

// ParseRadioField parses an edited CC1101 value.
func ParseRadioField(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0, fmt.Errorf("value is empty")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

// SignalBars renders an RSSI reading as a four-step bar.
func SignalBars(rssi int) string {
	switch {
	case rssi >= -55:
		return "▂▄▆█"
	case rssi >= -67:
		return "▂▄▆ "
	case rssi >= -78:
		return "▂▄  "
	default:
		return "▂   "
	}
}
