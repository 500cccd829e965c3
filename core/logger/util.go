package logger

import (
	"strings"
	"time"
)

// Status converts an error into a log status value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns the elapsed time since start rounded for logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds a duration to whole milliseconds, keeping sub-millisecond
// values visible as at least 1ms when non-zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	rounded := d.Round(time.Millisecond)
	if rounded == 0 {
		return time.Millisecond
	}
	return rounded
}

// SummarizeStrings joins up to max items and appends a +N marker for the rest.
func SummarizeStrings(items []string, max int) string {
	if len(items) == 0 {
		return ""
	}
	if max <= 0 || len(items) <= max {
		return strings.Join(items, ",")
	}
	head := strings.Join(items[:max], ",")
	return head + ",+" + itoa(len(items)-max)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
