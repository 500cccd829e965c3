package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler passes keep out of every total calls. Used to thin debug
// logging on hot paths without losing it entirely.
type ratioSampler struct {
	keep    atomic.Uint64
	total   atomic.Uint64
	counter atomic.Uint64
}

func newRatioSampler(keep, total int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(keep, total)
	return s
}

// Set replaces the sampling ratio. Set(0, 0) suppresses everything;
// anything else is clamped to a sane k/n.
func (s *ratioSampler) Set(keep, total int) {
	if keep <= 0 || total <= 0 {
		s.keep.Store(0)
		s.total.Store(1)
		return
	}
	if total < keep {
		total = keep
	}
	s.keep.Store(uint64(keep))
	s.total.Store(uint64(total))
}

// Allow reports whether the current call falls into the kept fraction.
func (s *ratioSampler) Allow() bool {
	keep := s.keep.Load()
	if keep == 0 {
		return false
	}
	total := s.total.Load()
	n := s.counter.Add(1) - 1
	return n%total < keep
}

// parseRatioSpec parses "k/n" specs such as "1/50". "off" and "0" return
// (0, 0); malformed specs return (-1, -1) so callers can fall back.
func parseRatioSpec(spec string) (keep, total int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "", "all", "full":
		return 1, 1
	case "off", "none", "0":
		return 0, 0
	}
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return -1, -1
	}
	k, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return -1, -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return -1, -1
	}
	if k < 0 || n < k {
		return -1, -1
	}
	return k, n
}
