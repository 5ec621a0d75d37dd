package transform

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp shapes found in the exports.
// Anything unparseable is treated as missing.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseFloat returns nil for blank or non-numeric input.
// NaN and infinities are missing values, not numbers.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NormalizeZip makes "01037" and "1037" the same key.
// Non-numeric prefixes are only trimmed.
func NormalizeZip(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(n)
	}
	return s
}

// DelayDays is the whole-day difference between delivery and estimate, floored
func DelayDays(delivered, estimated time.Time) int {
	diff := delivered.Sub(estimated)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) < 0 {
		days--
	}
	return days
}

// counter tallies string occurrences and reports the mode
type counter map[string]int

func (c counter) add(v string) {
	if v != "" {
		c[v]++
	}
}

// mode returns the most frequent value; ties go to the lexicographically smallest
func (c counter) mode() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestN := "", 0
	for _, k := range keys {
		if c[k] > bestN {
			best, bestN = k, c[k]
		}
	}
	return best
}
