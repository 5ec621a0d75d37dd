package exporter

import (
	"strconv"
	"time"
)

// TimestampLayout is how timestamps appear in exported files
const TimestampLayout = "2006-01-02 15:04:05"

// formatFloat writes the shortest representation that round-trips, so 120 stays "120"
// and 15.75 stays "15.75"
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Null values export as empty cells

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatOptionalInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatOptionalBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
