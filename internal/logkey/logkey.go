// Package logkey maps calendar days to object store keys.
package logkey

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RawPrefix is the namespace holding daily logs.
	RawPrefix = "raw_data/"
	// SummaryPrefix is the namespace holding summary artifacts.
	SummaryPrefix = "summaries/"

	dayLayout     = "2006-01-02"
	rawStem       = "daily_log_"
	rawExt        = ".json"
	summarySuffix = "_summary.txt"
)

// Raw returns the daily log key for the UTC calendar day of t.
func Raw(t time.Time) string {
	return RawPrefix + rawStem + Day(t) + rawExt
}

// Summary derives the summary artifact key from a daily log key.
func Summary(rawKey string) string {
	key := strings.ReplaceAll(rawKey, RawPrefix, SummaryPrefix)
	return strings.ReplaceAll(key, rawExt, summarySuffix)
}

// Day formats the UTC calendar day of t as YYYY-MM-DD.
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ParseDay parses a YYYY-MM-DD string as a UTC day.
func ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dayLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return d, nil
}

// DayOf extracts the day encoded in a daily log key.
func DayOf(rawKey string) (string, error) {
	name := strings.TrimPrefix(rawKey, RawPrefix)
	if name == rawKey || !strings.HasPrefix(name, rawStem) || !strings.HasSuffix(name, rawExt) {
		return "", fmt.Errorf("not a daily log key: %q", rawKey)
	}
	day := strings.TrimSuffix(strings.TrimPrefix(name, rawStem), rawExt)
	if _, err := ParseDay(day); err != nil {
		return "", fmt.Errorf("not a daily log key: %q", rawKey)
	}
	return day, nil
}
