package bot

import (
	"strings"
	"time"

	"newsdigest/internal/logkey"
)

// ParseDayArg parses an optional YYYY-MM-DD argument. An empty argument
// yields the UTC day of now.
func ParseDayArg(args string, now time.Time) (time.Time, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return now.UTC().Truncate(24 * time.Hour), nil
	}
	return logkey.ParseDay(fields[0])
}
