package workflow

import (
	"fmt"
	"strings"
	"time"

	"mecadoi/internal/store"
)

const dateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD day in UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// DateRange selects archives received strictly after the day after and
// strictly before the day before. Either bound may be nil.
func DateRange(after, before *time.Time) store.Range {
	var r store.Range
	if after != nil {
		r.From = truncateDay(*after).AddDate(0, 0, 1)
	}
	if before != nil {
		r.Until = truncateDay(*before)
	}
	return r
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
