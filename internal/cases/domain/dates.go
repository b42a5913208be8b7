package domain

import (
	"errors"
	"strings"
	"time"
)

var errUnparseableDate = errors.New("unparseable_date")

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006",
}

// ParseDate accepts the date shapes seen in invoice exports, including
// spreadsheet floats such as "20200125.0".
func ParseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errUnparseableDate
	}
	if strings.HasSuffix(v, ".0") && len(v) == len("20060102.0") {
		v = strings.TrimSuffix(v, ".0")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errUnparseableDate
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns (to - from) in fractional days.
func DaysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}
