package domain

import (
	"time"

	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

// Classify maps the four dates of a case to a risk zone. Rules are checked in
// order; the first match wins. A missing input yields UNKNOWN.
func Classify(due, sla, predicted *time.Time, now time.Time) casedomain.Zone {
	if due == nil || sla == nil || predicted == nil || due.IsZero() || sla.IsZero() || predicted.IsZero() || now.IsZero() {
		return casedomain.ZoneUnknown
	}

	switch {
	case now.Before(*due):
		return casedomain.ZoneGreen
	case now.Before(*predicted) && !predicted.After(*sla):
		return casedomain.ZoneYellow
	case now.Before(*sla) && predicted.After(*sla):
		return casedomain.ZoneOrange
	case !now.Before(*sla):
		return casedomain.ZoneRed
	default:
		return casedomain.ZoneUnknown
	}
}

// ClassifyDates is Classify over raw date strings; anything unparseable is
// treated as missing.
func ClassifyDates(due, sla, predicted, now string) casedomain.Zone {
	parse := func(v string) *time.Time {
		t, err := casedomain.ParseDate(v)
		if err != nil {
			return nil
		}
		return &t
	}
	n := parse(now)
	if n == nil {
		return casedomain.ZoneUnknown
	}
	return Classify(parse(due), parse(sla), parse(predicted), *n)
}
