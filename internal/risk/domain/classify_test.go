package domain

import (
	"testing"
	"time"

	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestClassifyBoundaries(t *testing.T) {
	due, sla := day("2024-01-10"), day("2024-01-20")

	cases := []struct {
		name      string
		predicted *time.Time
		now       *time.Time
		want      casedomain.Zone
	}{
		{"not yet due", day("2024-01-15"), day("2024-01-09"), casedomain.ZoneGreen},
		{"due day is overdue", day("2024-01-15"), day("2024-01-10"), casedomain.ZoneYellow},
		{"expected before sla", day("2024-01-15"), day("2024-01-12"), casedomain.ZoneYellow},
		{"expected on sla day", day("2024-01-20"), day("2024-01-12"), casedomain.ZoneYellow},
		{"expected after sla", day("2024-01-25"), day("2024-01-12"), casedomain.ZoneOrange},
		{"past sla early prediction", day("2024-01-15"), day("2024-01-21"), casedomain.ZoneRed},
		{"past sla late prediction", day("2024-01-25"), day("2024-01-21"), casedomain.ZoneRed},
		{"sla day itself", day("2024-01-25"), day("2024-01-20"), casedomain.ZoneRed},
		{"prediction already passed", day("2024-01-11"), day("2024-01-12"), casedomain.ZoneUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(due, sla, tc.predicted, *tc.now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifyMissingInputs(t *testing.T) {
	due, sla, predicted := day("2024-01-10"), day("2024-01-20"), day("2024-01-15")
	now := *day("2024-01-12")

	if got := Classify(nil, sla, predicted, now); got != casedomain.ZoneUnknown {
		t.Fatalf("missing due: got %s", got)
	}
	if got := Classify(due, nil, predicted, now); got != casedomain.ZoneUnknown {
		t.Fatalf("missing sla: got %s", got)
	}
	if got := Classify(due, sla, nil, now); got != casedomain.ZoneUnknown {
		t.Fatalf("missing predicted: got %s", got)
	}
	if got := Classify(due, sla, predicted, time.Time{}); got != casedomain.ZoneUnknown {
		t.Fatalf("missing now: got %s", got)
	}
}

func TestClassifyDates(t *testing.T) {
	if got := ClassifyDates("2024-01-10", "2024-01-20", "2024-01-25", "2024-01-12"); got != casedomain.ZoneOrange {
		t.Fatalf("expected ORANGE, got %s", got)
	}
	if got := ClassifyDates("20240110", "20240120.0", "2024-01-15", "2024-01-12T08:00:00Z"); got != casedomain.ZoneYellow {
		t.Fatalf("expected YELLOW, got %s", got)
	}
	if got := ClassifyDates("garbage", "2024-01-20", "2024-01-15", "2024-01-12"); got != casedomain.ZoneUnknown {
		t.Fatalf("expected UNKNOWN, got %s", got)
	}
}

// Every combination of dates lands in exactly one zone.
func TestClassifyTotal(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 6; d++ {
		for s := 0; s < 6; s++ {
			for p := 0; p < 6; p++ {
				for n := 0; n < 6; n++ {
					due := base.AddDate(0, 0, d*3)
					sla := base.AddDate(0, 0, s*3)
					predicted := base.AddDate(0, 0, p*3)
					now := base.AddDate(0, 0, n*3)
					if z := Classify(&due, &sla, &predicted, now); !z.Valid() {
						t.Fatalf("invalid zone %q", z)
					}
				}
			}
		}
	}
}
