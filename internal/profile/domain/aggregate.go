package domain

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

// Aggregate folds the cleared cases of one customer into a profile.
// Payment delay is cleared minus due in days; a positive delay is late.
// The standard deviation is the sample one and 0 for a single case.
func Aggregate(customerID string, rows []ClearedCase, now time.Time) Profile {
	p := Profile{
		ID:                 customerID,
		Name:               dominantName(rows),
		AvgInvoiceAmount:   decimal.Zero,
		TotalLifetimeValue: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if len(rows) == 0 {
		return p
	}

	delays := make([]float64, 0, len(rows))
	var late int
	var clearSum, dueSum float64
	var clearN, dueN int
	for _, row := range rows {
		delay := casedomain.DaysBetween(row.DueDate, row.ClearedAt)
		delays = append(delays, delay)
		if delay > 0 {
			late++
		}
		if row.DocumentDate != nil {
			clearSum += casedomain.DaysBetween(*row.DocumentDate, row.ClearedAt)
			dueSum += casedomain.DaysBetween(*row.DocumentDate, row.DueDate)
			clearN++
			dueN++
		}
		p.TotalLifetimeValue = p.TotalLifetimeValue.Add(row.OriginalAmount)
	}

	n := len(rows)
	p.TransactionCount = n
	p.LatePaymentRatio = float64(late) / float64(n)
	p.AvgPaymentDelay = mean(delays)
	p.StdPaymentDelay = sampleStd(delays)
	p.MinPaymentDelay, p.MaxPaymentDelay = minMax(delays)
	p.AvgInvoiceAmount = p.TotalLifetimeValue.Div(decimal.NewFromInt(int64(n))).Round(2)
	if clearN > 0 {
		p.AvgDaysToClear = clearSum / float64(clearN)
	} else {
		p.AvgDaysToClear = DefaultAvgDaysToClear
	}
	if dueN > 0 {
		p.AvgDueDays = dueSum / float64(dueN)
	} else {
		p.AvgDueDays = DefaultAvgDueDays
	}
	return p
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// dominantName is the most frequent customer name; ties go to the
// alphabetically first.
func dominantName(rows []ClearedCase) string {
	counts := map[string]int{}
	for _, row := range rows {
		if row.CustomerName == "" {
			continue
		}
		counts[row.CustomerName]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
