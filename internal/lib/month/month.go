// Package month содержит помощники для помесячных отчётов.
package month

import (
	"time"
)

// Range полуоткрытый интервал [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Current возвращает интервал от первого числа текущего месяца (UTC) до now.
func Current(now time.Time) Range {
	now = now.UTC()
	return Range{
		Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		End:   now,
	}
}

// Previous возвращает полный предыдущий месяц относительно now.
func Previous(now time.Time) Range {
	cur := Current(now)
	return Range{
		Start: cur.Start.AddDate(0, -1, 0),
		End:   cur.Start,
	}
}

// Year возвращает интервал календарного года в UTC.
func Year(year int) Range {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: start.AddDate(1, 0, 0)}
}

// Short возвращает трёхбуквенное английское название месяца: Jan, Feb ...
func Short(m time.Month) string {
	return m.String()[:3]
}

// Trend возвращает "up", если текущее значение не меньше прошлого, иначе "down".
func Trend(current, last float64) string {
	if current >= last {
		return "up"
	}
	return "down"
}
