package types

import (
	"time"

	ierr "github.com/medbill/ledger/internal/errors"
)

const DayLayout = "2006-01-02"

// DateOf returns the calendar day t falls on in loc, as midnight UTC.
// Days are compared and stored in this normalized form.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeDay strips the clock from a day that is already calendar-aligned
func NormalizeDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInclusive lists every calendar day from..to, both ends included. Empty when from is after to.
func DaysInclusive(from, to time.Time) []time.Time {
	from, to = NormalizeDay(from), NormalizeDay(to)
	if from.After(to) {
		return nil
	}

	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func FormatDay(day time.Time) string {
	return day.Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD calendar day
func ParseDay(s string) (time.Time, error) {
	day, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("Date %q must be formatted as YYYY-MM-DD", s).
			Mark(ierr.ErrValidation)
	}
	return day, nil
}

// Today is the current calendar day in loc. Only entry points call this; the ledger takes days as arguments.
func Today(loc *time.Location) time.Time {
	return DateOf(time.Now(), loc)
}
