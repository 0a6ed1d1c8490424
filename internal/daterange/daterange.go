// Package daterange validates the [start, end] interval requested from the
// daily-values service.
package daterange

import (
	"fmt"
	"strings"
	"time"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
)

// Layout is the calendar date format used on the wire and in the store.
const Layout = "2006-01-02"

// DefaultSpan is how far back start is moved when the caller's start is not
// before end.
const DefaultSpan = 7 * 24 * time.Hour

// Range is a validated interval with Start strictly before End.
type Range struct {
	Start time.Time
	End   time.Time
}

// Notes records which repairs Normalize applied.
type Notes struct {
	EndClamped bool
	StartReset bool
}

func (r Range) String() string {
	return r.Start.Format(Layout) + ".." + r.End.Format(Layout)
}

// Days returns the number of calendar days covered, both ends included.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// Day truncates t to its calendar date, expressed as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in now's own location.
func Today(now time.Time) time.Time {
	return Day(now)
}

// Normalize repairs a caller-supplied interval instead of rejecting it.
// An end after today is clamped to today; a start that is not before end is
// replaced by end minus one week.
func Normalize(start, end, today time.Time) (Range, Notes) {
	var notes Notes
	start, end, today = Day(start), Day(end), Day(today)

	if end.After(today) {
		end = today
		notes.EndClamped = true
	}
	if !start.Before(end) {
		start = end.Add(-DefaultSpan)
		notes.StartReset = true
	}
	return Range{Start: start, End: end}, notes
}

// Parse reads a YYYY-MM-DD date. Unpadded month and day are accepted.
func Parse(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range []string{Layout, "2006-1-2"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.E(apperr.InputFormat, "daterange.Parse",
		fmt.Errorf("%q is not a date in YYYY-MM-DD format", text))
}
