package syncer

import (
	"fmt"
	"time"

	"amosync/pkg/amos"
)

// Month is a calendar month of one year
type Month struct {
	Year  int
	Month int
}

// MonthOf truncates t to its calendar month in UTC
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: int(t.Month())}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Before reports whether m is strictly earlier than other
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Next returns the following month, rolling December into January
func (m Month) Next() Month {
	if m.Month >= 12 {
		return Month{Year: m.Year + 1, Month: 1}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Window is an inclusive range of months with Start never after End
type Window struct {
	Start Month
	End   Month
}

// Months enumerates the window in ascending order
func (w Window) Months() []Month {
	var months []Month
	for m := w.Start; !w.End.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// Plan intersects the requested range with the camera's activity window.
// A missing requested bound defers to the camera's bound and vice versa.
// ok is false when either end is unknown on both sides or the range is empty.
func Plan(reqStart, reqEnd *time.Time, record *amos.CameraRecord) (w Window, ok bool) {
	var firstSeen, lastSeen *time.Time
	if record != nil {
		firstSeen, lastSeen = record.FirstSeen(), record.LastSeen()
	}

	start := pick(reqStart, firstSeen, func(a, b time.Time) bool { return a.After(b) })
	end := pick(reqEnd, lastSeen, func(a, b time.Time) bool { return a.Before(b) })
	if start == nil || end == nil {
		return Window{}, false
	}

	w = Window{Start: MonthOf(*start), End: MonthOf(*end)}
	if w.End.Before(w.Start) {
		return Window{}, false
	}
	return w, true
}

// pick returns whichever of a and b is present, or the preferred one when both are
func pick(a, b *time.Time, prefer func(a, b time.Time) bool) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case prefer(*a, *b):
		return a
	default:
		return b
	}
}
