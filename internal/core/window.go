package core

import (
	"fmt"
	"strings"
	"time"
)

const endOfDay = 24*time.Hour - time.Millisecond

// Window constrains a query to a span of calendar days. The zero value
// matches every date.
type Window struct {
	Start   time.Time
	End     time.Time
	bounded bool
}

// AllTime returns the unconstrained window.
func AllTime() Window {
	return Window{}
}

// NewWindow builds an inclusive window from the start of from's day to the
// last millisecond of to's day, both in UTC.
func NewWindow(from, to Date) (Window, error) {
	if from.IsZero() || to.IsZero() {
		return Window{}, fmt.Errorf("%w: both dates are required", ErrInvalidWindow)
	}
	start := DayOf(from.Time).Time
	end := DayOf(to.Time).Time.Add(endOfDay)
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow, from, to)
	}
	return Window{Start: start, End: end, bounded: true}, nil
}

// ResolveWindow turns an optional pair of date strings into a window. Both
// empty means no window; anything unparseable is rejected.
func ResolveWindow(from, to string) (Window, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return AllTime(), nil
	}
	if from == "" || to == "" {
		return Window{}, fmt.Errorf("%w: startDate and endDate must be supplied together", ErrInvalidWindow)
	}
	start, err := ParseDate(from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: startDate: %v", ErrInvalidWindow, err)
	}
	end, err := ParseDate(to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: endDate: %v", ErrInvalidWindow, err)
	}
	return NewWindow(start, end)
}

// Bounded reports whether the window constrains dates at all.
func (w Window) Bounded() bool {
	return w.bounded
}

// SameDay reports whether both ends fall on one calendar day, in which case
// matching is exact-date equality.
func (w Window) SameDay() bool {
	return w.bounded && DayOf(w.Start).Equal(DayOf(w.End))
}

// Day is the single day of a same-day window.
func (w Window) Day() Date {
	return DayOf(w.Start)
}

// FirstDay and LastDay are the calendar days at each end of the window.
func (w Window) FirstDay() Date {
	return DayOf(w.Start)
}

func (w Window) LastDay() Date {
	return DayOf(w.End)
}

func (w Window) Contains(d Date) bool {
	if !w.bounded {
		return true
	}
	if w.SameDay() {
		return d.Equal(w.Day())
	}
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	switch {
	case !w.bounded:
		return "all time"
	case w.SameDay():
		return w.Day().String()
	default:
		return w.FirstDay().String() + " to " + w.LastDay().String()
	}
}
