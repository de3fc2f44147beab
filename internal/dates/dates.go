// Package dates holds the calendar arithmetic used by the planner: month
// lengths, Monday-first weekday resolution and the DD-MM-YYYY key format
// used on the wire. Internally dates travel as the comparable Date value;
// the string form exists only at serialization boundaries.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Undefined is the fail-soft sentinel for display-name lookups that cannot
// resolve. Callers render it as-is rather than failing.
const Undefined = "UNDEFINED"

// KeyFormat documents the canonical serialized date form, e.g. "05-03-2024".
const KeyFormat = "DD-MM-YYYY"

var weekdayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Date is a plain calendar date, comparable and usable as a map key.
// The zero value represents "no date" and never matches a real day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf strips the time-of-day portion of t.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of d in loc. loc may be nil for UTC.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Key renders d in the canonical zero-padded DD-MM-YYYY form.
func (d Date) Key() string {
	return FormatKey(d.Day, int(d.Month), d.Year)
}

// AddDays returns d shifted by n calendar days, normalized across month and
// year boundaries.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// DaysIn reports the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one, which makes leap
// years come out right without a table.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInMonth reports the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return DaysIn(t.Year(), t.Month())
}

// Weekday is a resolved weekday: a display name plus a Monday-first index
// (Monday=0 .. Sunday=6).
type Weekday struct {
	Name  string
	Index int
}

// FirstWeekday resolves the weekday of the first day of t's month. Only the
// year and month of t matter; time-of-day never changes the result. A name
// that cannot be resolved yields {Undefined, 0}.
func FirstWeekday(t time.Time) Weekday {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	// time.Weekday counts Sunday=0; shift to Monday=0.
	idx := (int(first.Weekday()) + 6) % 7
	name, ok := weekdayName(idx)
	if !ok {
		return Weekday{Name: Undefined, Index: 0}
	}
	return Weekday{Name: name, Index: idx}
}

func weekdayName(idx int) (string, bool) {
	if idx < 0 || idx >= len(weekdayNames) {
		return "", false
	}
	return weekdayNames[idx], true
}

// MonthName returns the display name of m, or Undefined when m is outside
// January..December.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return Undefined
	}
	return monthNames[m-1]
}

// WeekdayNames returns the Monday-first weekday display names.
func WeekdayNames() []string {
	out := make([]string, len(weekdayNames))
	copy(out, weekdayNames[:])
	return out
}

// FormatKey builds a DD-MM-YYYY key from raw components. The components are
// not range-checked; callers that hold out-of-range values get them echoed
// back padded, matching the fail-soft contract of the display layer.
func FormatKey(day, month, year int) string {
	return fmt.Sprintf("%02d-%02d-%04d", day, month, year)
}

// ParseKey parses a DD-MM-YYYY key into a Date. Surrounding whitespace is
// trimmed and unpadded day/month components are accepted, so "5-3-2024" and
// " 05-03-2024 " both resolve to the same Date. Anything that is not a real
// calendar date is rejected.
func ParseKey(s string) (Date, error) {
	trimmed := strings.TrimSpace(s)
	parts := strings.Split(trimmed, "-")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("dates: malformed key %q", s)
	}
	day, err := atoiField(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("dates: malformed day in key %q", s)
	}
	month, err := atoiField(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("dates: malformed month in key %q", s)
	}
	year, err := atoiField(parts[2])
	if err != nil {
		return Date{}, fmt.Errorf("dates: malformed year in key %q", s)
	}
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("dates: month out of range in key %q", s)
	}
	if year < 1 || year > 9999 {
		return Date{}, fmt.Errorf("dates: year out of range in key %q", s)
	}
	if day < 1 || day > DaysIn(year, time.Month(month)) {
		return Date{}, fmt.Errorf("dates: day out of range in key %q", s)
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

func atoiField(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
