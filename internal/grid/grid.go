// Package grid lays out month views as flat runs of day cells, the shape
// the widget and the SVG exporter both render directly.
package grid

import (
	"time"

	"github.com/oxifinch/dayblazer-calendar/internal/dates"
)

// Tag marks which month a cell belongs to relative to the displayed one.
type Tag string

const (
	TagPrevious Tag = "previous"
	TagCurrent  Tag = "current"
	TagNext     Tag = "next"
)

// Grid sizes: five or six rows of seven cells.
const (
	DefaultCapacity  = 35
	ExtendedCapacity = 42
)

// Cell is a single slot of the month grid.
type Cell struct {
	Tag       Tag
	DayNumber int
	Date      dates.Date
	Selected  bool
}

// Key returns the cell's canonical date key.
func (c Cell) Key() string {
	return c.Date.Key()
}

// CapacityFor picks the grid size for ref's month. Months that start on
// Saturday or Sunday push their tail past the fifth row, so they get six.
func CapacityFor(ref time.Time) int {
	if dates.FirstWeekday(ref).Index >= 5 {
		return ExtendedCapacity
	}
	return DefaultCapacity
}

// Build lays out the grid for ref's month with exactly capacity cells:
// enough tail days of the previous month to align day 1 under its weekday
// (Monday-first), the month itself, then days of the next month until the
// grid is full. The cell for ref's own day is marked Selected.
func Build(ref time.Time, capacity int) []Cell {
	year, month := ref.Year(), ref.Month()
	lead := dates.FirstWeekday(ref).Index

	cells := make([]Cell, 0, capacity)

	// Last `lead` days of the previous month, ascending. The slice start
	// clamps at the month beginning.
	prevLast := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	prevDays := prevLast.Day()
	start := prevDays - lead
	if start < 0 {
		start = 0
	}
	for dayNum := start + 1; dayNum <= prevDays && len(cells) < capacity; dayNum++ {
		cells = append(cells, Cell{
			Tag:       TagPrevious,
			DayNumber: dayNum,
			Date:      dates.Date{Year: prevLast.Year(), Month: prevLast.Month(), Day: dayNum},
		})
	}

	monthDays := dates.DaysIn(year, month)
	for dayNum := 1; dayNum <= monthDays && len(cells) < capacity; dayNum++ {
		cells = append(cells, Cell{
			Tag:       TagCurrent,
			DayNumber: dayNum,
			Date:      dates.Date{Year: year, Month: month, Day: dayNum},
		})
	}

	nextFirst := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	for dayNum := 1; len(cells) < capacity; dayNum++ {
		cells = append(cells, Cell{
			Tag:       TagNext,
			DayNumber: dayNum,
			Date:      dates.Date{Year: nextFirst.Year(), Month: nextFirst.Month(), Day: dayNum},
		})
	}

	if idx := (ref.Day() - 1) + lead; idx >= 0 && idx < len(cells) {
		cells[idx].Selected = true
	}
	return cells
}
