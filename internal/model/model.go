package model

import (
	"sort"
	"strconv"
	"strings"

	"github.com/oxifinch/dayblazer-calendar/internal/dates"
	"github.com/oxifinch/dayblazer-calendar/internal/log"
)

// EventType classifies a schedulable item. Unknown values are carried
// through untouched; they render but never count toward any summary.
type EventType string

const (
	TypeTask     EventType = "task"
	TypeEvent    EventType = "event"
	TypeReminder EventType = "reminder"
)

// RawEvent is the external record shape delivered by feed sources. Field
// names match the wire format exactly.
type RawEvent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Type        EventType `json:"type"`
	Difficulty  int       `json:"difficulty"`
	Finished    bool      `json:"finished"`
}

// Event is a schedulable item in the collection. ID is fixed at
// construction; everything else may be replaced by Update.
type Event struct {
	ID          string
	Name        string
	Description string

	// DateKey is the trimmed original date string; Date is its parsed
	// value, zero when the string does not resolve to a real calendar
	// date. Zero-dated events belong to no day.
	DateKey string
	Date    dates.Date

	// StartTime / EndTime are time-of-day strings such as "09:00".
	StartTime string
	EndTime   string

	Type       EventType
	Difficulty int // task difficulty 1..3
	Finished   bool
}

// NewEvent builds an Event from a raw record. All fields are taken as
// delivered, without validation; the date string is additionally parsed so
// day membership can be decided by value.
func NewEvent(raw RawEvent) Event {
	d, err := dates.ParseKey(raw.Date)
	if err != nil {
		d = dates.Date{}
	}
	return Event{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		DateKey:     strings.TrimSpace(raw.Date),
		Date:        d,
		StartTime:   raw.StartTime,
		EndTime:     raw.EndTime,
		Type:        raw.Type,
		Difficulty:  raw.Difficulty,
		Finished:    raw.Finished,
	}
}

// Update replaces every field except the identity with the values of raw
// and logs that the event changed.
func (e *Event) Update(raw RawEvent) {
	d, err := dates.ParseKey(raw.Date)
	if err != nil {
		d = dates.Date{}
	}
	e.Name = raw.Name
	e.Description = raw.Description
	e.DateKey = strings.TrimSpace(raw.Date)
	e.Date = d
	e.StartTime = raw.StartTime
	e.EndTime = raw.EndTime
	e.Type = raw.Type
	e.Difficulty = raw.Difficulty
	e.Finished = raw.Finished
	log.Info("event updated", "id", e.ID, "name", e.Name, "date", e.DateKey)
}

// Raw returns the event in its wire shape, echoing the original date string.
func (e Event) Raw() RawEvent {
	return RawEvent{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Date:        e.DateKey,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Type:        e.Type,
		Difficulty:  e.Difficulty,
		Finished:    e.Finished,
	}
}

// XPForDifficulty maps a task difficulty to its XP award. Anything outside
// the known tiers awards nothing.
func XPForDifficulty(difficulty int) int {
	switch difficulty {
	case 1:
		return 150
	case 2:
		return 400
	case 3:
		return 750
	default:
		return 0
	}
}

// Summary aggregates one day's progress numbers.
type Summary struct {
	EarnedXP      int `json:"earnedXP"`
	TotalXP       int `json:"totalXP"`
	FinishedTasks int `json:"finishedTasks"`
	TotalTasks    int `json:"totalTasks"`
	TotalEvents   int `json:"totalEvents"`
}

// Day is a derived view over the event collection for a single date. It
// owns nothing; Refresh rebuilds it from whatever collection is passed in.
type Day struct {
	Date   dates.Date
	Events []Event
}

func NewDay(d dates.Date) *Day {
	return &Day{Date: d}
}

// Refresh rebuilds the view from the given collection: events dated on this
// day, ordered ascending by start hour. The sort is stable, so events that
// share an hour keep their collection order. The new view is stored and
// returned.
func (d *Day) Refresh(events []Event) []Event {
	view := make([]Event, 0)
	if !d.Date.IsZero() {
		for _, ev := range events {
			if ev.Date == d.Date {
				view = append(view, ev)
			}
		}
	}
	sort.SliceStable(view, func(i, j int) bool {
		return startHour(view[i].StartTime) < startHour(view[j].StartTime)
	})
	d.Events = view
	return view
}

// Summarize folds the current view into a Summary. Events count toward
// TotalEvents, tasks toward the task and XP fields; reminders and unknown
// types count nowhere.
func (d *Day) Summarize() Summary {
	var s Summary
	for _, ev := range d.Events {
		switch ev.Type {
		case TypeEvent:
			s.TotalEvents++
		case TypeTask:
			xp := XPForDifficulty(ev.Difficulty)
			s.TotalTasks++
			s.TotalXP += xp
			if ev.Finished {
				s.EarnedXP += xp
				s.FinishedTasks++
			}
		}
	}
	return s
}

// startHour extracts the integer hour prefix of a time-of-day string, the
// characters before the first ':'. Unparseable values sort as hour zero.
func startHour(s string) int {
	prefix := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		prefix = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(prefix))
	if err != nil {
		return 0
	}
	return n
}
