package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxifinch/dayblazer-calendar/internal/dates"
)

func task(id, date, start string, difficulty int, finished bool) RawEvent {
	return RawEvent{
		ID:         id,
		Name:       "task " + id,
		Date:       date,
		StartTime:  start,
		Type:       TypeTask,
		Difficulty: difficulty,
		Finished:   finished,
	}
}

func TestNewEventCopiesFields(t *testing.T) {
	raw := RawEvent{
		ID:          "ev-1",
		Name:        "Dentist",
		Description: "Bring insurance card",
		Date:        " 05-03-2024 ",
		StartTime:   "09:00",
		EndTime:     "09:45",
		Type:        TypeEvent,
		Difficulty:  0,
		Finished:    false,
	}

	ev := NewEvent(raw)
	require.Equal(t, "ev-1", ev.ID)
	require.Equal(t, "Dentist", ev.Name)
	require.Equal(t, "Bring insurance card", ev.Description)
	require.Equal(t, "05-03-2024", ev.DateKey)
	require.Equal(t, dates.Date{Year: 2024, Month: time.March, Day: 5}, ev.Date)
	require.Equal(t, "09:00", ev.StartTime)
	require.Equal(t, "09:45", ev.EndTime)
	require.Equal(t, TypeEvent, ev.Type)
}

func TestNewEventKeepsUnknownValues(t *testing.T) {
	ev := NewEvent(RawEvent{ID: "x", Type: "appointment", Date: "not-a-date", Difficulty: 9})
	require.Equal(t, EventType("appointment"), ev.Type)
	require.Equal(t, 9, ev.Difficulty)
	require.True(t, ev.Date.IsZero())
	require.Equal(t, "not-a-date", ev.DateKey)
}

func TestUpdateReplacesAllButID(t *testing.T) {
	ev := NewEvent(task("t-1", "01-01-2024", "08:00", 1, false))
	ev.Update(RawEvent{
		ID:         "someone-elses-id",
		Name:       "renamed",
		Date:       "02-01-2024",
		StartTime:  "10:00",
		Type:       TypeTask,
		Difficulty: 3,
		Finished:   true,
	})

	require.Equal(t, "t-1", ev.ID)
	require.Equal(t, "renamed", ev.Name)
	require.Equal(t, "02-01-2024", ev.DateKey)
	require.Equal(t, dates.Date{Year: 2024, Month: time.January, Day: 2}, ev.Date)
	require.Equal(t, "10:00", ev.StartTime)
	require.Equal(t, 3, ev.Difficulty)
	require.True(t, ev.Finished)
}

func TestRawRoundTrip(t *testing.T) {
	raw := task("t-9", "15-11-1999", "14:30", 2, true)
	require.Equal(t, raw, NewEvent(raw).Raw())
}

func TestXPForDifficulty(t *testing.T) {
	tests := []struct {
		difficulty int
		want       int
	}{
		{1, 150},
		{2, 400},
		{3, 750},
		{0, 0},
		{4, 0},
		{-1, 0},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, XPForDifficulty(tc.difficulty))
	}
}

func TestDayRefreshFiltersByDate(t *testing.T) {
	collection := []Event{
		NewEvent(task("a", "01-01-2024", "08:00", 1, false)),
		NewEvent(task("b", "02-01-2024", "08:00", 1, false)),
		NewEvent(task("c", " 01-01-2024", "12:00", 1, false)),
		NewEvent(task("d", "garbage", "08:00", 1, false)),
	}

	day := NewDay(dates.Date{Year: 2024, Month: time.January, Day: 1})
	view := day.Refresh(collection)

	require.Len(t, view, 2)
	require.Equal(t, "a", view[0].ID)
	require.Equal(t, "c", view[1].ID)
}

func TestDayRefreshOrdersByStartHour(t *testing.T) {
	first := task("late", "01-01-2024", "14:30", 1, false)
	second := task("early", "01-01-2024", "09:00", 1, false)
	day := NewDay(dates.Date{Year: 2024, Month: time.January, Day: 1})

	for _, collection := range [][]Event{
		{NewEvent(first), NewEvent(second)},
		{NewEvent(second), NewEvent(first)},
	} {
		view := day.Refresh(collection)
		require.Equal(t, "early", view[0].ID)
		require.Equal(t, "late", view[1].ID)
	}
}

func TestDayRefreshStableWithinHour(t *testing.T) {
	// Ordering compares the hour prefix only, so "09:30" before "09:00"
	// stays put when both arrive in that order.
	day := NewDay(dates.Date{Year: 2024, Month: time.January, Day: 1})
	view := day.Refresh([]Event{
		NewEvent(task("half-past", "01-01-2024", "09:30", 1, false)),
		NewEvent(task("on-the-hour", "01-01-2024", "09:00", 1, false)),
		NewEvent(task("next-hour", "01-01-2024", "10:00", 1, false)),
	})

	require.Equal(t, []string{"half-past", "on-the-hour", "next-hour"},
		[]string{view[0].ID, view[1].ID, view[2].ID})
}

func TestSummarize(t *testing.T) {
	day := NewDay(dates.Date{Year: 2024, Month: time.March, Day: 5})
	day.Refresh([]Event{
		NewEvent(task("done", "05-03-2024", "08:00", 2, true)),
		NewEvent(task("open", "05-03-2024", "10:00", 3, false)),
	})

	s := day.Summarize()
	require.Equal(t, Summary{
		EarnedXP:      400,
		TotalXP:       1150,
		FinishedTasks: 1,
		TotalTasks:    2,
		TotalEvents:   0,
	}, s)
}

func TestSummarizeIgnoresReminders(t *testing.T) {
	day := NewDay(dates.Date{Year: 2024, Month: time.March, Day: 5})
	base := []Event{
		NewEvent(task("done", "05-03-2024", "08:00", 2, true)),
		NewEvent(RawEvent{ID: "e1", Date: "05-03-2024", StartTime: "09:00", Type: TypeEvent}),
	}
	day.Refresh(base)
	want := day.Summarize()

	withReminders := append(base,
		NewEvent(RawEvent{ID: "r1", Date: "05-03-2024", StartTime: "07:00", Type: TypeReminder, Finished: true}),
		NewEvent(RawEvent{ID: "r2", Date: "05-03-2024", StartTime: "19:00", Type: TypeReminder, Difficulty: 3}),
	)
	day.Refresh(withReminders)

	require.Equal(t, want, day.Summarize())
	require.Equal(t, 1, want.TotalEvents)
}

func TestSummarizeUnknownDifficultyAwardsNothing(t *testing.T) {
	day := NewDay(dates.Date{Year: 2024, Month: time.March, Day: 5})
	day.Refresh([]Event{NewEvent(task("odd", "05-03-2024", "08:00", 7, true))})

	s := day.Summarize()
	require.Equal(t, 1, s.TotalTasks)
	require.Equal(t, 1, s.FinishedTasks)
	require.Equal(t, 0, s.TotalXP)
	require.Equal(t, 0, s.EarnedXP)
}

func TestDayRoundTripSingleEvent(t *testing.T) {
	collection := []Event{
		NewEvent(RawEvent{ID: "only", Name: "New year plans", Date: "01-01-2024", StartTime: "11:00", Type: TypeEvent}),
	}

	d, err := dates.ParseKey("01-01-2024")
	require.NoError(t, err)

	day := NewDay(d)
	view := day.Refresh(collection)
	require.Len(t, view, 1)
	require.Equal(t, "only", view[0].ID)
	require.Equal(t, 1, day.Summarize().TotalEvents)
}

func TestStartHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"09:00", 9},
		{"14:30", 14},
		{"7:05", 7},
		{"23:59", 23},
		{"", 0},
		{"noon", 0},
		{":30", 0},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, startHour(tc.in), "input %q", tc.in)
	}
}
