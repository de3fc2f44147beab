package svg

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxifinch/dayblazer-calendar/internal/model"
	"github.com/oxifinch/dayblazer-calendar/internal/planner"
)

func TestRenderMonth(t *testing.T) {
	p := planner.New(time.UTC, nil, nil)
	p.Rebuild([]model.RawEvent{
		{ID: "t1", Date: "15-05-2024", StartTime: "08:00", Type: model.TypeTask, Difficulty: 2, Finished: true},
		{ID: "e1", Date: "15-05-2024", StartTime: "10:00", Type: model.TypeEvent},
	})
	view := p.MonthView(time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	Render(&buf, view)
	out := buf.String()

	require.Contains(t, out, "<svg")
	require.Contains(t, out, "</svg>")
	require.Contains(t, out, "May 2024")
	require.Contains(t, out, ">Mon<")
	require.Contains(t, out, "1 events")
	require.Contains(t, out, "1/1 tasks")
	require.Contains(t, out, "400/400 xp")
	require.Contains(t, out, `stroke="#1a73e8"`)
}

func TestRenderHeightFollowsRowCount(t *testing.T) {
	p := planner.New(time.UTC, nil, nil)

	var fiveRows, sixRows bytes.Buffer
	Render(&fiveRows, p.MonthView(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)))
	Render(&sixRows, p.MonthView(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))

	require.Contains(t, fiveRows.String(), `height="564"`)
	require.Contains(t, sixRows.String(), `height="660"`)
}

func TestShort(t *testing.T) {
	require.Equal(t, "Mon", short("Monday"))
	require.Equal(t, "Sun", short("Sunday"))
	require.Equal(t, "Tue", short("Tuesday"))
}
