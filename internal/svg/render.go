// Package svg renders month views as standalone SVG documents, a
// server-side counterpart to the widget page for consumers that want a
// static image.
package svg

import (
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"

	"github.com/oxifinch/dayblazer-calendar/internal/grid"
	"github.com/oxifinch/dayblazer-calendar/internal/planner"
)

const (
	columns = 7
	cellW   = 120
	cellH   = 96
	titleH  = 56
	labelH  = 28
)

var (
	styleBackground = []string{`fill="#ffffff"`}
	styleGrid       = []string{`stroke="#d0d4d9"`, `stroke-width="1"`, `fill="none"`}
	styleSelected   = []string{`stroke="#1a73e8"`, `stroke-width="3"`, `fill="none"`}
	styleTitle      = []string{`font-family="sans-serif"`, `font-size="28px"`, `text-anchor="middle"`, `fill="#202124"`}
	styleLabel      = []string{`font-family="sans-serif"`, `font-size="13px"`, `text-anchor="middle"`, `fill="#5f6368"`}
	styleDay        = []string{`font-family="sans-serif"`, `font-size="18px"`, `fill="#202124"`}
	styleDayMuted   = []string{`font-family="sans-serif"`, `font-size="18px"`, `fill="#b0b4b9"`}
	styleBadge      = []string{`font-family="sans-serif"`, `font-size="11px"`, `fill="#5f6368"`}
	styleXP         = []string{`font-family="sans-serif"`, `font-size="11px"`, `fill="#188038"`}
)

// Render writes view as a complete SVG document. Cell content is limited
// to day numbers and summary badges; individual event titles stay in the
// JSON API.
func Render(w io.Writer, view planner.MonthView) {
	rows := len(view.Cells) / columns
	width := columns * cellW
	height := titleH + labelH + rows*cellH

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, styleBackground...)

	canvas.Text(width/2, 38, fmt.Sprintf("%s %d", view.MonthName, view.Year), styleTitle...)

	for i, name := range view.Weekdays {
		canvas.Text(i*cellW+cellW/2, titleH+18, short(name), styleLabel...)
	}

	top := titleH + labelH
	for i, cv := range view.Cells {
		col := i % columns
		row := i / columns
		x := col * cellW
		y := top + row*cellH

		canvas.Rect(x, y, cellW, cellH, styleGrid...)
		if cv.Cell.Selected {
			canvas.Rect(x+2, y+2, cellW-4, cellH-4, styleSelected...)
		}

		dayStyle := styleDay
		if cv.Cell.Tag != grid.TagCurrent {
			dayStyle = styleDayMuted
		}
		canvas.Text(x+10, y+24, fmt.Sprintf("%d", cv.Cell.DayNumber), dayStyle...)

		line := y + 44
		if cv.Summary.TotalEvents > 0 {
			canvas.Text(x+10, line, fmt.Sprintf("%d events", cv.Summary.TotalEvents), styleBadge...)
			line += 16
		}
		if cv.Summary.TotalTasks > 0 {
			canvas.Text(x+10, line, fmt.Sprintf("%d/%d tasks", cv.Summary.FinishedTasks, cv.Summary.TotalTasks), styleBadge...)
			line += 16
		}
		if cv.Summary.TotalXP > 0 {
			canvas.Text(x+10, line, fmt.Sprintf("%d/%d xp", cv.Summary.EarnedXP, cv.Summary.TotalXP), styleXP...)
		}
	}

	canvas.End()
}

// short abbreviates a weekday name for the column header.
func short(name string) string {
	if len(name) > 3 {
		return name[:3]
	}
	return name
}
