package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/oxifinch/dayblazer-calendar/internal/dates"
	"github.com/oxifinch/dayblazer-calendar/internal/log"
	"github.com/oxifinch/dayblazer-calendar/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are rendered in. Nil
	// means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the inclusive expansion window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero picks the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult carries the expanded records plus the UIDs whose rules hit
// the occurrence cap.
type ExpandResult struct {
	Records       []model.RawEvent
	TruncatedUIDs []string
}

// Expand resolves parsed VEVENTs into dated records inside the window:
// single events, RRULE recurrence, EXDATE exceptions and RECURRENCE-ID
// overrides. Every record lands on the calendar day its occurrence starts
// on in the display timezone, typed as a plain event.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expansion range end before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides never expand on their own; they replace instances of their
	// base event, matched by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	order := make([]string, 0, len(events))

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	records := make([]model.RawEvent, 0)
	for _, uid := range order {
		overrides := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			recs, hitCap := expandEvent(ev, overrides, cfg)
			if hitCap {
				truncated = true
			}
			records = append(records, recs...)
		}

		if truncated {
			result.TruncatedUIDs = append(result.TruncatedUIDs, uid)
			log.Error("ics expansion truncated", errors.New("occurrence cap reached"),
				"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	result.Records = records
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingle(ev, overrides, cfg), false
	}
	return expandRecurring(ev, overrides, cfg)
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.RawEvent {
	var out []model.RawEvent

	if !rangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return out
	}

	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end = o.Start, o.End
		ev = o
	}

	out = append(out, record(ev, start, end, cfg.DisplayLocation))
	return out
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, bool) {
	out := make([]model.RawEvent, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		log.Error("ics rrule unparseable", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		// Align the exception with the event's own timezone.
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = day
			occEnd = day.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		instEv, start, end := ev, occStart, occEnd
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			instEv, start, end = o, o.Start, o.End
		}

		out = append(out, record(instEv, start, end, cfg.DisplayLocation))
	}

	return out, hitCap
}

// findOverrideForStart matches an override's RECURRENCE-ID against one
// instance start, compared as instants.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// record renders one occurrence as a raw event record. The record's day is
// the occurrence's start day in the display timezone; the ID carries the
// instance start so recurring instances stay individually addressable.
func record(ev ParsedEvent, start, end time.Time, loc *time.Location) model.RawEvent {
	startLocal := start.In(loc)
	endLocal := end.In(loc)

	raw := model.RawEvent{
		ID:          ev.UID + "/" + startLocal.Format(time.RFC3339),
		Name:        ev.Summary,
		Description: ev.Description,
		Date:        dates.FormatKey(startLocal.Day(), int(startLocal.Month()), startLocal.Year()),
		Type:        model.TypeEvent,
	}
	if ev.Location != "" {
		if raw.Description != "" {
			raw.Description += "\n"
		}
		raw.Description += ev.Location
	}

	if ev.AllDay {
		raw.StartTime = "00:00"
		raw.EndTime = "23:59"
	} else {
		raw.StartTime = startLocal.Format("15:04")
		raw.EndTime = endLocal.Format("15:04")
	}
	return raw
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
