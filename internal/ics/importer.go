// Package ics imports iCalendar subscriptions as raw event records.
// Parsing keeps VEVENTs intact; expansion resolves recurrence rules into
// concrete dated occurrences inside a rolling window around today.
package ics

import (
	"time"

	"github.com/oxifinch/dayblazer-calendar/internal/model"
)

// Importer decodes ICS payloads for one subscription into records the
// planner can ingest. Occurrences outside the horizon window are dropped;
// a calendar that repeats forever stays bounded.
type Importer struct {
	sourceID string
	loc      *time.Location
	horizon  time.Duration
	now      func() time.Time
}

// NewImporter builds an Importer for the given subscription. horizonDays
// bounds expansion to [today-horizon, today+horizon] in loc.
func NewImporter(sourceID string, loc *time.Location, horizonDays int) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = 60
	}
	return &Importer{
		sourceID: sourceID,
		loc:      loc,
		horizon:  time.Duration(horizonDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Decode parses and expands one ICS payload. It matches the feed decoder
// signature so ICS subscriptions plug into the same source machinery as
// JSON feeds.
func (im *Importer) Decode(body []byte) ([]model.RawEvent, error) {
	events, err := Parse(im.sourceID, body)
	if err != nil {
		return nil, err
	}

	now := im.now().In(im.loc)
	result, err := Expand(events, ExpandConfig{
		DisplayLocation:        im.loc,
		RangeStart:             now.Add(-im.horizon),
		RangeEnd:               now.Add(im.horizon),
		MaxOccurrencesPerEvent: 0,
	})
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}
