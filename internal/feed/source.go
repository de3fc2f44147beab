// Package feed loads raw event records from configured external sources.
// A source is a URL (or local file) plus a decoder for its payload; the
// fetch layer adds HTTP caching so flaky feeds degrade to stale data.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oxifinch/dayblazer-calendar/internal/dates"
	"github.com/oxifinch/dayblazer-calendar/internal/log"
	"github.com/oxifinch/dayblazer-calendar/internal/model"
)

// DecodeFunc turns a raw feed body into event records.
type DecodeFunc func(body []byte) ([]model.RawEvent, error)

// envelope is the JSON feed document shape.
type envelope struct {
	Events []model.RawEvent `json:"events"`
}

// DecodeJSON decodes the native feed format, an object holding a sequence
// of raw event records under "events".
func DecodeJSON(body []byte) ([]model.RawEvent, error) {
	var doc envelope
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("feed: decode json: %w", err)
	}
	return doc.Events, nil
}

// Normalize prepares fetched records for the collection. Records without an
// ID get a generated one so update-by-ID stays usable; records whose date
// will never resolve to a day are kept as delivered but logged, per the
// degrade-visibly policy.
func Normalize(sourceID string, raws []model.RawEvent) []model.RawEvent {
	for i := range raws {
		if strings.TrimSpace(raws[i].ID) == "" {
			raws[i].ID = uuid.New().String()
			log.Debug("assigned id to feed record", "source", sourceID, "id", raws[i].ID, "name", raws[i].Name)
		}
		if _, err := dates.ParseKey(raws[i].Date); err != nil {
			log.Info("feed record date does not resolve to a day",
				"source", sourceID, "id", raws[i].ID, "date", raws[i].Date)
		}
	}
	return raws
}

// Source is one configured feed, ready to be loaded by the planner.
type Source struct {
	id      string
	name    string
	url     string
	fetcher *Fetcher
	decode  DecodeFunc
}

func NewSource(id, name, url string, fetcher *Fetcher, decode DecodeFunc) *Source {
	return &Source{id: id, name: name, url: url, fetcher: fetcher, decode: decode}
}

func (s *Source) ID() string {
	return s.id
}

// Load fetches, decodes and normalizes the feed.
func (s *Source) Load(ctx context.Context) ([]model.RawEvent, error) {
	log.Debug("loading feed", "source", s.id, "name", s.name)
	res, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", s.id, err)
	}
	raws, err := s.decode(res.Body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", s.id, err)
	}
	if res.FromCache {
		log.Info("feed served from cache", "source", s.id, "records", len(raws))
	}
	return Normalize(s.id, raws), nil
}
