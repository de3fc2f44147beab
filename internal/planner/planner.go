// Package planner owns the shared event collection and everything derived
// from it: per-day views, month grids with summaries, and the periodic
// refresh that rebuilds the collection from the configured sources.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oxifinch/dayblazer-calendar/internal/dates"
	"github.com/oxifinch/dayblazer-calendar/internal/grid"
	"github.com/oxifinch/dayblazer-calendar/internal/log"
	"github.com/oxifinch/dayblazer-calendar/internal/model"
)

// ErrAllSourcesFailed is returned by Refresh when no source delivered any
// data. The previous collection is kept in that case.
var ErrAllSourcesFailed = errors.New("planner: every source failed")

var (
	refreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dayblazer_refresh_total",
		Help: "Completed collection refreshes.",
	})
	refreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dayblazer_refresh_source_errors_total",
		Help: "Source loads that failed during refresh.",
	})
	eventsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dayblazer_events_loaded",
		Help: "Events currently held in the collection.",
	})
)

// Source delivers raw event records from one configured feed.
type Source interface {
	ID() string
	Load(ctx context.Context) ([]model.RawEvent, error)
}

// Notifier is told which reminders are due on the current day after each
// refresh. Implementations must tolerate being called with no listeners.
type Notifier interface {
	NotifyReminders(ctx context.Context, day dates.Date, reminders []model.Event) error
}

// Planner is the single writer of the event collection. Readers get
// snapshot copies; rebuilds replace the collection wholesale.
type Planner struct {
	mu       sync.RWMutex
	events   []model.Event
	loadedAt time.Time

	loc      *time.Location
	sources  []Source
	notifier Notifier
	now      func() time.Time
}

func New(loc *time.Location, sources []Source, notifier Notifier) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{
		loc:      loc,
		sources:  sources,
		notifier: notifier,
		now:      time.Now,
	}
}

// Rebuild replaces the whole collection from raw records. Views derived
// earlier are stale until re-derived; nothing is patched in place.
func (p *Planner) Rebuild(raws []model.RawEvent) {
	events := make([]model.Event, 0, len(raws))
	for _, raw := range raws {
		events = append(events, model.NewEvent(raw))
	}

	p.mu.Lock()
	p.events = events
	p.loadedAt = p.now()
	p.mu.Unlock()

	eventsLoaded.Set(float64(len(events)))
	log.Info("collection rebuilt", "events", len(events))
}

// Events returns a snapshot copy of the collection.
func (p *Planner) Events() []model.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Event, len(p.events))
	copy(out, p.events)
	return out
}

// LoadedAt reports when the collection was last rebuilt.
func (p *Planner) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt
}

// Update applies raw to the event with the given ID. An unknown ID is
// logged and ignored.
func (p *Planner) Update(id string, raw model.RawEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.events {
		if p.events[i].ID == id {
			p.events[i].Update(raw)
			return true
		}
	}
	log.Info("update target not found", "id", id)
	return false
}

// DayView derives the ordered view and summary for a single date.
func (p *Planner) DayView(d dates.Date) *model.Day {
	day := model.NewDay(d)
	day.Refresh(p.Events())
	return day
}

// CellView pairs a grid cell with the summary of its day.
type CellView struct {
	Cell    grid.Cell
	Summary model.Summary
}

// MonthView is a fully derived month: the grid plus display metadata.
type MonthView struct {
	Year      int
	Month     time.Month
	MonthName string
	Weekdays  []string
	Capacity  int
	Cells     []CellView
}

// MonthView builds the grid around ref and summarizes every cell's day
// against one collection snapshot.
func (p *Planner) MonthView(ref time.Time) MonthView {
	capacity := grid.CapacityFor(ref)
	cells := grid.Build(ref, capacity)
	events := p.Events()

	views := make([]CellView, 0, len(cells))
	for _, cell := range cells {
		day := model.NewDay(cell.Date)
		day.Refresh(events)
		views = append(views, CellView{Cell: cell, Summary: day.Summarize()})
	}

	return MonthView{
		Year:      ref.Year(),
		Month:     ref.Month(),
		MonthName: dates.MonthName(ref.Month()),
		Weekdays:  dates.WeekdayNames(),
		Capacity:  capacity,
		Cells:     views,
	}
}

// CellFor finds the cell holding the given date. A miss is reported to the
// caller, which is expected to log and skip whatever it was doing.
func CellFor(cells []grid.Cell, d dates.Date) (grid.Cell, bool) {
	for _, c := range cells {
		if c.Date == d {
			return c, true
		}
	}
	log.Debug("no grid cell for date", "date", d.Key())
	return grid.Cell{}, false
}

// Refresh runs the full pipeline: load every source, rebuild the
// collection from whatever arrived, then hand today's reminders to the
// notifier. Individual source failures are logged and skipped; only when
// every source fails is the previous collection kept and an error
// returned.
func (p *Planner) Refresh(ctx context.Context) error {
	var all []model.RawEvent
	failed := 0
	for _, src := range p.sources {
		raws, err := src.Load(ctx)
		if err != nil {
			refreshErrors.Inc()
			failed++
			log.Error("source load failed", err, "source", src.ID())
			continue
		}
		log.Debug("source loaded", "source", src.ID(), "records", len(raws))
		all = append(all, raws...)
	}

	if len(p.sources) > 0 && failed == len(p.sources) {
		return ErrAllSourcesFailed
	}

	p.Rebuild(all)
	refreshTotal.Inc()
	p.notifyDueReminders(ctx)
	return nil
}

func (p *Planner) notifyDueReminders(ctx context.Context) {
	if p.notifier == nil {
		return
	}
	today := dates.DateOf(p.now().In(p.loc))
	day := p.DayView(today)

	reminders := make([]model.Event, 0)
	for _, ev := range day.Events {
		if ev.Type == model.TypeReminder {
			reminders = append(reminders, ev)
		}
	}
	if len(reminders) == 0 {
		return
	}
	if err := p.notifier.NotifyReminders(ctx, today, reminders); err != nil {
		log.Error("reminder notification failed", err, "count", len(reminders))
	}
}
