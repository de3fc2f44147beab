// Package web serves the schedule API and the embedded widget page. All
// month and day payloads are derived from the planner's collection on
// request; a short-lived cache keeps repeated widget polls cheap.
package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oxifinch/dayblazer-calendar/internal/config"
	"github.com/oxifinch/dayblazer-calendar/internal/dates"
	appLog "github.com/oxifinch/dayblazer-calendar/internal/log"
	"github.com/oxifinch/dayblazer-calendar/internal/model"
	"github.com/oxifinch/dayblazer-calendar/internal/planner"
	"github.com/oxifinch/dayblazer-calendar/internal/svg"
)

// monthCacheTTL bounds how stale a cached month payload may get. The
// widget polls far more often than the collection changes.
const monthCacheTTL = 30 * time.Second

// Server provides the HTTP API and the widget page.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	planner *planner.Planner
	router  *mux.Router

	now func() time.Time

	// In-memory cache for month payloads, keyed by reference date. It is
	// dropped whenever the collection changes.
	monthMu    sync.RWMutex
	monthCache map[string]monthCacheEntry
}

// embeddedStatic contains the widget page served at /. The capture
// pipeline screenshots this same page.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server around an already initialized planner.
func NewServer(cfg *config.Config, loc *time.Location, p *planner.Planner) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		cfg:        cfg,
		loc:        loc,
		planner:    p,
		router:     mux.NewRouter(),
		now:        time.Now,
		monthCache: make(map[string]monthCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the full middleware chain for this server. Basic auth,
// when configured, sits inside the request-ID and logging layers so
// rejected requests still show up in the log.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return addRequestID(logRequest(h))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth. /health stays open so probes work without credentials.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Dayblazer", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/month", s.handleMonth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/days/{date}", s.handleDay).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events/{id}", s.handleUpdateEvent).Methods(http.MethodPut)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/calendar.svg", s.handleCalendarSVG).Methods(http.MethodGet)
	s.router.HandleFunc("/preview.png", s.servePreview("preview.png")).Methods(http.MethodGet)
	s.router.HandleFunc("/preview-small.png", s.servePreview("preview-small.png")).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Everything else falls back to the embedded widget page.
	s.router.PathPrefix("/").Handler(s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// cellDTO is the JSON shape of one grid cell plus its day summary.
type cellDTO struct {
	Tag       string        `json:"tag"`
	DayNumber int           `json:"dayNumber"`
	DateKey   string        `json:"dateKey"`
	Selected  bool          `json:"selected"`
	Summary   model.Summary `json:"summary"`
}

// monthResponse is the JSON response shape for /api/month.
type monthResponse struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	MonthName string    `json:"monthName"`
	Weekdays  []string  `json:"weekdays"`
	Capacity  int       `json:"capacity"`
	Timezone  string    `json:"timezone"`
	Cells     []cellDTO `json:"cells"`
}

// monthCacheEntry holds a cached /api/month payload and its timestamp.
type monthCacheEntry struct {
	resp      monthResponse
	updatedAt time.Time
}

// monthRef resolves the year/month/day query parameters into the grid
// reference date.
//
// GET /api/month?year=2024&month=5&day=15
//   - year, month: default to the current month in the display timezone
//   - day: selects the highlighted cell; defaults to today when the
//     requested month is the current one and to the 1st otherwise
//
// An out-of-range day falls back to the default instead of failing, so a
// stale widget asking for day 31 in a short month still gets a grid.
func (s *Server) monthRef(q url.Values) (time.Time, error) {
	now := s.now().In(s.loc)

	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if year < 1 || year > 9999 {
		return time.Time{}, errBadParam("year")
	}
	if month < 1 || month > 12 {
		return time.Time{}, errBadParam("month")
	}

	defaultDay := 1
	if year == now.Year() && month == int(now.Month()) {
		defaultDay = now.Day()
	}
	day := parseIntDefault(q.Get("day"), defaultDay)
	if day < 1 || day > dates.DaysIn(year, time.Month(month)) {
		day = defaultDay
	}

	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, s.loc), nil
}

type paramError string

func errBadParam(name string) error { return paramError(name) }

func (e paramError) Error() string { return "invalid " + string(e) + " parameter" }

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	ref, err := s.monthRef(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := dates.FormatKey(ref.Day(), int(ref.Month()), ref.Year())
	cacheNow := time.Now()

	s.monthMu.RLock()
	entry, ok := s.monthCache[key]
	s.monthMu.RUnlock()
	if ok && cacheNow.Sub(entry.updatedAt) < monthCacheTTL {
		writeJSON(w, http.StatusOK, entry.resp)
		return
	}

	resp := s.buildMonthResponse(ref)

	s.monthMu.Lock()
	s.monthCache[key] = monthCacheEntry{resp: resp, updatedAt: time.Now()}
	s.monthMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildMonthResponse(ref time.Time) monthResponse {
	view := s.planner.MonthView(ref)

	cells := make([]cellDTO, 0, len(view.Cells))
	for _, cv := range view.Cells {
		cells = append(cells, cellDTO{
			Tag:       string(cv.Cell.Tag),
			DayNumber: cv.Cell.DayNumber,
			DateKey:   cv.Cell.Key(),
			Selected:  cv.Cell.Selected,
			Summary:   cv.Summary,
		})
	}

	return monthResponse{
		Year:      view.Year,
		Month:     int(view.Month),
		MonthName: view.MonthName,
		Weekdays:  view.Weekdays,
		Capacity:  view.Capacity,
		Timezone:  s.loc.String(),
		Cells:     cells,
	}
}

// invalidateMonthCache drops all cached month payloads. Called whenever
// the collection changes underneath them.
func (s *Server) invalidateMonthCache() {
	s.monthMu.Lock()
	s.monthCache = make(map[string]monthCacheEntry)
	s.monthMu.Unlock()
}

// dayResponse is the JSON response shape for /api/days/{date}.
type dayResponse struct {
	Date    string           `json:"date"`
	Events  []model.RawEvent `json:"events"`
	Summary model.Summary    `json:"summary"`
}

// handleDay returns the ordered events and summary for one date key. A key
// that does not name a real calendar date is logged and answered with 404;
// a valid date with no events is a normal empty day.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["date"]

	d, err := dates.ParseKey(key)
	if err != nil {
		appLog.Info("day lookup rejected", "key", key, "reason", err.Error())
		writeError(w, http.StatusNotFound, "unknown date key")
		return
	}

	day := s.planner.DayView(d)

	events := make([]model.RawEvent, 0, len(day.Events))
	for _, ev := range day.Events {
		events = append(events, ev.Raw())
	}

	writeJSON(w, http.StatusOK, dayResponse{
		Date:    d.Key(),
		Events:  events,
		Summary: day.Summarize(),
	})
}

// eventsResponse is the JSON response shape for /api/events. It mirrors
// the feed envelope, so a dump of this endpoint can be re-ingested as a
// source.
type eventsResponse struct {
	Events   []model.RawEvent `json:"events"`
	LoadedAt time.Time        `json:"loadedAt"`
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	evs := s.planner.Events()
	raws := make([]model.RawEvent, 0, len(evs))
	for _, ev := range evs {
		raws = append(raws, ev.Raw())
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:   raws,
		LoadedAt: s.planner.LoadedAt(),
	})
}

// statusResponse is the JSON response shape for mutating endpoints.
type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// handleUpdateEvent replaces the fields of one event. The identity comes
// from the URL; an ID inside the payload is ignored.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var raw model.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	if !s.planner.Update(id, raw) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	s.invalidateMonthCache()
	writeJSON(w, http.StatusOK, statusResponse{Status: "updated", ID: id})
}

// refreshResponse is the JSON response shape for /api/refresh.
type refreshResponse struct {
	Status   string    `json:"status"`
	Events   int       `json:"events"`
	LoadedAt time.Time `json:"loadedAt"`
}

// handleRefresh triggers an immediate reload of every configured source,
// outside the cron schedule.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed: no source delivered data")
		return
	}

	s.invalidateMonthCache()
	writeJSON(w, http.StatusOK, refreshResponse{
		Status:   "ok",
		Events:   len(s.planner.Events()),
		LoadedAt: s.planner.LoadedAt(),
	})
}

// handleCalendarSVG renders the month grid as a standalone SVG image. It
// accepts the same query parameters as /api/month.
func (s *Server) handleCalendarSVG(w http.ResponseWriter, r *http.Request) {
	ref, err := s.monthRef(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := s.planner.MonthView(ref)

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	svg.Render(w, view)
}

// servePreview serves a capture artifact from the data directory.
// http.ServeFile answers 404 when no capture has run yet.
func (s *Server) servePreview(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.cfg.DataDir, name))
	}
}

// staticFileServer returns an http.Handler serving the embedded widget
// page from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "widget page not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Unknown /api/* paths get a JSON-friendly 404, never HTML.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
