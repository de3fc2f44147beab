package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxifinch/dayblazer-calendar/internal/cache"
	"github.com/oxifinch/dayblazer-calendar/internal/model"
)

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "feeds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDecodeJSON(t *testing.T) {
	body := []byte(`{
		"events": [
			{"id": "t-1", "name": "Write report", "date": "05-03-2024",
			 "startTime": "09:00", "endTime": "10:00",
			 "type": "task", "difficulty": 2, "finished": false},
			{"id": "r-1", "name": "Standup", "date": "05-03-2024",
			 "startTime": "08:45", "type": "reminder"}
		]
	}`)

	raws, err := DecodeJSON(body)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "t-1", raws[0].ID)
	require.Equal(t, model.TypeTask, raws[0].Type)
	require.Equal(t, 2, raws[0].Difficulty)
	require.Equal(t, "08:45", raws[1].StartTime)
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	_, err := DecodeJSON([]byte("BEGIN:VCALENDAR"))
	require.Error(t, err)
}

func TestDecodeJSONEmptyDocument(t *testing.T) {
	raws, err := DecodeJSON([]byte(`{}`))
	require.NoError(t, err)
	require.Empty(t, raws)
}

func TestNormalize(t *testing.T) {
	raws := Normalize("test", []model.RawEvent{
		{ID: "keep-me", Name: "a", Date: "01-01-2024"},
		{ID: "  ", Name: "b", Date: "01-01-2024"},
		{ID: "bad-date", Name: "c", Date: "tomorrow"},
	})

	require.Equal(t, "keep-me", raws[0].ID)
	require.NotEmpty(t, raws[1].ID)
	require.NotEqual(t, "  ", raws[1].ID)
	// Malformed dates are carried through untouched.
	require.Equal(t, "tomorrow", raws[2].Date)
}

func TestFetchRevalidatesWithETag(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `{"events":[]}`)
	}))
	defer srv.Close()

	f := NewFetcher(testStore(t))

	first, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.False(t, first.FromCache)
	require.JSONEq(t, `{"events":[]}`, string(first.Body))

	second, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.Equal(t, first.Body, second.Body)
	require.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchFallsBackToCacheOnServerError(t *testing.T) {
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"events":[]}`)
	}))
	defer srv.Close()

	f := NewFetcher(testStore(t))

	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	failing = true
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, res.FromCache)
	require.JSONEq(t, `{"events":[]}`, string(res.Body))
}

func TestFetchFallsBackToCacheWhenServerGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"events":[]}`)
	}))

	f := NewFetcher(testStore(t))
	url := srv.URL

	_, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)

	srv.Close()
	res, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.True(t, res.FromCache)
}

func TestFetchErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(testStore(t))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"events":[]}`), 0o600))

	f := NewFetcher(nil)

	for _, url := range []string{path, "file://" + path} {
		res, err := f.Fetch(context.Background(), url)
		require.NoError(t, err)
		require.JSONEq(t, `{"events":[]}`, string(res.Body))
	}
}

func TestSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	doc := `{"events":[
		{"id": "a", "name": "Planned", "date": "01-06-2024", "startTime": "10:00", "type": "event"},
		{"name": "No id yet", "date": "01-06-2024", "startTime": "12:00", "type": "task", "difficulty": 1}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	src := NewSource("local", "Local feed", path, NewFetcher(nil), DecodeJSON)
	require.Equal(t, "local", src.ID())

	raws, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "a", raws[0].ID)
	require.NotEmpty(t, raws[1].ID)
}

func TestSourceLoadDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	src := NewSource("local", "Local feed", path, NewFetcher(nil), DecodeJSON)
	_, err := src.Load(context.Background())
	require.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	require.Equal(t, "https://example.com/...(redacted)",
		redactURL("https://example.com/cal/private.json?token=abcd"))
	require.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com"))
	require.Equal(t, "/tmp/feed.json", redactURL("/tmp/feed.json"))
}
