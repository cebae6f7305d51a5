package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/campaign-service/internal/model"
)

func TestMaxDaysOld(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		since time.Time
		want  int
	}{
		{"zero cursor means no window", time.Time{}, 0},
		{"same day rounds up to one", now.Add(-2 * time.Hour), 1},
		{"three days ago", now.AddDate(0, 0, -3), 4},
		{"cursor in the future clamps to one", now.Add(time.Hour), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, maxDaysOld(tc.since, now))
		})
	}
}

// The adapter forwards the discovery cursor as max_days_old so an
// incremental run does not re-fetch the whole posting history.
func TestAPISource_FetchSendsCursorWindow(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1,"results":[{
			"id":"adz-1","title":"Backend Engineer",
			"company":{"display_name":"Acme"},
			"location":{"display_name":"Paris"},
			"redirect_url":"https://jobs.example/1",
			"created":"2026-08-30T08:00:00Z"}]}`))
	}))
	defer srv.Close()

	s := NewAPISource("id", "key", "fr")
	s.baseURL = srv.URL

	criteria := model.SearchCriteria{
		TargetRoles: []string{"Backend Engineer"},
		Locations:   []string{"Paris"},
	}
	since := time.Now().UTC().AddDate(0, 0, -2)

	results, err := s.Fetch(context.Background(), "camp-1", criteria, since)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "adz-1", results[0].ExternalID)
	assert.Equal(t, "Acme", results[0].Company)

	assert.Equal(t, "Backend Engineer", query.Get("what"))
	assert.Equal(t, "Paris", query.Get("where"))
	assert.Equal(t, "3", query.Get("max_days_old"))
}

// The first run has no cursor and must not constrain the search window.
func TestAPISource_FirstRunHasNoWindow(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":0,"results":[]}`))
	}))
	defer srv.Close()

	s := NewAPISource("id", "key", "fr")
	s.baseURL = srv.URL

	_, err := s.Fetch(context.Background(), "camp-1",
		model.SearchCriteria{TargetRoles: []string{"SRE"}}, time.Time{})
	require.NoError(t, err)
	assert.False(t, query.Has("max_days_old"))
}
