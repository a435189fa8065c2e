package greenhouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/normalize"
	"jobwatch-engine/internal/sources"
)

const board = `{"jobs":[
  {"id":1,"title":"Senior Marketing Manager","absolute_url":"https://boards.greenhouse.io/acme/jobs/1",
   "location":{"name":"New York, NY, United States"},"offices":[{"name":"New York"}],"updated_at":"2026-09-30T10:00:00-04:00"},
  {"id":2,"title":"Engineer","absolute_url":"https://boards.greenhouse.io/acme/jobs/2","location":{"name":"Austin, TX"}}
]}`

func TestFetchMapsBoardJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme/jobs":
			_, _ = w.Write([]byte(board))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := New([]config.Company{{Slug: "acme", Name: "Acme"}, {Slug: "ghost"}}, sources.NewClient(time.Second, nil))
	s.BaseURL = srv.URL

	recs, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	c, ok := normalize.Candidate(s.Name(), recs[0])
	require.True(t, ok)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1", c.Identity)
	assert.Equal(t, "Acme", c.Company)
	assert.Equal(t, "Senior Marketing Manager", c.Title)
	assert.Equal(t, "New York, NY, United States", c.Location)
	assert.Contains(t, c.LocationEvidence, "New York, NY, United States")
	assert.Equal(t, "Posted 2026-09-30", c.Notes)
}

func TestFetchAllCompaniesDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := New([]config.Company{{Slug: "acme"}}, sources.NewClient(time.Second, nil))
	s.BaseURL = srv.URL

	_, err := s.Fetch(context.Background())
	assert.Error(t, err)
}
