package omdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/resilience"
	"github.com/sells-group/catalog-etl/internal/xref"
)

func testClient(srv *httptest.Server) Client {
	return NewClient("key",
		WithBaseURL(srv.URL+"/"),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	)
}

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
			return
		}
		switch q.Get("t") {
		case "":
			w.Write([]byte(`{"Response":"False","Error":"No movie title provided."}`))
		case "Spider-Man: No Way Home":
			assert.Equal(t, "2021", q.Get("y"))
			assert.Equal(t, "movie", q.Get("type"))
			assert.Equal(t, "json", q.Get("r"))
			w.Write([]byte(`{"Title":"Spider Man: No Way Home","Year":"2021","Type":"movie","imdbRating":"8.1","imdbVotes":"1,234","Response":"True"}`))
		case "Breaking Bad":
			assert.Equal(t, "series", q.Get("type"))
			w.Write([]byte(`{"Title":"Breaking Bad","Year":"2008–2013","Type":"series","imdbRating":"N/A","imdbVotes":"N/A","Response":"True"}`))
		case "Quota":
			w.Write([]byte(`{"Response":"False","Error":"Request limit reached!"}`))
		default:
			w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
		}
	}))
}

func TestAuthenticate(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	require.NoError(t, testClient(srv).Authenticate(context.Background()))

	bad := NewClient("nope", WithBaseURL(srv.URL+"/"))
	assert.Error(t, bad.Authenticate(context.Background()))
}

func TestTitle_Found(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	year := 2021
	resp, err := testClient(srv).Title(context.Background(), "Spider-Man: No Way Home", &year, "movie")
	require.NoError(t, err)
	assert.True(t, resp.Found())
	assert.Equal(t, "Spider Man: No Way Home", resp.Title)
	require.NotNil(t, resp.StartYear())
	assert.Equal(t, 2021, *resp.StartYear())
}

func TestTitle_NotFound(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	resp, err := testClient(srv).Title(context.Background(), "Zzzz", nil, "movie")
	require.NoError(t, err)
	assert.False(t, resp.Found())
	assert.Nil(t, Candidate(resp))
}

func TestTitle_RequestLimit(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	_, err := testClient(srv).Title(context.Background(), "Quota", nil, "movie")
	assert.True(t, errors.Is(err, ErrRequestLimit))
}

func TestCandidate_NotAvailableFields(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	resp, err := testClient(srv).Title(context.Background(), "Breaking Bad", nil, "series")
	require.NoError(t, err)
	c := Candidate(resp)
	require.NotNil(t, c)
	assert.True(t, c.Found)
	assert.Nil(t, c.RatingValue)
	assert.Nil(t, c.VoteCount)
	require.NotNil(t, c.ReturnedYear)
	assert.Equal(t, 2008, *c.ReturnedYear)
}

func TestLookup_ThroughResolver(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	year := 2021
	r := xref.NewResolver(Lookup{Client: testClient(srv)})
	res := r.ResolveAll(context.Background(), []model.SourceRecord{
		{CatalogID: 634649, Title: "Spider-Man: No Way Home", ReleaseYear: &year, EntityType: model.EntityMovie},
		{CatalogID: 1, Title: "Nothing Like This", EntityType: model.EntityMovie},
	}, match.DefaultPolicy())

	require.Len(t, res, 2)
	assert.Equal(t, match.ReasonAccepted, res[0].Verdict.Reason)
	require.NotNil(t, res[0].Record.RatingValue)
	assert.True(t, decimal.RequireFromString("8.1").Equal(*res[0].Record.RatingValue))
	assert.Equal(t, "1,234", *res[0].Record.VoteCount)
	assert.Equal(t, match.ReasonNoCandidateFound, res[1].Verdict.Reason)
}

func TestWithGate_ChargesRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gate := xref.NewGate(0, 1, 2)
	client := NewClient("key",
		WithBaseURL(srv.URL+"/"),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
		WithGate(gate),
	)
	r := xref.NewResolver(Lookup{Client: client}, xref.WithGate(gate))
	res := r.Resolve(context.Background(), model.SourceRecord{CatalogID: 1, Title: "Heat", EntityType: model.EntityMovie}, match.DefaultPolicy())

	assert.Error(t, res.Err)
	assert.Equal(t, int32(2), hits.Load(), "the third attempt is refused by the quota")
	assert.Equal(t, 2, gate.Used())
	assert.Equal(t, 0, gate.Remaining())
}
