package openlibrary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return NewClient(opts)
}

func TestSearchParams_Values(t *testing.T) {
	v := SearchParams{Field: "author", Value: "Ursula Le Guin", Sort: "rating", Limit: 8}.Values()

	assert.Equal(t, "Ursula Le Guin", v.Get("author"))
	assert.Equal(t, "rating", v.Get("sort"))
	assert.Equal(t, "8", v.Get("limit"))
	assert.Empty(t, v.Get("q"))
	assert.Contains(t, v.Get("fields"), "ratings_average")
}

func TestSearchParams_DefaultsToGeneralField(t *testing.T) {
	v := SearchParams{Value: "dune"}.Values()

	assert.Equal(t, "dune", v.Get("q"))
	assert.Empty(t, v.Get("limit"))
	assert.Empty(t, v.Get("sort"))
}

func TestClient_Search(t *testing.T) {
	var gotPath, gotTitle, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.URL.Query().Get("title")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"numFound":42,"docs":[{"key":"/works/OL1W","title":"Dune","author_name":["Frank Herbert"],"cover_i":123,"ratings_average":4.26,"first_publish_year":1965}]}`))
	}, Options{UserAgent: "bookfinder-test"})

	res, err := c.Search(context.Background(), SearchParams{Field: "title", Value: "dune", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, "/search.json", gotPath)
	assert.Equal(t, "dune", gotTitle)
	assert.Equal(t, "bookfinder-test", gotUA)
	assert.Equal(t, 42, res.NumFound)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, "/works/OL1W", res.Docs[0].Key)
	require.NotNil(t, res.Docs[0].CoverID)
	assert.Equal(t, int64(123), *res.Docs[0].CoverID)
	require.NotNil(t, res.Docs[0].RatingsAverage)
	assert.InDelta(t, 4.26, *res.Docs[0].RatingsAverage, 1e-9)
}

func TestClient_Search_NonOKStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, Options{})

	_, err := c.Search(context.Background(), SearchParams{Value: "x"})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
}

func TestClient_Search_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"numFound":0,"docs":[]}`))
	}, Options{MaxRetries: 2})

	res, err := c.Search(context.Background(), SearchParams{Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumFound)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Search_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}, Options{MaxRetries: 3})

	_, err := c.Search(context.Background(), SearchParams{Value: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Search_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Search(context.Background(), SearchParams{Value: "x"})
	require.Error(t, err)
}

func TestClient_Search_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs":`))
	}, Options{})

	_, err := c.Search(context.Background(), SearchParams{Value: "x"})
	require.Error(t, err)
}

func TestClient_Search_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, Options{})

	for i := 0; i < 5; i++ {
		_, err := c.Search(context.Background(), SearchParams{Value: "x"})
		require.Error(t, err)
	}

	_, err := c.Search(context.Background(), SearchParams{Value: "x"})
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestCoverURL(t *testing.T) {
	assert.Equal(t, "https://covers.openlibrary.org/b/id/123-M.jpg", CoverURL(123))
}
