package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const competitionsJSON = `{
  "competitions": [
    {"id": "sr:competition:1", "name": "Doha", "type": "singles", "gender": "men",
     "category": {"id": "sr:category:3", "name": "ATP"}},
    {"id": "sr:competition:2", "name": "Doha Doubles", "parent_id": "sr:competition:1", "type": "doubles", "gender": "men",
     "category": {"id": "sr:category:3", "name": "ATP"}},
    {"id": "sr:competition:3", "name": "ITF Antalya", "type": "singles", "gender": "women",
     "category": {"id": "sr:category:785", "name": "ITF Women"}},
    {"id": "sr:competition:4", "name": "Exhibition"}
  ]
}`

const complexesJSON = `{
  "complexes": [
    {"id": "sr:complex:1", "name": "Khalifa Complex",
     "venues": [
       {"id": "sr:venue:1", "name": "Centre Court", "city_name": "Doha", "country_name": "Qatar", "country_code": "QAT", "timezone": "Asia/Qatar"},
       {"id": "sr:venue:2", "name": "Court 1", "city_name": "Doha", "country_name": "Qatar", "country_code": "QAT", "timezone": "Asia/Qatar"}
     ]},
    {"id": "sr:complex:2", "name": "Empty Complex"}
  ]
}`

const groupedRankingsJSON = `{
  "rankings": [
    {"type_id": 1, "name": "ATP", "competitor_rankings": [
      {"rank": 1, "movement": 0, "points": 9000, "competitions_played": 20,
       "competitor": {"id": "sr:competitor:1", "name": "Pair, One", "country": "Spain", "country_code": "ESP", "abbreviation": "PAI"}},
      {"rank": 2, "movement": -1, "points": 8500.5, "competitions_played": 18,
       "competitor": {"id": "sr:competitor:2", "name": "Pair, Two", "country": "Italy", "country_code": "ITA"}}
    ]},
    {"type_id": 2, "name": "WTA", "competitor_rankings": [
      {"rank": 1, "movement": 3, "points": 7000, "competitions_played": 15,
       "competitor": {"id": "sr:competitor:3", "name": "Pair, Three", "country": "Czechia"}},
      {"points": 10, "competitor": {"id": "sr:competitor:4", "name": "Unranked"}}
    ]}
  ]
}`

const flatRankingsJSON = `{
  "rankings": [
    {"rank": 5, "movement": 2, "points": 4000, "competitions_played": 12,
     "competitor": {"id": "sr:competitor:10", "name": "Fixture, Player", "country": "France", "country_code": "FRA"}}
  ]
}`

func testClient(t *testing.T, baseURL, fixtureDir string) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:         baseURL,
		APIKey:          "secret",
		FixtureDir:      fixtureDir,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, zap.NewNop())
}

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCompetitionsCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/competitions.json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(competitionsJSON))
	}))
	defer srv.Close()

	tables, err := NewCompetitions(testClient(t, srv.URL, "")).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, tables.Categories, 2)
	assert.Equal(t, "sr:category:3", tables.Categories[0].ID)
	assert.Equal(t, "ATP", tables.Categories[0].Name)
	assert.Equal(t, "ITF Women", tables.Categories[1].Name)

	require.Len(t, tables.Competitions, 4)
	assert.Equal(t, "sr:competition:1", tables.Competitions[1].ParentID)
	assert.Equal(t, "sr:category:785", tables.Competitions[2].CategoryID)
	assert.Empty(t, tables.Competitions[3].CategoryID)

	assert.Nil(t, tables.Rankings)
	assert.Nil(t, tables.Venues)
}

func TestCompetitionsMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generated_at": "2024-01-01"}`))
	}))
	defer srv.Close()

	_, err := NewCompetitions(testClient(t, srv.URL, "")).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestComplexesCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(complexesJSON))
	}))
	defer srv.Close()

	tables, err := NewComplexes(testClient(t, srv.URL, "")).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, tables.Complexes, 2)
	require.Len(t, tables.Venues, 2)
	for _, v := range tables.Venues {
		assert.Equal(t, "sr:complex:1", v.ComplexID)
		assert.Equal(t, "QAT", v.CountryCode)
	}
	assert.Equal(t, "Asia/Qatar", tables.Venues[0].Timezone)
}

func TestDoublesRankingsGrouped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(groupedRankingsJSON))
	}))
	defer srv.Close()

	tables, err := NewDoublesRankings(testClient(t, srv.URL, "")).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, tables.Rankings, 3, "entry without rank is dropped")
	require.Len(t, tables.Competitors, 3)

	assert.Equal(t, "sr:competitor:2", tables.Rankings[1].CompetitorID)
	assert.Equal(t, -1, tables.Rankings[1].Movement)
	assert.InDelta(t, 8500.5, tables.Rankings[1].Points, 1e-9)
	assert.Equal(t, 18, tables.Rankings[1].CompetitionsPlayed)
	assert.Equal(t, "PAI", tables.Competitors[0].Abbreviation)
	assert.Empty(t, tables.Competitors[2].CountryCode)
}

func TestNotFoundFallsBackToFixture(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFixture(t, dir, "doubles_rankings.json", flatRankingsJSON)

	tables, err := NewDoublesRankings(testClient(t, srv.URL, dir)).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "404 is not retried")

	require.Len(t, tables.Rankings, 1)
	assert.Equal(t, 5, tables.Rankings[0].Rank)
	assert.Equal(t, "Fixture, Player", tables.Competitors[0].Name)
}

func TestNotFoundWithoutFixture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewComplexes(testClient(t, srv.URL, t.TempDir())).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRouteUnavailable))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(complexesJSON))
	}))
	defer srv.Close()

	tables, err := NewComplexes(testClient(t, srv.URL, "")).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, tables.Complexes, 2)
}

func TestRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewComplexes(testClient(t, srv.URL, "")).Collect(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := NewCompetitions(testClient(t, srv.URL, "")).Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestNoAPIKeyReadsFixtures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "competitions.json", competitionsJSON)

	client := NewClient(Options{BaseURL: "http://127.0.0.1:1", FixtureDir: dir}, nil)
	tables, err := NewCompetitions(client).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, tables.Competitions, 4)
}

func TestCollectAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, string(EndpointCompetitions)):
			w.Write([]byte(competitionsJSON))
		case strings.HasSuffix(r.URL.Path, string(EndpointComplexes)):
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Write([]byte(groupedRankingsJSON))
		}
	}))
	defer srv.Close()

	tables, err := CollectAll(context.Background(), All(testClient(t, srv.URL, "")), 0, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "complexes")

	assert.Len(t, tables.Categories, 2)
	assert.Len(t, tables.Competitions, 4)
	assert.Nil(t, tables.Complexes)
	assert.Len(t, tables.Rankings, 3)
}

func TestCollectAllHonoursContext(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "competitions.json", competitionsJSON)
	client := NewClient(Options{FixtureDir: dir}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tables, err := CollectAll(ctx, All(client), time.Hour, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, tables.Competitions, 4, "first source runs before the first pause")
}
