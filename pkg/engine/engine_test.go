package engine

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// scenarioTables is the three-competitor scenario: two share rank 1, two
// share 100 points.
func scenarioTables() *tennis.Tables {
	return &tennis.Tables{
		Competitors: []tennis.Competitor{
			{ID: "1", Name: "One", Country: "US"},
			{ID: "2", Name: "Two", Country: "US"},
			{ID: "3", Name: "Three", Country: "FR"},
		},
		Rankings: []tennis.Ranking{
			{CompetitorID: "1", Rank: 1, Points: 100, Movement: 2},
			{CompetitorID: "2", Rank: 1, Points: 90, Movement: -1},
			{CompetitorID: "3", Rank: 3, Points: 100, Movement: 0},
		},
	}
}

// fullTables covers every optional join, including dangling foreign keys.
func fullTables() *tennis.Tables {
	return &tennis.Tables{
		Categories: []tennis.Category{
			{ID: "cat-itf-m", Name: "ITF Men"},
			{ID: "cat-itf-w", Name: "ITF Women"},
			{ID: "cat-ch", Name: "Challenger"},
		},
		Competitions: []tennis.Competition{
			{ID: "comp-1", Name: "M25 Lima", CategoryID: "cat-itf-m", Type: "singles", Gender: "men"},
			{ID: "comp-2", Name: "W15 Cairo", CategoryID: "cat-itf-w", Type: "doubles", Gender: "women"},
			{ID: "comp-3", Name: "Lyon Challenger", CategoryID: "cat-ch", Type: "doubles", Gender: "men"},
			{ID: "comp-4", Name: "Orphan Cup", CategoryID: "NA"},
			{ID: "comp-5", Name: "M15 Monastir", CategoryID: "cat-itf-m"},
		},
		Venues: []tennis.Venue{
			{ID: "ven-1", Name: "Centre Court", CityName: "Lima", CountryName: "Peru", Timezone: "America/Lima"},
		},
		Competitors: []tennis.Competitor{
			{ID: "p1", Name: "Alpha", Country: "Peru"},
			{ID: "p2", Name: "Bravo", Country: "Egypt"},
			{ID: "p3", Name: "Charlie", Country: "NA"},
			{ID: "p4", Name: "Delta", Country: ""},
			{ID: "p1", Name: "Alpha duplicate", Country: "Chile"},
		},
		Rankings: []tennis.Ranking{
			{CompetitorID: "p1", Rank: 4, Points: 900, Movement: 3, CompetitionsPlayed: 20, CompetitionID: "comp-1", VenueID: "ven-1"},
			{CompetitorID: "p2", Rank: 12, Points: 700, Movement: -2, CompetitionsPlayed: 18, CompetitionID: "comp-2"},
			{CompetitorID: "p3", Rank: 60, Points: 300, Movement: 0, CompetitionsPlayed: 11, CompetitionID: "comp-3"},
			{CompetitorID: "p4", Rank: 150, Points: 50, Movement: 5, CompetitionsPlayed: 4, CompetitionID: "comp-4"},
			{CompetitorID: "p9", Rank: 8, Points: 650, Movement: -1, CompetitionsPlayed: 15, CompetitionID: "missing", VenueID: "missing"},
			{CompetitorID: "p1", Rank: 9, Points: 600, Movement: 0, CompetitionsPlayed: 9, CompetitionID: "comp-5"},
			{CompetitorID: "p2", Rank: 45, Points: 320, Movement: 1, CompetitionsPlayed: 7},
		},
	}
}

func mustView(t *testing.T, tables *tennis.Tables) []Row {
	t.Helper()
	view, err := BuildView(tables)
	require.NoError(t, err)
	return view
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.CompetitorID
	}
	return out
}

func str(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestBuildViewCardinality(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*tennis.Tables)
	}{
		{name: "all tables", mutate: func(*tennis.Tables) {}},
		{name: "no competitions", mutate: func(tb *tennis.Tables) { tb.Competitions = nil }},
		{name: "no categories", mutate: func(tb *tennis.Tables) { tb.Categories = nil }},
		{name: "no venues", mutate: func(tb *tennis.Tables) { tb.Venues = nil }},
		{name: "only rankings and competitors", mutate: func(tb *tennis.Tables) {
			tb.Competitions, tb.Categories, tb.Venues, tb.Complexes = nil, nil, nil, nil
		}},
		{name: "empty competitors", mutate: func(tb *tennis.Tables) { tb.Competitors = []tennis.Competitor{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := fullTables()
			tt.mutate(tables)
			view := mustView(t, tables)
			assert.Len(t, view, len(tables.Rankings))
			assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p9", "p1", "p2"}, ids(view))
		})
	}
}

func TestBuildViewJoins(t *testing.T) {
	view := mustView(t, fullTables())

	first := view[0]
	assert.Equal(t, "Alpha", str(first.Name), "first competitor row wins on duplicate keys")
	assert.Equal(t, "Peru", str(first.Country))
	assert.Equal(t, "M25 Lima", str(first.CompetitionName))
	assert.Equal(t, "ITF Men", str(first.CategoryName))
	assert.Equal(t, "Centre Court", str(first.VenueName))
	assert.Equal(t, "America/Lima", str(first.Timezone))

	orphanCategory := view[3]
	assert.Equal(t, "Orphan Cup", str(orphanCategory.CompetitionName))
	assert.Nil(t, orphanCategory.CategoryID)
	assert.Nil(t, orphanCategory.CategoryName)

	unknown := view[4]
	assert.Nil(t, unknown.Name, "missing competitor keeps the ranking with null fields")
	assert.Equal(t, "missing", str(unknown.CompetitionID))
	assert.Nil(t, unknown.CompetitionName)
	assert.Equal(t, "missing", str(unknown.VenueID))
	assert.Nil(t, unknown.VenueName)

	noCompetition := view[6]
	assert.Nil(t, noCompetition.CompetitionID)
	assert.Nil(t, noCompetition.VenueID)
}

func TestBuildViewWithoutOptionalTablesKeepsForeignKeys(t *testing.T) {
	tables := fullTables()
	tables.Competitions = nil
	tables.Venues = nil

	view := mustView(t, tables)
	assert.Equal(t, "comp-1", str(view[0].CompetitionID))
	assert.Equal(t, "ven-1", str(view[0].VenueID))
	assert.Equal(t, "missing", str(view[4].VenueID))
	assert.Nil(t, view[6].CompetitionID)
	assert.Nil(t, view[6].VenueID)
	for _, row := range view {
		assert.Nil(t, row.CompetitionName)
		assert.Nil(t, row.CategoryName)
		assert.Nil(t, row.VenueName)
	}

	counts := CategoryCompetitionCounts(view)
	require.Len(t, counts, 1)
	assert.Equal(t, CategoryCount{Category: "NA", Competitions: 6}, counts[0])
}

func TestBuildViewSchemaErrors(t *testing.T) {
	t.Run("competitors table absent", func(t *testing.T) {
		tables := scenarioTables()
		tables.Competitors = nil
		_, err := BuildView(tables)

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, tennis.TableCompetitors, schemaErr.Table)
		assert.Equal(t, "competitor_id", schemaErr.Column)
	})

	t.Run("ranking without competitor id", func(t *testing.T) {
		tables := scenarioTables()
		tables.Rankings[1].CompetitorID = tennis.NA
		_, err := BuildView(tables)

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, tennis.TableRankings, schemaErr.Table)
		assert.Equal(t, 2, schemaErr.Row)
	})

	t.Run("no rankings", func(t *testing.T) {
		view, err := BuildView(&tennis.Tables{})
		require.NoError(t, err)
		assert.Empty(t, view)
	})
}

func TestApplyFiltersTier(t *testing.T) {
	view := mustView(t, fullTables())

	tests := []struct {
		tier Tier
		want []string
	}{
		{TierAll, []string{"p1", "p2", "p3", "p4", "p9", "p1", "p2"}},
		{TierElite, []string{"p1", "p9", "p1"}},
		{TierStrong, []string{"p1", "p2", "p9", "p1", "p2"}},
		{TierRising, []string{"p1", "p2", "p3", "p9", "p1", "p2"}},
		{"", []string{"p1", "p2", "p3", "p4", "p9", "p1", "p2"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			got, err := ApplyFilters(view, Filter{Tier: tt.tier})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyFiltersTierMonotonic(t *testing.T) {
	view := mustView(t, fullTables())
	order := []Tier{TierElite, TierStrong, TierRising, TierAll}

	results := make(map[Tier]map[int]bool)
	for _, tier := range order {
		rows, err := ApplyFilters(view, Filter{Tier: tier})
		require.NoError(t, err)
		set := make(map[int]bool)
		for _, r := range rows {
			set[r.Rank] = true
		}
		results[tier] = set
	}

	for i, strict := range order {
		for _, loose := range order[i+1:] {
			for rank := range results[strict] {
				assert.True(t, results[loose][rank], "rank %d in %s but not in %s", rank, strict, loose)
			}
		}
	}
}

func TestApplyFiltersCategories(t *testing.T) {
	view := mustView(t, fullTables())

	t.Run("disabled admits everything", func(t *testing.T) {
		got, err := ApplyFilters(view, Filter{Categories: AnyCategory()})
		require.NoError(t, err)
		assert.Len(t, got, len(view))
	})

	t.Run("membership excludes null categories", func(t *testing.T) {
		got, err := ApplyFilters(view, Filter{Categories: OnlyCategories("ITF Men", "ITF Women")})
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2", "p1"}, ids(got))
	})

	t.Run("explicit empty selection yields nothing", func(t *testing.T) {
		require.NotEmpty(t, view)
		got, err := ApplyFilters(view, Filter{Categories: OnlyCategories()})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("NA is not a selectable category", func(t *testing.T) {
		got, err := ApplyFilters(view, Filter{Categories: OnlyCategories(tennis.NA)})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestApplyFiltersMovementPartition(t *testing.T) {
	view := mustView(t, fullTables())

	all, err := ApplyFilters(view, Filter{Movement: MovementAll})
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, m := range []Movement{MovementImproving, MovementDeclining, MovementStable} {
		rows, err := ApplyFilters(view, Filter{Movement: m})
		require.NoError(t, err)
		for _, r := range rows {
			for i := range view {
				if view[i] == r {
					seen[i]++
				}
			}
		}
	}

	assert.Len(t, seen, len(all), "union equals the unfiltered set")
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d appears in more than one partition", i)
	}
}

func TestApplyFiltersIdempotent(t *testing.T) {
	view := mustView(t, fullTables())
	filters := []Filter{
		{Tier: TierStrong, Categories: OnlyCategories("ITF Men"), Movement: MovementAll},
		{Tier: TierRising, Movement: MovementImproving},
		{Tier: TierAll, Categories: OnlyCategories("Challenger", "ITF Women"), Movement: MovementDeclining},
	}
	for i, f := range filters {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			once, err := ApplyFilters(view, f)
			require.NoError(t, err)
			twice, err := ApplyFilters(once, f)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestApplyFiltersInvalid(t *testing.T) {
	view := mustView(t, scenarioTables())

	_, err := ApplyFilters(view, Filter{Tier: "legendary"})
	var filterErr *InvalidFilterError
	require.True(t, errors.As(err, &filterErr))
	assert.Equal(t, "tier", filterErr.Param)
	assert.Equal(t, "legendary", filterErr.Value)

	_, err = ApplyFilters(view, Filter{Movement: "sideways"})
	require.True(t, errors.As(err, &filterErr))
	assert.Equal(t, "movement", filterErr.Param)
}

func TestParseTierAndMovement(t *testing.T) {
	tierCases := map[string]Tier{
		"":                 TierAll,
		"All Players":      TierAll,
		"elite":            TierElite,
		"Elite (Top 10)":   TierElite,
		"Strong (Top 50)":  TierStrong,
		"Rising (Top 100)": TierRising,
	}
	for in, want := range tierCases {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	movementCases := map[string]Movement{
		"All":          MovementAll,
		"Improving ⬆️": MovementImproving,
		"declining":    MovementDeclining,
		"Stable ➖":     MovementStable,
	}
	for in, want := range movementCases {
		got, err := ParseMovement(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTier("Top 5")
	var filterErr *InvalidFilterError
	require.True(t, errors.As(err, &filterErr))
	assert.Equal(t, "Top 5", filterErr.Value)

	_, err = ParseMovement("up")
	require.True(t, errors.As(err, &filterErr))
	assert.Equal(t, "movement", filterErr.Param)
}

func TestScenarioLeaderboardAndMovement(t *testing.T) {
	view := mustView(t, scenarioTables())

	top := TopByPoints(view, 2)
	require.Len(t, top, 2)
	assert.Equal(t, []string{"1", "3"}, ids(top))
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 100.0, top[0].Points)
	assert.Equal(t, 3, top[1].Rank)
	assert.Equal(t, 100.0, top[1].Points)

	for i := 0; i < 5; i++ {
		assert.Equal(t, top, TopByPoints(view, 2), "repeated calls are identical")
	}

	improving, err := ApplyFilters(view, Filter{Movement: MovementImproving})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(improving))

	stable, err := ApplyFilters(view, Filter{Movement: MovementStable})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(stable))
}

func TestTopByRank(t *testing.T) {
	view := mustView(t, scenarioTables())

	got := TopByRank(view, 0)
	assert.Equal(t, []string{"1", "2", "3"}, ids(got), "rank ties broken by points descending")
	assert.Len(t, TopByRank(view, 1), 1)
	assert.Equal(t, []string{"1", "2", "3"}, ids(view), "input is not reordered")
}

func TestCountrySummaries(t *testing.T) {
	view := mustView(t, &tennis.Tables{
		Competitors: []tennis.Competitor{
			{ID: "1", Country: "US"},
			{ID: "2", Country: "US"},
			{ID: "3", Country: "FR"},
		},
		Rankings: []tennis.Ranking{
			{CompetitorID: "1", Rank: 1, Points: 100},
			{CompetitorID: "2", Rank: 2, Points: 50},
			{CompetitorID: "3", Rank: 3, Points: 80},
		},
	})

	got := CountrySummaries(view)
	assert.Equal(t, []CountrySummary{
		{Country: "US", Competitors: 2, AvgPoints: 75},
		{Country: "FR", Competitors: 1, AvgPoints: 80},
	}, got)
}

func TestCountrySummariesGroupsNullsAndRepeatedCompetitors(t *testing.T) {
	view := mustView(t, fullTables())
	got := CountrySummaries(view)

	byCountry := make(map[string]CountrySummary)
	for _, s := range got {
		byCountry[s.Country] = s
	}

	na := byCountry[tennis.NA]
	assert.Equal(t, 3, na.Competitors, "NA, empty and unmatched competitors share one group")
	assert.InDelta(t, (300.0+50+650)/3, na.AvgPoints, 1e-9)

	peru := byCountry["Peru"]
	assert.Equal(t, 1, peru.Competitors)
	assert.InDelta(t, 750.0, peru.AvgPoints, 1e-9, "mean over ranking rows, not competitors")

	_, ok := byCountry["Chile"]
	assert.False(t, ok)
}

func TestCategoryCompetitionCounts(t *testing.T) {
	view := mustView(t, fullTables())
	got := CategoryCompetitionCounts(view)

	assert.Equal(t, []CategoryCount{
		{Category: "ITF Men", Competitions: 2},
		{Category: "NA", Competitions: 2},
		{Category: "Challenger", Competitions: 1},
		{Category: "ITF Women", Competitions: 1},
	}, got)

	filtered, err := ApplyFilters(view, Filter{Tier: TierElite})
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{
		{Category: "ITF Men", Competitions: 2},
		{Category: "NA", Competitions: 1},
	}, CategoryCompetitionCounts(filtered), "categories without rows are omitted")
}

func TestPointsParticipationCorrelation(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		got := PointsParticipationCorrelation([]tennis.Ranking{
			{Points: 10, CompetitionsPlayed: 1},
			{Points: 20, CompetitionsPlayed: 2},
			{Points: 30, CompetitionsPlayed: 3},
		})
		require.True(t, got.Computable)
		assert.InDelta(t, 1.0, got.Coefficient, 1e-9)
		assert.Equal(t, 3, got.N)
	})

	t.Run("negative", func(t *testing.T) {
		got := PointsParticipationCorrelation([]tennis.Ranking{
			{Points: 30, CompetitionsPlayed: 1},
			{Points: 20, CompetitionsPlayed: 2},
			{Points: 10, CompetitionsPlayed: 3},
		})
		require.True(t, got.Computable)
		assert.InDelta(t, -1.0, got.Coefficient, 1e-9)
	})

	t.Run("too few rows", func(t *testing.T) {
		got := PointsParticipationCorrelation([]tennis.Ranking{{Points: 1, CompetitionsPlayed: 1}})
		assert.False(t, got.Computable)
	})

	t.Run("zero variance", func(t *testing.T) {
		got := PointsParticipationCorrelation([]tennis.Ranking{
			{Points: 5, CompetitionsPlayed: 1},
			{Points: 5, CompetitionsPlayed: 9},
		})
		assert.False(t, got.Computable)
		assert.False(t, math.IsNaN(got.Coefficient))
	})
}

func TestPointsQuartiles(t *testing.T) {
	var rankings []tennis.Ranking
	for _, p := range []float64{10, 10, 10, 10, 50, 50, 50, 50} {
		rankings = append(rankings, tennis.Ranking{Points: p})
	}

	got := PointsQuartiles(rankings)
	assert.Equal(t, 10.0, got.Q25)
	assert.Equal(t, 50.0, got.Q75)
	assert.Equal(t, 50.0, got.TopAvgPoints)
	assert.Equal(t, 10.0, got.LowAvgPoints)
	assert.Equal(t, 4, got.TopCount)
	assert.Equal(t, 4, got.LowCount)

	assert.Equal(t, QuartileComparison{}, PointsQuartiles(nil))
}

func TestWorkload(t *testing.T) {
	got := Workload(fullTables().Rankings, 2)

	require.Len(t, got, 2)
	assert.Equal(t, CompetitorWorkload{CompetitorID: "p1", TotalPoints: 1500, TotalCompetitions: 29, AvgPoints: 750}, got[0])
	assert.Equal(t, CompetitorWorkload{CompetitorID: "p2", TotalPoints: 1020, TotalCompetitions: 25, AvgPoints: 510}, got[1])
}

func TestOverviewAndCompetitionsPerCategory(t *testing.T) {
	tables := fullTables()

	assert.Equal(t, Overview{Competitors: 5, Countries: 3, HighestPoints: 900, Venues: 1}, OverviewOf(tables))

	assert.Equal(t, []CategoryCount{
		{Category: "ITF Men", Competitions: 2},
		{Category: "Challenger", Competitions: 1},
	}, CompetitionsPerCategory(tables, 2))
}

func TestSearchAndPlayerDetails(t *testing.T) {
	view := mustView(t, fullTables())

	got := Search(view, SearchParams{MinRank: 1, MaxRank: 50, MinPoints: 400})
	assert.Equal(t, []string{"p1", "p2", "p9", "p1"}, ids(got))

	got = Search(view, SearchParams{Country: "egypt"})
	assert.Equal(t, []string{"p2", "p2"}, ids(got))

	got = Search(view, SearchParams{Name: "Alpha", MaxRank: 5})
	assert.Equal(t, []string{"p1"}, ids(got))

	details := PlayerDetails(view, "bravo")
	require.Len(t, details, 2)
	assert.Equal(t, 12, details[0].Rank)
	assert.Equal(t, 45, details[1].Rank)

	assert.Empty(t, PlayerDetails(view, "nobody"))
}

func TestNotableMovers(t *testing.T) {
	view := mustView(t, fullTables())

	got := NotableMovers(view, 2)
	assert.Equal(t, []string{"p4", "p1", "p2"}, ids(got))
	assert.Empty(t, NotableMovers(view, 6))
}
