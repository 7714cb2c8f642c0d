package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// TopByPoints orders rows by points descending, ties by rank ascending, and
// keeps the first n. n <= 0 keeps all rows.
func TopByPoints(rows []Row, n int) []Row {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b Row) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})
	return truncate(out, n)
}

// TopByRank orders rows by rank ascending, ties by points descending, and
// keeps the first n. n <= 0 keeps all rows.
func TopByRank(rows []Row, n int) []Row {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b Row) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(b.Points, a.Points)
	})
	return truncate(out, n)
}

func truncate[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// CategoryCount is the number of distinct competitions seen in a category.
type CategoryCount struct {
	Category     string `json:"category"`
	Competitions int    `json:"competitions"`
}

// CategoryCompetitionCounts counts distinct competition IDs per category
// name. Categories without any competition are omitted. Ordered by count
// descending, then name.
func CategoryCompetitionCounts(rows []Row) []CategoryCount {
	seen := make(map[string]map[string]struct{})
	for _, row := range rows {
		if row.CompetitionID == nil || tennis.IsNull(*row.CompetitionID) {
			continue
		}
		cat := value(row.CategoryName)
		if seen[cat] == nil {
			seen[cat] = make(map[string]struct{})
		}
		seen[cat][*row.CompetitionID] = struct{}{}
	}

	out := make([]CategoryCount, 0, len(seen))
	for cat, ids := range seen {
		out = append(out, CategoryCount{Category: cat, Competitions: len(ids)})
	}
	sortCategoryCounts(out)
	return out
}

func sortCategoryCounts(counts []CategoryCount) {
	slices.SortFunc(counts, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.Competitions, a.Competitions); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
}

// CountrySummary aggregates the ranking rows of one country.
type CountrySummary struct {
	Country     string  `json:"country"`
	Competitors int     `json:"competitors"`
	AvgPoints   float64 `json:"avg_points"`
}

// CountrySummaries groups rows by competitor country. Competitors counts
// distinct competitor IDs; AvgPoints is the mean over ranking rows, so a
// competitor ranked twice contributes twice. Ordered by competitors
// descending, then country.
func CountrySummaries(rows []Row) []CountrySummary {
	type acc struct {
		ids   map[string]struct{}
		total float64
		n     int
	}
	groups := make(map[string]*acc)
	for _, row := range rows {
		country := value(row.Country)
		g, ok := groups[country]
		if !ok {
			g = &acc{ids: make(map[string]struct{})}
			groups[country] = g
		}
		g.ids[row.CompetitorID] = struct{}{}
		g.total += row.Points
		g.n++
	}

	out := make([]CountrySummary, 0, len(groups))
	for country, g := range groups {
		out = append(out, CountrySummary{
			Country:     country,
			Competitors: len(g.ids),
			AvgPoints:   g.total / float64(g.n),
		})
	}
	slices.SortFunc(out, func(a, b CountrySummary) int {
		if c := cmp.Compare(b.Competitors, a.Competitors); c != 0 {
			return c
		}
		return strings.Compare(a.Country, b.Country)
	})
	return out
}

// Overview holds the headline figures of a snapshot.
type Overview struct {
	Competitors   int     `json:"competitors"`
	Countries     int     `json:"countries"`
	HighestPoints float64 `json:"highest_points"`
	Venues        int     `json:"venues"`
}

// OverviewOf computes the headline figures straight from the tables.
func OverviewOf(t *tennis.Tables) Overview {
	countries := make(map[string]struct{})
	for _, c := range t.Competitors {
		if !tennis.IsNull(c.Country) {
			countries[c.Country] = struct{}{}
		}
	}
	var highest float64
	for i, r := range t.Rankings {
		if i == 0 || r.Points > highest {
			highest = r.Points
		}
	}
	return Overview{
		Competitors:   len(t.Competitors),
		Countries:     len(countries),
		HighestPoints: highest,
		Venues:        len(t.Venues),
	}
}

// CompetitionsPerCategory counts competitions per category by joining the
// competitions table to categories; competitions without a known category
// are skipped. Ordered by count descending, then name, and truncated to n
// when n > 0.
func CompetitionsPerCategory(t *tennis.Tables, n int) []CategoryCount {
	categories := indexBy(t.Categories, func(c *tennis.Category) string { return c.ID })
	counts := make(map[string]int)
	for _, comp := range t.Competitions {
		cat, ok := categories[comp.CategoryID]
		if !ok {
			continue
		}
		counts[value(&cat.Name)]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, CategoryCount{Category: name, Competitions: c})
	}
	sortCategoryCounts(out)
	return truncate(out, n)
}

// SearchParams narrows a competitor search. Zero values disable a criterion.
type SearchParams struct {
	Name      string
	Country   string
	MinRank   int
	MaxRank   int
	MinPoints float64
}

// Search returns rows matching every set criterion ordered by points
// descending, then rank. Name and country match case-insensitively.
func Search(rows []Row, p SearchParams) []Row {
	var out []Row
	for _, row := range rows {
		if p.Name != "" && !strings.EqualFold(value(row.Name), p.Name) {
			continue
		}
		if p.Country != "" && !strings.EqualFold(value(row.Country), p.Country) {
			continue
		}
		if p.MinRank > 0 && row.Rank < p.MinRank {
			continue
		}
		if p.MaxRank > 0 && row.Rank > p.MaxRank {
			continue
		}
		if row.Points < p.MinPoints {
			continue
		}
		out = append(out, row)
	}
	return TopByPoints(out, 0)
}

// PlayerDetails returns every ranking row of the competitor called name.
func PlayerDetails(rows []Row, name string) []Row {
	var out []Row
	for _, row := range rows {
		if row.Name != nil && strings.EqualFold(*row.Name, name) {
			out = append(out, row)
		}
	}
	return out
}

// NotableMovers returns rows whose absolute movement is at least
// minMovement, biggest moves first and ties by rank.
func NotableMovers(rows []Row, minMovement int) []Row {
	var out []Row
	for _, row := range rows {
		if abs(row.Movement) >= minMovement && row.Movement != 0 {
			out = append(out, row)
		}
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		if c := cmp.Compare(abs(b.Movement), abs(a.Movement)); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
