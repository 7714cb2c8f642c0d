// Package engine joins the entity tables into a denormalized ranking view,
// filters it and derives leaderboards and summaries from it.
//
// Every function is pure: results are recomputed from the arguments on each
// call and nothing is cached between calls.
package engine

import (
	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// SchemaError reports a mandatory join key missing from an input table.
type SchemaError = tennis.SchemaError

// Row is one ranking entry with its competitor, competition, category and
// venue attributes. Supplementary columns are nil when the join found no match.
type Row struct {
	CompetitorID       string  `json:"competitor_id"`
	Rank               int     `json:"rank"`
	Movement           int     `json:"movement"`
	Points             float64 `json:"points"`
	CompetitionsPlayed int     `json:"competitions_played"`

	Name         *string `json:"name"`
	Country      *string `json:"country"`
	CountryCode  *string `json:"country_code"`
	Abbreviation *string `json:"abbreviation"`

	CompetitionID   *string `json:"competition_id"`
	CompetitionName *string `json:"competition_name"`
	CompetitionType *string `json:"competition_type"`
	Gender          *string `json:"gender"`
	CategoryID      *string `json:"category_id"`
	CategoryName    *string `json:"category_name"`

	VenueID      *string `json:"venue_id"`
	VenueName    *string `json:"venue_name"`
	CityName     *string `json:"city_name"`
	VenueCountry *string `json:"venue_country"`
	Timezone     *string `json:"timezone"`
}

// BuildView left-joins rankings to competitors, then to competitions and
// categories, then to venues. It returns exactly one row per ranking, in
// ranking order. Competitions and venues may be absent.
func BuildView(t *tennis.Tables) ([]Row, error) {
	if t == nil || len(t.Rankings) == 0 {
		return []Row{}, nil
	}
	if t.Competitors == nil {
		return nil, &SchemaError{Table: tennis.TableCompetitors, Column: "competitor_id"}
	}

	competitors := indexBy(t.Competitors, func(c *tennis.Competitor) string { return c.ID })
	competitions := indexBy(t.Competitions, func(c *tennis.Competition) string { return c.ID })
	categories := indexBy(t.Categories, func(c *tennis.Category) string { return c.ID })
	venues := indexBy(t.Venues, func(v *tennis.Venue) string { return v.ID })

	rows := make([]Row, 0, len(t.Rankings))
	for i := range t.Rankings {
		r := &t.Rankings[i]
		if tennis.IsNull(r.CompetitorID) {
			return nil, &SchemaError{Table: tennis.TableRankings, Column: "competitor_id", Row: i + 1}
		}

		row := Row{
			CompetitorID:       r.CompetitorID,
			Rank:               r.Rank,
			Movement:           r.Movement,
			Points:             r.Points,
			CompetitionsPlayed: r.CompetitionsPlayed,
		}

		if c, ok := competitors[r.CompetitorID]; ok {
			row.Name = ptr(c.Name)
			row.Country = ptr(c.Country)
			row.CountryCode = ptr(c.CountryCode)
			row.Abbreviation = ptr(c.Abbreviation)
		}

		// Foreign keys are kept even when the referenced table is absent.
		if !tennis.IsNull(r.CompetitionID) {
			row.CompetitionID = ptr(r.CompetitionID)
			if comp, ok := competitions[r.CompetitionID]; ok {
				row.CompetitionName = ptr(comp.Name)
				row.CompetitionType = ptr(comp.Type)
				row.Gender = ptr(comp.Gender)
				if !tennis.IsNull(comp.CategoryID) {
					row.CategoryID = ptr(comp.CategoryID)
					if cat, ok := categories[comp.CategoryID]; ok {
						row.CategoryName = ptr(cat.Name)
					}
				}
			}
		}

		if !tennis.IsNull(r.VenueID) {
			row.VenueID = ptr(r.VenueID)
			if v, ok := venues[r.VenueID]; ok {
				row.VenueName = ptr(v.Name)
				row.CityName = ptr(v.CityName)
				row.VenueCountry = ptr(v.CountryName)
				row.Timezone = ptr(v.Timezone)
			}
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// indexBy returns nil for an absent table. The first row wins on duplicate
// keys so a join never multiplies ranking rows.
func indexBy[T any](rows []T, key func(*T) string) map[string]*T {
	if rows == nil {
		return nil
	}
	m := make(map[string]*T, len(rows))
	for i := range rows {
		k := key(&rows[i])
		if _, ok := m[k]; !ok {
			m[k] = &rows[i]
		}
	}
	return m
}

func ptr(s string) *string {
	return &s
}

// value returns the grouping value of a nullable column: nil, "" and NA
// all collapse into NA.
func value(s *string) string {
	if s == nil || tennis.IsNull(*s) {
		return tennis.NA
	}
	return *s
}
