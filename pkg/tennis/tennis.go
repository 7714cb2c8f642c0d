// Package tennis holds the entity tables collected from the tennis data API:
// categories, competitions, complexes, venues, competitors and rankings.
package tennis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// NA is the sentinel written into null categorical fields by Clean.
const NA = "NA"

// IsNull reports whether a string attribute carries no value.
func IsNull(s string) bool {
	return s == "" || s == NA
}

// Category groups competitions (e.g. "ITF Men", "Challenger").
type Category struct {
	ID   string `json:"category_id" db:"category_id"`
	Name string `json:"category_name" db:"category_name"`
}

// Competition is a tournament definition.
type Competition struct {
	ID         string `json:"competition_id" db:"competition_id"`
	Name       string `json:"competition_name" db:"competition_name"`
	ParentID   string `json:"parent_id" db:"parent_id"`
	Type       string `json:"type" db:"type"`
	Gender     string `json:"gender" db:"gender"`
	CategoryID string `json:"category_id" db:"category_id"`
}

// Complex is a group of venues.
type Complex struct {
	ID   string `json:"complex_id" db:"complex_id"`
	Name string `json:"complex_name" db:"complex_name"`
}

// Venue is a single playing site.
type Venue struct {
	ID          string `json:"venue_id" db:"venue_id"`
	Name        string `json:"venue_name" db:"venue_name"`
	CityName    string `json:"city_name" db:"city_name"`
	CountryName string `json:"country_name" db:"country_name"`
	CountryCode string `json:"country_code" db:"country_code"`
	Timezone    string `json:"timezone" db:"timezone"`
	ComplexID   string `json:"complex_id" db:"complex_id"`
}

// Competitor is a player or a doubles pair.
type Competitor struct {
	ID           string `json:"competitor_id" db:"competitor_id"`
	Name         string `json:"name" db:"name"`
	Country      string `json:"country" db:"country"`
	CountryCode  string `json:"country_code" db:"country_code"`
	Abbreviation string `json:"abbreviation" db:"abbreviation"`
}

// Ranking is one ranking entry for a competitor in a collection run.
// CompetitionID and VenueID are only set when the source carries them.
type Ranking struct {
	CompetitorID       string  `json:"competitor_id" db:"competitor_id"`
	Rank               int     `json:"rank" db:"rank"`
	Movement           int     `json:"movement" db:"movement"`
	Points             float64 `json:"points" db:"points"`
	CompetitionsPlayed int     `json:"competitions_played" db:"competitions_played"`
	CompetitionID      string  `json:"competition_id,omitempty" db:"competition_id"`
	VenueID            string  `json:"venue_id,omitempty" db:"venue_id"`
}

// Tables is one snapshot of all entity tables. A nil slice means the table
// was not supplied; an empty non-nil slice means it was supplied with no rows.
type Tables struct {
	Categories   []Category
	Competitions []Competition
	Complexes    []Complex
	Venues       []Venue
	Competitors  []Competitor
	Rankings     []Ranking
}

// Counts returns the row count of every table keyed by table name.
func (t *Tables) Counts() map[string]int {
	return map[string]int{
		TableCategories:   len(t.Categories),
		TableCompetitions: len(t.Competitions),
		TableComplexes:    len(t.Complexes),
		TableVenues:       len(t.Venues),
		TableCompetitors:  len(t.Competitors),
		TableRankings:     len(t.Rankings),
	}
}

// Merge appends the rows of other into t. Tables absent in both stay nil.
func (t *Tables) Merge(other *Tables) {
	if other == nil {
		return
	}
	if other.Categories != nil {
		t.Categories = append(nonNil(t.Categories), other.Categories...)
	}
	if other.Competitions != nil {
		t.Competitions = append(nonNil(t.Competitions), other.Competitions...)
	}
	if other.Complexes != nil {
		t.Complexes = append(nonNil(t.Complexes), other.Complexes...)
	}
	if other.Venues != nil {
		t.Venues = append(nonNil(t.Venues), other.Venues...)
	}
	if other.Competitors != nil {
		t.Competitors = append(nonNil(t.Competitors), other.Competitors...)
	}
	if other.Rankings != nil {
		t.Rankings = append(nonNil(t.Rankings), other.Rankings...)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Hash returns a content hash of every table, used to key memoized views.
func (t *Tables) Hash() string {
	h := sha256.New()
	for _, name := range TableNames() {
		fmt.Fprintf(h, "#%s:%t\n", name, t.Present(name))
		for _, rec := range t.records(name) {
			for _, field := range rec {
				h.Write([]byte(field))
				h.Write([]byte{0x1f})
			}
			h.Write([]byte{'\n'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Present reports whether the named table was supplied.
func (t *Tables) Present(name string) bool {
	switch name {
	case TableCategories:
		return t.Categories != nil
	case TableCompetitions:
		return t.Competitions != nil
	case TableComplexes:
		return t.Complexes != nil
	case TableVenues:
		return t.Venues != nil
	case TableCompetitors:
		return t.Competitors != nil
	case TableRankings:
		return t.Rankings != nil
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
