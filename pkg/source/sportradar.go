package source

import (
	"context"
	"errors"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// Competitions collects competitions and the categories they belong to.
type Competitions struct {
	client *Client
}

// NewCompetitions creates a competitions collector.
func NewCompetitions(client *Client) *Competitions {
	return &Competitions{client: client}
}

func (c *Competitions) Name() string { return "competitions" }

func (c *Competitions) Collect(ctx context.Context) (*tennis.Tables, error) {
	var payload srCompetitions
	if err := c.client.Fetch(ctx, EndpointCompetitions, &payload); err != nil {
		return nil, err
	}
	if payload.Competitions == nil {
		return nil, errors.New("competitions data not available from api")
	}

	tables := &tennis.Tables{
		Categories:   []tennis.Category{},
		Competitions: make([]tennis.Competition, 0, len(payload.Competitions)),
	}
	seen := make(map[string]bool)
	for _, comp := range payload.Competitions {
		var categoryID string
		if comp.Category != nil {
			categoryID = comp.Category.ID
			if !seen[categoryID] {
				seen[categoryID] = true
				tables.Categories = append(tables.Categories, tennis.Category{
					ID:   comp.Category.ID,
					Name: comp.Category.Name,
				})
			}
		}
		tables.Competitions = append(tables.Competitions, tennis.Competition{
			ID:         comp.ID,
			Name:       comp.Name,
			ParentID:   comp.ParentID,
			Type:       comp.Type,
			Gender:     comp.Gender,
			CategoryID: categoryID,
		})
	}
	return tables, nil
}

// Complexes collects complexes and their venues.
type Complexes struct {
	client *Client
}

// NewComplexes creates a complexes collector.
func NewComplexes(client *Client) *Complexes {
	return &Complexes{client: client}
}

func (c *Complexes) Name() string { return "complexes" }

func (c *Complexes) Collect(ctx context.Context) (*tennis.Tables, error) {
	var payload srComplexes
	if err := c.client.Fetch(ctx, EndpointComplexes, &payload); err != nil {
		return nil, err
	}
	if payload.Complexes == nil {
		return nil, errors.New("complexes data not available from api")
	}

	tables := &tennis.Tables{
		Complexes: make([]tennis.Complex, 0, len(payload.Complexes)),
		Venues:    []tennis.Venue{},
	}
	for _, cx := range payload.Complexes {
		tables.Complexes = append(tables.Complexes, tennis.Complex{ID: cx.ID, Name: cx.Name})
		for _, v := range cx.Venues {
			tables.Venues = append(tables.Venues, tennis.Venue{
				ID:          v.ID,
				Name:        v.Name,
				CityName:    v.CityName,
				CountryName: v.CountryName,
				CountryCode: v.CountryCode,
				Timezone:    v.Timezone,
				ComplexID:   cx.ID,
			})
		}
	}
	return tables, nil
}

// DoublesRankings collects the doubles ranking tables and their competitors.
type DoublesRankings struct {
	client *Client
}

// NewDoublesRankings creates a doubles rankings collector.
func NewDoublesRankings(client *Client) *DoublesRankings {
	return &DoublesRankings{client: client}
}

func (d *DoublesRankings) Name() string { return "doubles_rankings" }

// Collect accepts both Sportradar's grouped form, where each ranking table
// nests competitor_rankings, and the flat form used by fixtures. Entries
// without a positive rank are dropped.
func (d *DoublesRankings) Collect(ctx context.Context) (*tennis.Tables, error) {
	var payload srRankings
	if err := d.client.Fetch(ctx, EndpointDoublesRankings, &payload); err != nil {
		return nil, err
	}

	tables := &tennis.Tables{
		Competitors: []tennis.Competitor{},
		Rankings:    []tennis.Ranking{},
	}
	add := func(e srRankingEntry) {
		if e.Rank == nil || *e.Rank <= 0 {
			return
		}
		tables.Competitors = append(tables.Competitors, tennis.Competitor{
			ID:           e.Competitor.ID,
			Name:         e.Competitor.Name,
			Country:      e.Competitor.Country,
			CountryCode:  e.Competitor.CountryCode,
			Abbreviation: e.Competitor.Abbreviation,
		})
		tables.Rankings = append(tables.Rankings, tennis.Ranking{
			CompetitorID:       e.Competitor.ID,
			Rank:               *e.Rank,
			Movement:           deref(e.Movement),
			Points:             deref(e.Points),
			CompetitionsPlayed: deref(e.CompetitionsPlayed),
		})
	}

	for _, group := range payload.Rankings {
		if group.CompetitorRankings != nil {
			for _, e := range group.CompetitorRankings {
				add(e)
			}
			continue
		}
		add(group.srRankingEntry)
	}
	return tables, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

type srCompetitions struct {
	Competitions []srCompetition `json:"competitions"`
}

type srCompetition struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	ParentID string      `json:"parent_id"`
	Type     string      `json:"type"`
	Gender   string      `json:"gender"`
	Category *srCategory `json:"category"`
}

type srCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type srComplexes struct {
	Complexes []srComplex `json:"complexes"`
}

type srComplex struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Venues []srVenue `json:"venues"`
}

type srVenue struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CityName    string `json:"city_name"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
}

type srRankings struct {
	Rankings []srRankingGroup `json:"rankings"`
}

type srRankingGroup struct {
	srRankingEntry
	CompetitorRankings []srRankingEntry `json:"competitor_rankings"`
}

type srRankingEntry struct {
	Rank               *int         `json:"rank"`
	Movement           *int         `json:"movement"`
	Points             *float64     `json:"points"`
	CompetitionsPlayed *int         `json:"competitions_played"`
	Competitor         srCompetitor `json:"competitor"`
}

type srCompetitor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Abbreviation string `json:"abbreviation"`
}
