package tennis

// Clean removes exact duplicate rows from every table and fills null
// categorical fields with NA. Row order is preserved; numeric fields are
// left untouched.
func (t *Tables) Clean() {
	t.Categories = dedupe(t.Categories, func(c *Category) {
		fillNA(&c.ID, &c.Name)
	})
	t.Competitions = dedupe(t.Competitions, func(c *Competition) {
		fillNA(&c.ID, &c.Name, &c.ParentID, &c.Type, &c.Gender, &c.CategoryID)
	})
	t.Complexes = dedupe(t.Complexes, func(c *Complex) {
		fillNA(&c.ID, &c.Name)
	})
	t.Venues = dedupe(t.Venues, func(v *Venue) {
		fillNA(&v.ID, &v.Name, &v.CityName, &v.CountryName, &v.CountryCode, &v.Timezone, &v.ComplexID)
	})
	t.Competitors = dedupe(t.Competitors, func(c *Competitor) {
		fillNA(&c.ID, &c.Name, &c.Country, &c.CountryCode, &c.Abbreviation)
	})
	t.Rankings = dedupe(t.Rankings, func(r *Ranking) {
		fillNA(&r.CompetitionID, &r.VenueID)
	})
}

// dedupe fills each row first, so rows differing only by "" vs NA collapse.
func dedupe[T comparable](rows []T, fill func(*T)) []T {
	if rows == nil {
		return nil
	}
	seen := make(map[T]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		fill(&row)
		if _, dup := seen[row]; dup {
			continue
		}
		seen[row] = struct{}{}
		out = append(out, row)
	}
	return out
}

func fillNA(fields ...*string) {
	for _, f := range fields {
		if *f == "" {
			*f = NA
		}
	}
}
