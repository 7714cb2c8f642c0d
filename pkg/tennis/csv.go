package tennis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// Table names, which double as CSV file stems.
const (
	TableCategories   = "categories"
	TableCompetitions = "competitions"
	TableComplexes    = "complexes"
	TableVenues       = "venues"
	TableCompetitors  = "competitors"
	TableRankings     = "rankings"
)

// legacyRankingsFile is the name older dashboard exports used for rankings.
const legacyRankingsFile = "competitor_rankings.csv"

// TableNames returns all table names in dependency order.
func TableNames() []string {
	return []string{
		TableCategories,
		TableCompetitions,
		TableComplexes,
		TableVenues,
		TableCompetitors,
		TableRankings,
	}
}

var columns = map[string][]string{
	TableCategories:   {"category_id", "category_name"},
	TableCompetitions: {"competition_id", "competition_name", "parent_id", "type", "gender", "category_id"},
	TableComplexes:    {"complex_id", "complex_name"},
	TableVenues:       {"venue_id", "venue_name", "city_name", "country_name", "country_code", "timezone", "complex_id"},
	TableCompetitors:  {"competitor_id", "name", "country", "country_code", "abbreviation"},
	TableRankings:     {"rank", "movement", "points", "competitions_played", "competitor_id", "competition_id", "venue_id"},
}

var keyColumns = map[string]string{
	TableCategories:   "category_id",
	TableCompetitions: "competition_id",
	TableComplexes:    "complex_id",
	TableVenues:       "venue_id",
	TableCompetitors:  "competitor_id",
	TableRankings:     "competitor_id",
}

// Columns returns the header of a table's CSV file.
func Columns(table string) []string {
	return append([]string(nil), columns[table]...)
}

// NormalizeColumn maps a header such as "Competitor ID" to "competitor_id".
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	var b strings.Builder
	underscore := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func (t *Tables) records(table string) [][]string {
	var out [][]string
	switch table {
	case TableCategories:
		for _, c := range t.Categories {
			out = append(out, []string{c.ID, c.Name})
		}
	case TableCompetitions:
		for _, c := range t.Competitions {
			out = append(out, []string{c.ID, c.Name, c.ParentID, c.Type, c.Gender, c.CategoryID})
		}
	case TableComplexes:
		for _, c := range t.Complexes {
			out = append(out, []string{c.ID, c.Name})
		}
	case TableVenues:
		for _, v := range t.Venues {
			out = append(out, []string{v.ID, v.Name, v.CityName, v.CountryName, v.CountryCode, v.Timezone, v.ComplexID})
		}
	case TableCompetitors:
		for _, c := range t.Competitors {
			out = append(out, []string{c.ID, c.Name, c.Country, c.CountryCode, c.Abbreviation})
		}
	case TableRankings:
		for _, r := range t.Rankings {
			out = append(out, []string{
				strconv.Itoa(r.Rank),
				strconv.Itoa(r.Movement),
				formatFloat(r.Points),
				strconv.Itoa(r.CompetitionsPlayed),
				r.CompetitorID,
				r.CompetitionID,
				r.VenueID,
			})
		}
	}
	return out
}

// WriteCSV writes one table with its header row.
func (t *Tables) WriteCSV(w io.Writer, table string) error {
	cols, ok := columns[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write %s header: %w", table, err)
	}
	if err := cw.WriteAll(t.records(table)); err != nil {
		return fmt.Errorf("write %s rows: %w", table, err)
	}
	return nil
}

// WriteDir writes every present table to dir as <table>.csv.
func (t *Tables) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	for _, name := range TableNames() {
		if !t.Present(name) {
			continue
		}
		path := filepath.Join(dir, name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := t.WriteCSV(f, name); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}

// ReadDir loads every <table>.csv found in dir. Missing files leave the
// corresponding table nil. Rankings fall back to competitor_rankings.csv.
func ReadDir(dir string) (*Tables, error) {
	t := &Tables{}
	for _, name := range TableNames() {
		path := filepath.Join(dir, name+".csv")
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) && name == TableRankings {
			path = filepath.Join(dir, legacyRankingsFile)
			f, err = os.Open(path)
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		err = t.ReadCSV(f, name)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return t, nil
}

// ReadCSV parses one table. Headers are normalized, unknown columns are
// ignored and missing non-key columns read as null.
func (t *Tables) ReadCSV(r io.Reader, table string) error {
	if _, ok := columns[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &SchemaError{Table: table, Column: keyColumns[table]}
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		col := NormalizeColumn(h)
		if _, dup := idx[col]; !dup {
			idx[col] = i
		}
	}
	if _, ok := idx[keyColumns[table]]; !ok {
		return &SchemaError{Table: table, Column: keyColumns[table]}
	}

	rows := &rowReader{idx: idx}
	t.ensure(table)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		rows.rec = rec
		if err := t.appendRecord(table, rows); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func (t *Tables) ensure(table string) {
	switch table {
	case TableCategories:
		t.Categories = nonNil(t.Categories)
	case TableCompetitions:
		t.Competitions = nonNil(t.Competitions)
	case TableComplexes:
		t.Complexes = nonNil(t.Complexes)
	case TableVenues:
		t.Venues = nonNil(t.Venues)
	case TableCompetitors:
		t.Competitors = nonNil(t.Competitors)
	case TableRankings:
		t.Rankings = nonNil(t.Rankings)
	}
}

func (t *Tables) appendRecord(table string, r *rowReader) error {
	switch table {
	case TableCategories:
		t.Categories = append(t.Categories, Category{ID: r.str("category_id"), Name: r.str("category_name")})
	case TableCompetitions:
		t.Competitions = append(t.Competitions, Competition{
			ID:         r.str("competition_id"),
			Name:       r.str("competition_name"),
			ParentID:   r.str("parent_id"),
			Type:       r.str("type"),
			Gender:     r.str("gender"),
			CategoryID: r.str("category_id"),
		})
	case TableComplexes:
		t.Complexes = append(t.Complexes, Complex{ID: r.str("complex_id"), Name: r.str("complex_name")})
	case TableVenues:
		t.Venues = append(t.Venues, Venue{
			ID:          r.str("venue_id"),
			Name:        r.str("venue_name"),
			CityName:    r.str("city_name"),
			CountryName: r.str("country_name"),
			CountryCode: r.str("country_code"),
			Timezone:    r.str("timezone"),
			ComplexID:   r.str("complex_id"),
		})
	case TableCompetitors:
		t.Competitors = append(t.Competitors, Competitor{
			ID:           r.str("competitor_id"),
			Name:         r.str("name"),
			Country:      r.str("country"),
			CountryCode:  r.str("country_code"),
			Abbreviation: r.str("abbreviation"),
		})
	case TableRankings:
		rank, err := r.integer("rank")
		if err != nil {
			return err
		}
		if rank <= 0 {
			return fmt.Errorf("rank must be positive, got %d", rank)
		}
		movement, err := r.integer("movement")
		if err != nil {
			return err
		}
		points, err := r.float("points")
		if err != nil {
			return err
		}
		if points < 0 {
			return fmt.Errorf("points must not be negative, got %s", formatFloat(points))
		}
		played, err := r.integer("competitions_played")
		if err != nil {
			return err
		}
		if played < 0 {
			return fmt.Errorf("competitions_played must not be negative, got %d", played)
		}
		t.Rankings = append(t.Rankings, Ranking{
			CompetitorID:       r.str("competitor_id"),
			Rank:               rank,
			Movement:           movement,
			Points:             points,
			CompetitionsPlayed: played,
			CompetitionID:      r.str("competition_id"),
			VenueID:            r.str("venue_id"),
		})
	}
	return nil
}

type rowReader struct {
	idx map[string]int
	rec []string
}

func (r *rowReader) str(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

// integer accepts float-formatted values ("3.0") written by dataframe tools
// but rejects a fractional part.
func (r *rowReader) integer(col string) (int, error) {
	f, err := r.float(col)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("column %s: %q is not an integer", col, r.str(col))
	}
	return int(f), nil
}

func (r *rowReader) float(col string) (float64, error) {
	s := r.str(col)
	if IsNull(s) {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("column %s: invalid number %q", col, s)
	}
	return f, nil
}
