package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one collection run. Tables lists the tables the run supplied,
// which keeps an absent table distinct from an empty one on reload.
type Run struct {
	ID           string    `db:"id" json:"id"`
	CollectedAt  time.Time `db:"collected_at" json:"collected_at"`
	TablesCSV    string    `db:"tables" json:"-"`
	Tables       []string  `db:"-" json:"tables"`
	RankingCount int       `db:"ranking_count" json:"ranking_count"`
	Errors       string    `db:"errors" json:"errors,omitempty"`
	Alerted      bool      `db:"alerted" json:"alerted"`
}

// RankingPoint is a competitor's ranking in one run.
type RankingPoint struct {
	RunID              string    `db:"run_id" json:"run_id"`
	CollectedAt        time.Time `db:"collected_at" json:"collected_at"`
	Rank               int       `db:"rank" json:"rank"`
	Movement           int       `db:"movement" json:"movement"`
	Points             float64   `db:"points" json:"points"`
	CompetitionsPlayed int       `db:"competitions_played" json:"competitions_played"`
}

// Store is the persistence interface.
type Store interface {
	SaveSnapshot(ctx context.Context, t *tennis.Tables, collectErr error) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LoadTables(ctx context.Context, runID string) (*tennis.Tables, error)
	RankingHistory(ctx context.Context, competitorID string, limit int) ([]RankingPoint, error)
	MarkAlerted(ctx context.Context, runID string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores every present table under a new run in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, t *tennis.Tables, collectErr error) (*Run, error) {
	if t == nil {
		t = &tennis.Tables{}
	}

	run := &Run{
		ID:           uuid.NewString(),
		CollectedAt:  time.Now().UTC(),
		Tables:       presentTables(t),
		RankingCount: len(t.Rankings),
	}
	run.TablesCSV = strings.Join(run.Tables, ",")
	if collectErr != nil {
		run.Errors = collectErr.Error()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO collection_runs (id, collected_at, tables, ranking_count, errors, alerted)
		VALUES (:id, :collected_at, :tables, :ranking_count, :errors, :alerted)
	`, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	if err := insertCategories(ctx, tx, run.ID, t.Categories); err != nil {
		return nil, err
	}
	if err := insertCompetitions(ctx, tx, run.ID, t.Competitions); err != nil {
		return nil, err
	}
	if err := insertComplexes(ctx, tx, run.ID, t.Complexes); err != nil {
		return nil, err
	}
	if err := insertVenues(ctx, tx, run.ID, t.Venues); err != nil {
		return nil, err
	}
	if err := insertCompetitors(ctx, tx, run.ID, t.Competitors); err != nil {
		return nil, err
	}
	if err := insertRankings(ctx, tx, run.ID, t.Rankings); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return run, nil
}

func presentTables(t *tennis.Tables) []string {
	names := []string{}
	for _, name := range tennis.TableNames() {
		if t.Present(name) {
			names = append(names, name)
		}
	}
	return names
}

func insertCategories(ctx context.Context, tx *sqlx.Tx, runID string, rows []tennis.Category) error {
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (run_id, seq, category_id, category_name) VALUES (?, ?, ?, ?)
		`, runID, i, r.ID, r.Name); err != nil {
			return fmt.Errorf("insert category %s: %w", r.ID, err)
		}
	}
	return nil
}

func insertCompetitions(ctx context.Context, tx *sqlx.Tx, runID string, rows []tennis.Competition) error {
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO competitions (run_id, seq, competition_id, competition_name, parent_id, type, gender, category_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, i, r.ID, r.Name, r.ParentID, r.Type, r.Gender, r.CategoryID); err != nil {
			return fmt.Errorf("insert competition %s: %w", r.ID, err)
		}
	}
	return nil
}

func insertComplexes(ctx context.Context, tx *sqlx.Tx, runID string, rows []tennis.Complex) error {
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO complexes (run_id, seq, complex_id, complex_name) VALUES (?, ?, ?, ?)
		`, runID, i, r.ID, r.Name); err != nil {
			return fmt.Errorf("insert complex %s: %w", r.ID, err)
		}
	}
	return nil
}

func insertVenues(ctx context.Context, tx *sqlx.Tx, runID string, rows []tennis.Venue) error {
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO venues (run_id, seq, venue_id, venue_name, city_name, country_name, country_code, timezone, complex_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, i, r.ID, r.Name, r.CityName, r.CountryName, r.CountryCode, r.Timezone, r.ComplexID); err != nil {
			return fmt.Errorf("insert venue %s: %w", r.ID, err)
		}
	}
	return nil
}

func insertCompetitors(ctx context.Context, tx *sqlx.Tx, runID string, rows []tennis.Competitor) error {
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO competitors (run_id, seq, competitor_id, name, country, country_code, abbreviation)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, i, r.ID, r.Name, r.Country, r.CountryCode, r.Abbreviation); err != nil {
			return fmt.Errorf("insert competitor %s: %w", r.ID, err)
		}
	}
	return nil
}

func insertRankings(ctx context.Context, tx *sqlx.Tx, runID string, rows []tennis.Ranking) error {
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rankings (run_id, seq, competitor_id, rank, movement, points, competitions_played, competition_id, venue_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, i, r.CompetitorID, r.Rank, r.Movement, r.Points, r.CompetitionsPlayed, r.CompetitionID, r.VenueID); err != nil {
			return fmt.Errorf("insert ranking %s: %w", r.CompetitorID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM collection_runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.Tables = splitTables(run.TablesCSV)
	return &run, nil
}

// LatestRun returns the most recent run, or ErrNotFound before the first.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run,
		"SELECT * FROM collection_runs ORDER BY collected_at DESC, rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	run.Tables = splitTables(run.TablesCSV)
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM collection_runs ORDER BY collected_at DESC, rowid DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		runs[i].Tables = splitTables(runs[i].TablesCSV)
	}
	return runs, nil
}

func splitTables(csv string) []string {
	if csv == "" {
		return []string{}
	}
	return strings.Split(csv, ",")
}

// LoadTables rebuilds the tables of a run. Tables the run did not supply
// come back nil.
func (s *SQLiteStore) LoadTables(ctx context.Context, runID string) (*tennis.Tables, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	t := &tennis.Tables{}
	for _, name := range run.Tables {
		var err error
		switch name {
		case tennis.TableCategories:
			t.Categories = []tennis.Category{}
			err = s.selectRun(ctx, &t.Categories, "category_id, category_name", name, runID)
		case tennis.TableCompetitions:
			t.Competitions = []tennis.Competition{}
			err = s.selectRun(ctx, &t.Competitions,
				"competition_id, competition_name, parent_id, type, gender, category_id", name, runID)
		case tennis.TableComplexes:
			t.Complexes = []tennis.Complex{}
			err = s.selectRun(ctx, &t.Complexes, "complex_id, complex_name", name, runID)
		case tennis.TableVenues:
			t.Venues = []tennis.Venue{}
			err = s.selectRun(ctx, &t.Venues,
				"venue_id, venue_name, city_name, country_name, country_code, timezone, complex_id", name, runID)
		case tennis.TableCompetitors:
			t.Competitors = []tennis.Competitor{}
			err = s.selectRun(ctx, &t.Competitors,
				"competitor_id, name, country, country_code, abbreviation", name, runID)
		case tennis.TableRankings:
			t.Rankings = []tennis.Ranking{}
			err = s.selectRun(ctx, &t.Rankings,
				"competitor_id, rank, movement, points, competitions_played, competition_id, venue_id", name, runID)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s for run %s: %w", name, runID, err)
		}
	}
	return t, nil
}

// selectRun reads one table of a run in its original row order. table is
// always one of the fixed table names.
func (s *SQLiteStore) selectRun(ctx context.Context, dest any, columns, table, runID string) error {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE run_id = ? ORDER BY seq", columns, table)
	return s.db.SelectContext(ctx, dest, query, runID)
}

// RankingHistory returns a competitor's rankings across runs, newest first.
func (s *SQLiteStore) RankingHistory(ctx context.Context, competitorID string, limit int) ([]RankingPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	var points []RankingPoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT r.run_id, c.collected_at, r.rank, r.movement, r.points, r.competitions_played
		FROM rankings r
		JOIN collection_runs c ON c.id = r.run_id
		WHERE r.competitor_id = ?
		ORDER BY c.collected_at DESC, c.rowid DESC, r.seq
		LIMIT ?
	`, competitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking history %s: %w", competitorID, err)
	}
	return points, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE collection_runs SET alerted = 1 WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("mark alerted %s: %w", runID, err)
	}
	return nil
}
