package store

const schema = `
CREATE TABLE IF NOT EXISTS collection_runs (
    id            TEXT PRIMARY KEY,
    collected_at  DATETIME NOT NULL,
    tables        TEXT NOT NULL DEFAULT '',
    ranking_count INTEGER NOT NULL DEFAULT 0,
    errors        TEXT NOT NULL DEFAULT '',
    alerted       BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_collected_at ON collection_runs(collected_at);

CREATE TABLE IF NOT EXISTS categories (
    run_id        TEXT NOT NULL REFERENCES collection_runs(id),
    seq           INTEGER NOT NULL,
    category_id   TEXT NOT NULL DEFAULT '',
    category_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_categories_run ON categories(run_id, seq);

CREATE TABLE IF NOT EXISTS competitions (
    run_id           TEXT NOT NULL REFERENCES collection_runs(id),
    seq              INTEGER NOT NULL,
    competition_id   TEXT NOT NULL DEFAULT '',
    competition_name TEXT NOT NULL DEFAULT '',
    parent_id        TEXT NOT NULL DEFAULT '',
    type             TEXT NOT NULL DEFAULT '',
    gender           TEXT NOT NULL DEFAULT '',
    category_id      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_competitions_run ON competitions(run_id, seq);

CREATE TABLE IF NOT EXISTS complexes (
    run_id       TEXT NOT NULL REFERENCES collection_runs(id),
    seq          INTEGER NOT NULL,
    complex_id   TEXT NOT NULL DEFAULT '',
    complex_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_complexes_run ON complexes(run_id, seq);

CREATE TABLE IF NOT EXISTS venues (
    run_id       TEXT NOT NULL REFERENCES collection_runs(id),
    seq          INTEGER NOT NULL,
    venue_id     TEXT NOT NULL DEFAULT '',
    venue_name   TEXT NOT NULL DEFAULT '',
    city_name    TEXT NOT NULL DEFAULT '',
    country_name TEXT NOT NULL DEFAULT '',
    country_code TEXT NOT NULL DEFAULT '',
    timezone     TEXT NOT NULL DEFAULT '',
    complex_id   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_venues_run ON venues(run_id, seq);

CREATE TABLE IF NOT EXISTS competitors (
    run_id        TEXT NOT NULL REFERENCES collection_runs(id),
    seq           INTEGER NOT NULL,
    competitor_id TEXT NOT NULL DEFAULT '',
    name          TEXT NOT NULL DEFAULT '',
    country       TEXT NOT NULL DEFAULT '',
    country_code  TEXT NOT NULL DEFAULT '',
    abbreviation  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_competitors_run ON competitors(run_id, seq);

CREATE TABLE IF NOT EXISTS rankings (
    run_id              TEXT NOT NULL REFERENCES collection_runs(id),
    seq                 INTEGER NOT NULL,
    competitor_id       TEXT NOT NULL,
    rank                INTEGER NOT NULL,
    movement            INTEGER NOT NULL DEFAULT 0,
    points              REAL NOT NULL DEFAULT 0,
    competitions_played INTEGER NOT NULL DEFAULT 0,
    competition_id      TEXT NOT NULL DEFAULT '',
    venue_id            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_rankings_run ON rankings(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_rankings_competitor ON rankings(competitor_id);
`
