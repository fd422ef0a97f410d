// Package store provides the SQLite-backed indicator store.
// Uses ncruces/go-sqlite3/driver, which exposes a database/sql interface
// without cgo.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/citystat/city-quality-etl/internal/domain"
)

// schema defines the persisted shape: a cities table keyed by city code and
// an observations table unique on (city_code, indicator_code, year), with a
// covering index for latest-value lookups.
const schema = `
PRAGMA journal_mode = WAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS cities (
    city_code  TEXT PRIMARY KEY,
    city_name  TEXT,
    country    TEXT,
    lat        REAL,
    lng        REAL,
    population INTEGER
);

CREATE TABLE IF NOT EXISTS indicators (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    city_code      TEXT,
    indicator_code TEXT,
    indicator_name TEXT,
    year           INTEGER,
    value          REAL,
    status         TEXT,
    ingested_at    INTEGER,
    FOREIGN KEY (city_code) REFERENCES cities(city_code),
    UNIQUE(city_code, indicator_code, year)
);

CREATE INDEX IF NOT EXISTS idx_city_indicator
    ON indicators(city_code, indicator_code, year);
`

// Store is the durable home of cities and indicator observations. Reads go
// straight to the pool; writes run inside a Batch transaction serialized by
// a single-writer mutex on top of SQLite's own locking.
type Store struct {
	writeMu sync.Mutex
	db      *sql.DB
}

// Open opens (creating if needed) the database at dsn and applies the schema.
// Use ":memory:" for an ephemeral store in tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dsn == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// upsert statements can serve both direct writes and batch transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Batch groups the writes of one ingestion call into a single transaction.
// Either Commit or Rollback must be called; the store's write lock is held
// until then.
type Batch struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// Begin starts a write batch, blocking until any in-flight batch finishes.
func (s *Store) Begin(ctx context.Context) (*Batch, error) {
	s.writeMu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &Batch{tx: tx, store: s}, nil
}

// Commit applies the batch atomically.
func (b *Batch) Commit() error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.store.writeMu.Unlock()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Rollback discards the batch. Safe to call after Commit as a no-op, so it
// can sit in a defer.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.store.writeMu.Unlock()
	return b.tx.Rollback()
}

// UpsertCity inserts a city if absent and reports whether a row was created.
// An existing row is left untouched: the first writer wins for descriptive
// fields. Use ReplaceCity for authoritative gazetteer loads.
func (b *Batch) UpsertCity(ctx context.Context, c domain.City) (bool, error) {
	return upsertCity(ctx, b.tx, c)
}

// ReplaceCity inserts or fully replaces a city row, including coordinates
// and population.
func (b *Batch) ReplaceCity(ctx context.Context, c domain.City) error {
	return replaceCity(ctx, b.tx, c)
}

// UpsertObservation inserts or replaces the row for the observation's
// (city, indicator, year) triple. Re-ingesting a triple is idempotent: the
// newest write wins and exactly one row remains.
func (b *Batch) UpsertObservation(ctx context.Context, o domain.Observation) error {
	return upsertObservation(ctx, b.tx, o)
}

// UpsertCity is the single-write variant of [Batch.UpsertCity].
func (s *Store) UpsertCity(ctx context.Context, c domain.City) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return upsertCity(ctx, s.db, c)
}

// ReplaceCity is the single-write variant of [Batch.ReplaceCity].
func (s *Store) ReplaceCity(ctx context.Context, c domain.City) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return replaceCity(ctx, s.db, c)
}

// UpsertObservation is the single-write variant of [Batch.UpsertObservation].
func (s *Store) UpsertObservation(ctx context.Context, o domain.Observation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return upsertObservation(ctx, s.db, o)
}

func upsertCity(ctx context.Context, db dbtx, c domain.City) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO cities (city_code, city_name, country, lat, lng, population)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Code, c.Name, c.Country, c.Lat, c.Lng, c.Population)
	if err != nil {
		return false, fmt.Errorf("upsert city %s: %w", c.Code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert city %s: %w", c.Code, err)
	}
	return n > 0, nil
}

func replaceCity(ctx context.Context, db dbtx, c domain.City) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cities (city_code, city_name, country, lat, lng, population)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Code, c.Name, c.Country, c.Lat, c.Lng, c.Population)
	if err != nil {
		return fmt.Errorf("replace city %s: %w", c.Code, err)
	}
	return nil
}

func upsertObservation(ctx context.Context, db dbtx, o domain.Observation) error {
	var ingestedAt any
	if !o.IngestedAt.IsZero() {
		ingestedAt = o.IngestedAt.Unix()
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO indicators
		(city_code, indicator_code, indicator_name, year, value, status, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.CityCode, o.IndicatorCode, o.IndicatorName, o.Year, o.Value, o.Status, ingestedAt)
	if err != nil {
		return fmt.Errorf("upsert observation %s/%s/%d: %w", o.CityCode, o.IndicatorCode, o.Year, err)
	}
	return nil
}

// GetCity fetches one city by code. The second return is false when no such
// city exists.
func (s *Store) GetCity(ctx context.Context, code string) (domain.City, bool, error) {
	var c domain.City
	err := s.db.QueryRowContext(ctx, `
		SELECT city_code, city_name, country, lat, lng, population
		FROM cities WHERE city_code = ?
	`, code).Scan(&c.Code, &c.Name, &c.Country, &c.Lat, &c.Lng, &c.Population)
	if err == sql.ErrNoRows {
		return domain.City{}, false, nil
	}
	if err != nil {
		return domain.City{}, false, fmt.Errorf("get city %s: %w", code, err)
	}
	return c, true, nil
}

// Cities lists cities ordered by name, optionally filtered by country code
// (case-insensitive). An empty country lists everything.
func (s *Store) Cities(ctx context.Context, country string) ([]domain.City, error) {
	query := `
		SELECT city_code, city_name, country, lat, lng, population
		FROM cities
	`
	args := []any{}
	if country != "" {
		query += " WHERE UPPER(country) = UPPER(?)"
		args = append(args, country)
	}
	query += " ORDER BY city_name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	var cities []domain.City
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.Code, &c.Name, &c.Country, &c.Lat, &c.Lng, &c.Population); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// LatestValue returns the observation with the maximum year for the
// (city, indicator) pair. The second return is false when the pair has no
// observation at all.
func (s *Store) LatestValue(ctx context.Context, cityCode, indicatorCode string) (domain.Observation, bool, error) {
	o := domain.Observation{CityCode: cityCode, IndicatorCode: indicatorCode}
	err := s.db.QueryRowContext(ctx, `
		SELECT value, indicator_name, year FROM indicators
		WHERE city_code = ? AND indicator_code = ?
		ORDER BY year DESC LIMIT 1
	`, cityCode, indicatorCode).Scan(&o.Value, &o.IndicatorName, &o.Year)
	if err == sql.ErrNoRows {
		return domain.Observation{}, false, nil
	}
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("latest value %s/%s: %w", cityCode, indicatorCode, err)
	}
	return o, true, nil
}

// Observations lists a city's observations ordered by indicator code. With
// latestOnly, one row per indicator at its maximum year; otherwise every
// year, newest first within each indicator.
func (s *Store) Observations(ctx context.Context, cityCode string, latestOnly bool) ([]domain.Observation, error) {
	query := `
		SELECT indicator_code, indicator_name, year, value, status
		FROM indicators WHERE city_code = ?
		ORDER BY indicator_code, year DESC
	`
	if latestOnly {
		query = `
			SELECT indicator_code, indicator_name, MAX(year) AS year, value, status
			FROM indicators WHERE city_code = ?
			GROUP BY indicator_code ORDER BY indicator_code
		`
	}

	rows, err := s.db.QueryContext(ctx, query, cityCode)
	if err != nil {
		return nil, fmt.Errorf("observations for %s: %w", cityCode, err)
	}
	defer rows.Close()

	var obs []domain.Observation
	for rows.Next() {
		o := domain.Observation{CityCode: cityCode}
		if err := rows.Scan(&o.IndicatorCode, &o.IndicatorName, &o.Year, &o.Value, &o.Status); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// DistinctIndicators lists each indicator code once with its label, ordered
// by code. Labels follow the most recent ingestion (last write wins).
func (s *Store) DistinctIndicators(ctx context.Context) ([]domain.Indicator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT indicator_code, indicator_name
		FROM indicators ORDER BY indicator_code
	`)
	if err != nil {
		return nil, fmt.Errorf("distinct indicators: %w", err)
	}
	defer rows.Close()

	var indicators []domain.Indicator
	for rows.Next() {
		var ind domain.Indicator
		if err := rows.Scan(&ind.Code, &ind.Name); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		indicators = append(indicators, ind)
	}
	return indicators, rows.Err()
}

// HasIndicatorData reports whether any city in the country has at least one
// observation for at least one of the given indicator codes.
func (s *Store) HasIndicatorData(ctx context.Context, country string, indicatorCodes []string) (bool, error) {
	if len(indicatorCodes) == 0 {
		return false, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(indicatorCodes)), ",")
	args := make([]any, 0, len(indicatorCodes)+1)
	args = append(args, country)
	for _, code := range indicatorCodes {
		args = append(args, code)
	}

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM indicators i
		JOIN cities c ON i.city_code = c.city_code
		WHERE UPPER(c.country) = UPPER(?) AND i.indicator_code IN (`+placeholders+`)
		LIMIT 1
	`, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("indicator data check: %w", err)
	}
	return true, nil
}

// TopByPopulation lists the country's cities by descending population,
// truncated to limit. Cities with unknown population sort last.
func (s *Store) TopByPopulation(ctx context.Context, country string, limit int) ([]domain.City, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT city_code, city_name, country, lat, lng, population
		FROM cities
		WHERE UPPER(country) = UPPER(?)
		ORDER BY population DESC NULLS LAST
		LIMIT ?
	`, country, limit)
	if err != nil {
		return nil, fmt.Errorf("top by population: %w", err)
	}
	defer rows.Close()

	var cities []domain.City
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.Code, &c.Name, &c.Country, &c.Lat, &c.Lng, &c.Population); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// DeleteObservation removes one (city, indicator, year) row. Not part of the
// ingestion flow; exposed for manual corrections.
func (s *Store) DeleteObservation(ctx context.Context, cityCode, indicatorCode string, year int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM indicators
		WHERE city_code = ? AND indicator_code = ? AND year = ?
	`, cityCode, indicatorCode, year)
	if err != nil {
		return fmt.Errorf("delete observation %s/%s/%d: %w", cityCode, indicatorCode, year, err)
	}
	return nil
}
