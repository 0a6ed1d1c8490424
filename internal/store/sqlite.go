package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/daterange"
	"github.com/02loveslollipop/howmuchwater/internal/models"
)

// DefaultSQLitePath is the database file used when none is configured.
const DefaultSQLitePath = "daily_discharge.db"

// SQLiteStore keeps every site table in one SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	policy ConflictPolicy
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database file at path. A single
// connection is used; each write runs in its own transaction with
// synchronous=FULL so committed rows survive a crash.
func OpenSQLite(ctx context.Context, path string, policy ConflictPolicy) (*SQLiteStore, error) {
	const op = "store.OpenSQLite"
	if path == "" {
		path = DefaultSQLitePath
	}
	if policy == "" {
		policy = KeepExisting
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, fmt.Errorf("open %s: %w", path, err))
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperr.E(apperr.Storage, op, fmt.Errorf("ping %s: %w", path, err))
	}

	return &SQLiteStore{db: db, path: path, policy: policy}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) tableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND lower(name) = lower(?)`, table).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

// EnsureTable implements Store.
func (s *SQLiteStore) EnsureTable(ctx context.Context, siteID string) (bool, error) {
	const op = "store.EnsureTable"
	table, err := TableName(siteID)
	if err != nil {
		return false, err
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return false, apperr.E(apperr.Storage, op, fmt.Errorf("look up table %s: %w", table, err))
	}

	if !exists {
		ddl := `CREATE TABLE IF NOT EXISTS ` + quote(table) + ` (date TEXT NOT NULL, discharge REAL, qualifier TEXT)`
		if _, err := s.db.ExecContext(ctx, ddl); err != nil && !isAlreadyExists(err) {
			return false, apperr.E(apperr.Storage, op, fmt.Errorf("create table %s: %w", table, err))
		}
	}

	// Tables written by older runs have no constraint; add it in place.
	idx := `CREATE UNIQUE INDEX IF NOT EXISTS ` + quote(table+"_date_key") + ` ON ` + quote(table) + ` (date)`
	if _, err := s.db.ExecContext(ctx, idx); err != nil && !isAlreadyExists(err) {
		return false, apperr.E(apperr.Storage, op, fmt.Errorf("create unique index on %s: %w", table, err))
	}

	return !exists, nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, obs models.Observation) (Outcome, error) {
	const op = "store.Upsert"
	table, err := TableName(obs.SiteID)
	if err != nil {
		return Duplicate, err
	}
	date := obs.Date.Format(daterange.Layout)

	if s.policy == Replace {
		outcome, err := s.replace(ctx, table, date, obs)
		if err != nil {
			return outcome, apperr.E(apperr.Storage, op, fmt.Errorf("write %s into %s: %w", date, table, err))
		}
		return outcome, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+quote(table)+` (date, discharge, qualifier) VALUES (?, ?, ?) ON CONFLICT (date) DO NOTHING`,
		date, obs.Discharge, obs.Qualifier)
	if err != nil {
		return Duplicate, apperr.E(apperr.Storage, op, fmt.Errorf("insert %s into %s: %w", date, table, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Duplicate, apperr.E(apperr.Storage, op, err)
	}
	if n == 0 {
		return Duplicate, nil
	}
	return Inserted, nil
}

func (s *SQLiteStore) replace(ctx context.Context, table, date string, obs models.Observation) (Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Duplicate, err
	}
	defer tx.Rollback()

	var (
		discharge sql.NullFloat64
		qualifier sql.NullString
		outcome   Outcome
	)
	err = tx.QueryRowContext(ctx,
		`SELECT discharge, qualifier FROM `+quote(table)+` WHERE date = ?`, date).Scan(&discharge, &qualifier)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+quote(table)+` (date, discharge, qualifier) VALUES (?, ?, ?)`,
			date, obs.Discharge, obs.Qualifier)
		outcome = Inserted
	case err != nil:
		return Duplicate, err
	case discharge.Valid && discharge.Float64 == obs.Discharge && qualifier.String == obs.Qualifier:
		return Duplicate, nil
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE `+quote(table)+` SET discharge = ?, qualifier = ? WHERE date = ?`,
			obs.Discharge, obs.Qualifier, date)
		outcome = Updated
	}
	if err != nil {
		return Duplicate, err
	}
	if err := tx.Commit(); err != nil {
		return Duplicate, err
	}
	return outcome, nil
}

// Series implements Store.
func (s *SQLiteStore) Series(ctx context.Context, siteID string) ([]models.Row, error) {
	return s.QuerySeries(ctx, SeriesQuery{SiteID: siteID})
}

// QuerySeries implements Store.
func (s *SQLiteStore) QuerySeries(ctx context.Context, q SeriesQuery) ([]models.Row, error) {
	const op = "store.QuerySeries"
	table, err := TableName(q.SiteID)
	if err != nil {
		return nil, err
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", q.SiteID, ErrSiteNotFound)
	}

	query, args := seriesSQL(table, q, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	defer rows.Close()

	out := make([]models.Row, 0)
	for rows.Next() {
		var (
			row       models.Row
			discharge sql.NullFloat64
			qualifier sql.NullString
		)
		if err := rows.Scan(&row.Date, &discharge, &qualifier); err != nil {
			return nil, apperr.E(apperr.Storage, op, err)
		}
		row.Discharge = discharge.Float64
		row.Qualifier = qualifier.String
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	return out, nil
}

// Sites implements Store.
func (s *SQLiteStore) Sites(ctx context.Context) ([]string, error) {
	const op = "store.Sites"
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'site\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	defer rows.Close()

	sites := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.E(apperr.Storage, op, err)
		}
		sites = append(sites, strings.TrimPrefix(strings.ToLower(name), TablePrefix))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	return sites, nil
}
