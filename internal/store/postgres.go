package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/daterange"
	"github.com/02loveslollipop/howmuchwater/internal/models"
)

// PostgresStore keeps site tables in a Postgres database.
type PostgresStore struct {
	pool   *pgxpool.Pool
	policy ConflictPolicy
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL. The pool is capped at one
// connection; ingestion is sequential.
func OpenPostgres(ctx context.Context, databaseURL string, policy ConflictPolicy) (*PostgresStore, error) {
	const op = "store.OpenPostgres"
	if strings.TrimSpace(databaseURL) == "" {
		return nil, apperr.Errorf(apperr.Storage, op, "database url is required for the postgres driver")
	}
	if policy == "" {
		policy = KeepExisting
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, fmt.Errorf("parse database url: %w", err))
	}
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperr.E(apperr.Storage, op, fmt.Errorf("ping: %w", err))
	}

	return &PostgresStore{pool: pool, policy: policy}, nil
}

// Close releases the pool resources.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM information_schema.tables
    WHERE table_schema = current_schema() AND table_name = $1
)`, table).Scan(&exists)
	return exists, err
}

// Concurrent CREATE ... IF NOT EXISTS can still race on the catalog.
func pgAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07" || pgErr.Code == "23505"
	}
	return isAlreadyExists(err)
}

// EnsureTable implements Store.
func (s *PostgresStore) EnsureTable(ctx context.Context, siteID string) (bool, error) {
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
		ddl := `CREATE TABLE IF NOT EXISTS ` + quote(table) + ` (date TEXT NOT NULL, discharge DOUBLE PRECISION, qualifier TEXT)`
		if _, err := s.pool.Exec(ctx, ddl); err != nil && !pgAlreadyExists(err) {
			return false, apperr.E(apperr.Storage, op, fmt.Errorf("create table %s: %w", table, err))
		}
	}

	idx := `CREATE UNIQUE INDEX IF NOT EXISTS ` + quote(table+"_date_key") + ` ON ` + quote(table) + ` (date)`
	if _, err := s.pool.Exec(ctx, idx); err != nil && !pgAlreadyExists(err) {
		return false, apperr.E(apperr.Storage, op, fmt.Errorf("create unique index on %s: %w", table, err))
	}

	return !exists, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, obs models.Observation) (Outcome, error) {
	const op = "store.Upsert"
	table, err := TableName(obs.SiteID)
	if err != nil {
		return Duplicate, err
	}
	date := obs.Date.Format(daterange.Layout)

	if s.policy == Replace {
		// xmax is zero only for a freshly inserted tuple.
		query := `INSERT INTO ` + quote(table) + ` AS t (date, discharge, qualifier)
VALUES ($1, $2, $3)
ON CONFLICT (date) DO UPDATE
SET discharge = EXCLUDED.discharge,
    qualifier = EXCLUDED.qualifier
WHERE t.discharge IS DISTINCT FROM EXCLUDED.discharge
   OR t.qualifier IS DISTINCT FROM EXCLUDED.qualifier
RETURNING (xmax = 0)`

		var inserted bool
		err := s.pool.QueryRow(ctx, query, date, obs.Discharge, obs.Qualifier).Scan(&inserted)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Duplicate, nil
		case err != nil:
			return Duplicate, apperr.E(apperr.Storage, op, fmt.Errorf("write %s into %s: %w", date, table, err))
		case inserted:
			return Inserted, nil
		default:
			return Updated, nil
		}
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO `+quote(table)+` (date, discharge, qualifier) VALUES ($1, $2, $3) ON CONFLICT (date) DO NOTHING`,
		date, obs.Discharge, obs.Qualifier)
	if err != nil {
		return Duplicate, apperr.E(apperr.Storage, op, fmt.Errorf("insert %s into %s: %w", date, table, err))
	}
	if tag.RowsAffected() == 0 {
		return Duplicate, nil
	}
	return Inserted, nil
}

// Series implements Store.
func (s *PostgresStore) Series(ctx context.Context, siteID string) ([]models.Row, error) {
	return s.QuerySeries(ctx, SeriesQuery{SiteID: siteID})
}

// QuerySeries implements Store.
func (s *PostgresStore) QuerySeries(ctx context.Context, q SeriesQuery) ([]models.Row, error) {
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

	query, args := seriesSQL(table, q, func(n int) string { return fmt.Sprintf("$%d", n) })
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	defer rows.Close()

	out := make([]models.Row, 0)
	for rows.Next() {
		var (
			row       models.Row
			discharge *float64
			qualifier *string
		)
		if err := rows.Scan(&row.Date, &discharge, &qualifier); err != nil {
			return nil, apperr.E(apperr.Storage, op, err)
		}
		if discharge != nil {
			row.Discharge = *discharge
		}
		if qualifier != nil {
			row.Qualifier = *qualifier
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	return out, nil
}

// Sites implements Store.
func (s *PostgresStore) Sites(ctx context.Context) ([]string, error) {
	const op = "store.Sites"
	rows, err := s.pool.Query(ctx, `
SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name LIKE 'site\_%'
ORDER BY table_name`)
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
		sites = append(sites, strings.TrimPrefix(name, TablePrefix))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(apperr.Storage, op, err)
	}
	return sites, nil
}
