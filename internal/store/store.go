// Package store persists daily observations, one table per site, and serves
// the report query over them.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/models"
)

// TablePrefix precedes the sanitized site identifier in table names.
const TablePrefix = "site_"

// ErrSiteNotFound is returned by report queries for a site that has no table.
var ErrSiteNotFound = errors.New("site not found")

// ConflictPolicy decides what Upsert does when the date is already stored.
type ConflictPolicy string

const (
	// KeepExisting ignores the incoming record. Revisions published by the
	// service for an already stored date are never captured.
	KeepExisting ConflictPolicy = "keep-existing"
	// Replace overwrites discharge and qualifier with the incoming values.
	Replace ConflictPolicy = "replace"
)

// Outcome reports what Upsert did with one observation.
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "duplicate"
	}
}

// SeriesQuery narrows a report query. Zero values mean no bound.
type SeriesQuery struct {
	SiteID    string
	Start     string // inclusive, YYYY-MM-DD
	End       string // inclusive, YYYY-MM-DD
	Limit     int
	Ascending bool
}

// Store is the ingestion store plus its read-only report query.
type Store interface {
	// EnsureTable creates the site's table and its unique date index when
	// absent. created reports whether the table did not exist before.
	EnsureTable(ctx context.Context, siteID string) (created bool, err error)
	// Upsert writes obs atomically according to the store's ConflictPolicy.
	// The write is committed before Upsert returns.
	Upsert(ctx context.Context, obs models.Observation) (Outcome, error)
	// Series returns every row for the site, newest date first.
	Series(ctx context.Context, siteID string) ([]models.Row, error)
	QuerySeries(ctx context.Context, q SeriesQuery) ([]models.Row, error)
	// Sites lists the site identifiers that have a table.
	Sites(ctx context.Context) ([]string, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// URL is the Postgres connection string.
	URL    string
	Policy ConflictPolicy
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Policy == "" {
		opts.Policy = KeepExisting
	}
	if opts.Policy != KeepExisting && opts.Policy != Replace {
		return nil, apperr.Errorf(apperr.Storage, "store.Open", "unknown conflict policy %q", opts.Policy)
	}

	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		s, err := OpenSQLite(ctx, opts.Path, opts.Policy)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := OpenPostgres(ctx, opts.URL, opts.Policy)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperr.Errorf(apperr.Storage, "store.Open", "unsupported database driver %q", opts.Driver)
	}
}

// Site identifiers become table names verbatim. Lower case only, since both
// backends fold unquoted identifiers and SQLite compares names without case;
// 58 characters keeps "site_" + id inside Postgres' 63-byte identifier limit.
var siteIDPattern = regexp.MustCompile(`^[a-z0-9_]{1,58}$`)

// TableName returns the table holding siteID's series. Distinct accepted
// identifiers always map to distinct tables.
func TableName(siteID string) (string, error) {
	if !siteIDPattern.MatchString(siteID) {
		return "", apperr.E(apperr.InputFormat, "store.TableName",
			fmt.Errorf("site identifier %q must be 1-58 lower-case letters, digits or '_'", siteID))
	}
	return TablePrefix + siteID, nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

// seriesSQL builds the report query. placeholder renders the n-th bind
// parameter for the backend.
func seriesSQL(table string, q SeriesQuery, placeholder func(n int) string) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT date, discharge, qualifier FROM ")
	b.WriteString(quote(table))

	var conds []string
	if q.Start != "" {
		args = append(args, q.Start)
		conds = append(conds, "date >= "+placeholder(len(args)))
	}
	if q.End != "" {
		args = append(args, q.End)
		conds = append(conds, "date <= "+placeholder(len(args)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if q.Ascending {
		b.WriteString(" ORDER BY date ASC")
	} else {
		b.WriteString(" ORDER BY date DESC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT " + placeholder(len(args)))
	}
	return b.String(), args
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
