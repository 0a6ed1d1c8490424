// Package ingest runs one fetch-parse-store pass for a site and date range.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/02loveslollipop/howmuchwater/internal/daterange"
	"github.com/02loveslollipop/howmuchwater/internal/parser"
	"github.com/02loveslollipop/howmuchwater/internal/store"
)

// Fetcher retrieves the raw daily-values body for a site.
type Fetcher interface {
	FetchDailyValues(ctx context.Context, site string, r daterange.Range) ([]byte, error)
}

// Options tunes a Pipeline. Now defaults to time.Now.
type Options struct {
	Logger *zap.Logger
	DryRun bool
	Now    func() time.Time
}

// Request names the site and requested interval. A zero End means today; a
// zero Start falls back to one week before End.
type Request struct {
	SiteID string
	Start  time.Time
	End    time.Time
}

// Summary describes a finished run.
type Summary struct {
	RunID        string
	SiteID       string
	Range        daterange.Range
	Notes        daterange.Notes
	Fetched      int
	Inserted     int
	Updated      int
	Duplicates   int
	Rejected     []parser.RecordError
	TableCreated bool
	DryRun       bool
}

// Pipeline wires the acquisition client to the store.
type Pipeline struct {
	fetcher Fetcher
	store   store.Store
	logger  *zap.Logger
	dryRun  bool
	now     func() time.Time
}

// New builds a pipeline. st may be nil only in dry-run mode.
func New(fetcher Fetcher, st store.Store, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		fetcher: fetcher,
		store:   st,
		logger:  logger,
		dryRun:  opts.DryRun,
		now:     now,
	}
}

// Run normalizes the range, fetches, parses and stores every observation in
// order. Transport, whole-response parse and storage failures abort the run;
// each written row is already committed when that happens. Rejected readings
// are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, req Request) (Summary, error) {
	today := daterange.Today(p.now())
	end := req.End
	if end.IsZero() {
		end = today
	}
	start := req.Start
	if start.IsZero() {
		start = end
	}
	rng, notes := daterange.Normalize(start, end, today)

	sum := Summary{
		RunID:  uuid.NewString(),
		SiteID: req.SiteID,
		Range:  rng,
		Notes:  notes,
		DryRun: p.dryRun,
	}
	log := p.logger.With(zap.String("run_id", sum.RunID), zap.String("site", req.SiteID))

	if notes.EndClamped {
		log.Info("end date is in the future, using today", zap.String("end", rng.End.Format(daterange.Layout)))
	}
	if notes.StartReset {
		log.Info("start date is not before end date, using one week before end",
			zap.String("start", rng.Start.Format(daterange.Layout)))
	}
	log.Info("ingestion started", zap.Stringer("range", rng), zap.Bool("dry_run", p.dryRun))

	body, err := p.fetcher.FetchDailyValues(ctx, req.SiteID, rng)
	if err != nil {
		return sum, fmt.Errorf("fetch %s %s: %w", req.SiteID, rng, err)
	}

	parsed, err := parser.DailyValues(req.SiteID, body)
	if err != nil {
		return sum, fmt.Errorf("parse %s: %w", req.SiteID, err)
	}
	sum.Fetched = len(parsed.Observations) + len(parsed.Rejected)
	sum.Rejected = parsed.Rejected
	for _, rej := range parsed.Rejected {
		log.Warn("skipping reading", zap.Int("index", rej.Index), zap.String("date_time", rej.DateTime), zap.Error(rej.Err))
	}

	if p.dryRun {
		for _, o := range parsed.Observations {
			log.Info("dry-run: would insert",
				zap.String("date", o.Date.Format(daterange.Layout)),
				zap.Float64("discharge", o.Discharge),
				zap.String("qualifier", o.Qualifier))
		}
		log.Info("dry-run: skipping writes", zap.Int("candidates", len(parsed.Observations)))
		return sum, nil
	}

	created, err := p.store.EnsureTable(ctx, req.SiteID)
	if err != nil {
		return sum, fmt.Errorf("prepare table for %s: %w", req.SiteID, err)
	}
	sum.TableCreated = created
	if created {
		log.Info("created site table")
	}

	for _, o := range parsed.Observations {
		outcome, err := p.store.Upsert(ctx, o)
		if err != nil {
			return sum, fmt.Errorf("store %s %s: %w", req.SiteID, o.Date.Format(daterange.Layout), err)
		}
		switch outcome {
		case store.Inserted:
			sum.Inserted++
		case store.Updated:
			sum.Updated++
		default:
			sum.Duplicates++
		}
	}

	log.Info("ingestion finished",
		zap.Int("fetched", sum.Fetched),
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("rejected", len(sum.Rejected)),
	)
	return sum, nil
}
