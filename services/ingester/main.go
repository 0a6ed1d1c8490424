package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/02loveslollipop/howmuchwater/internal/daterange"
	"github.com/02loveslollipop/howmuchwater/internal/ingest"
	"github.com/02loveslollipop/howmuchwater/internal/logging"
	"github.com/02loveslollipop/howmuchwater/internal/nwis"
	"github.com/02loveslollipop/howmuchwater/internal/report"
	"github.com/02loveslollipop/howmuchwater/internal/store"
	"github.com/02loveslollipop/howmuchwater/services/ingester/internal/config"
	"github.com/02loveslollipop/howmuchwater/services/ingester/internal/prompt"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("ingester failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		site        = flag.String("site", cfg.Site, "USGS site number")
		startFlag   = flag.String("start", "", "start date (YYYY-MM-DD), defaults to one week before end")
		endFlag     = flag.String("end", "", "end date (YYYY-MM-DD), defaults to today")
		interactive = flag.Bool("interactive", false, "prompt for the date range")
		showReport  = flag.Bool("report", false, "print the stored series after ingesting")
		dryRun      = flag.Bool("dry-run", cfg.DryRun, "fetch and parse without writing")
	)
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := ingest.Request{SiteID: *site}
	if *interactive {
		rng, err := prompt.New(os.Stdin, os.Stdout, nil).Range()
		if err != nil {
			if prompt.IsAbort(err) {
				return errors.New("aborted: no date range entered")
			}
			return err
		}
		req.Start, req.End = rng.Start, rng.End
	} else {
		if *endFlag != "" {
			if req.End, err = daterange.Parse(*endFlag); err != nil {
				return err
			}
		}
		if *startFlag != "" {
			if req.Start, err = daterange.Parse(*startFlag); err != nil {
				return err
			}
		}
	}
	if _, err := store.TableName(req.SiteID); err != nil {
		return err
	}

	client := nwis.NewClient(cfg.BaseURL, &http.Client{Timeout: cfg.RequestTimeout}, cfg.RetryPolicy(), logger)

	var st store.Store
	if !*dryRun {
		st, err = store.Open(ctx, cfg.StoreOptions())
		if err != nil {
			return err
		}
		defer st.Close()
	}

	started := time.Now()
	pipeline := ingest.New(client, st, ingest.Options{Logger: logger, DryRun: *dryRun})
	sum, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("site %s %s: fetched %d, inserted %d, updated %d, duplicates %d, rejected %d (%s)\n",
		sum.SiteID, sum.Range, sum.Fetched, sum.Inserted, sum.Updated, sum.Duplicates, len(sum.Rejected),
		time.Since(started).Round(time.Millisecond))

	if *showReport && st != nil {
		rows, err := st.Series(ctx, sum.SiteID)
		if err != nil {
			return err
		}
		if err := report.WriteTable(os.Stdout, sum.SiteID, rows); err != nil {
			return err
		}
	}

	logger.Debug("run complete", zap.String("run_id", sum.RunID))
	return nil
}
