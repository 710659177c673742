package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jordanlanch/leadflow/config"
	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/testdata"
)

const chunkSize = 500

func main() {
	count := flag.Int("count", 200, "number of leads to generate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed; the same seed yields the same leads")
	industry := flag.String("industry", "", "generate only this industry (branche)")
	dbPath := flag.String("db", "", "database path (default: DATABASE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, "text")

	path := cfg.DatabasePath
	if *dbPath != "" {
		path = *dbPath
	}
	db, err := database.NewClient(path)
	if err != nil {
		log.Error("failed to open database", "path", path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	stats := analytics.NewAggregator(db.DB, cfg.StatsPageSize, log, nil)
	store := leads.NewService(db.DB, stats, log)

	genCfg := testdata.DefaultConfig()
	genCfg.Industry = *industry
	reqs := testdata.NewGenerator(*seed).Leads(genCfg, *count)

	ctx := context.Background()
	inserted, skipped := 0, 0
	for start := 0; start < len(reqs); start += chunkSize {
		end := start + chunkSize
		if end > len(reqs) {
			end = len(reqs)
		}
		res, err := store.BulkCreate(ctx, reqs[start:end])
		if err != nil {
			log.Error("failed to insert leads", "offset", start, "error", err)
			os.Exit(1)
		}
		inserted += len(res.Inserted)
		skipped += res.Skipped
	}

	snap, err := stats.Read(ctx)
	if err != nil {
		log.Error("failed to read stats", "error", err)
		os.Exit(1)
	}
	log.Info("seed complete",
		"seed", *seed,
		"inserted", inserted,
		"skipped_duplicates", skipped,
		"total_leads", snap.Total,
		"avg_score", snap.AvgScore,
	)
}
