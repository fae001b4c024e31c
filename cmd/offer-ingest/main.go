package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/fulfillment/internal/domain/offer"
	"github.com/xenking/fulfillment/internal/repository"
)

const bloomFPR = 0.001

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		batchSize   int
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing offer files")
	flag.StringVar(&pattern, "pattern", "offers*.ndjson.gz", "glob matching gzip-compressed NDJSON offer files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "offers per upsert batch")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of distinct offers, sizes the bloom filter")
	flag.BoolVar(&dryRun, "dry-run", false, "validate files without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, batchSize, expected, dryRun); err != nil {
		slog.Error("offer ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("offer ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, batchSize int, expected uint, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "match offer files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}
	slices.Sort(files)

	slog.Info("reading offer files", slog.Int("files", len(files)))

	results, err := readFiles(ctx, files, time.Now())
	if err != nil {
		return errors.Wrap(err, "read offer files")
	}

	offers, st := merge(results, newDeduper(expected, bloomFPR))
	slog.Info("offers validated",
		slog.Int("valid", st.valid),
		slog.Int("invalid", st.invalid),
		slog.Int("duplicates", st.duplicates),
	)

	if len(offers) == 0 || dryRun {
		slog.Info("nothing to write", slog.Bool("dry_run", dryRun))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeOffers(ctx, repository.NewOfferRepository(pool), offers, batchSize); err != nil {
		return errors.Wrap(err, "write offers to database")
	}

	return nil
}

// writeOffers upserts offers in batches.
func writeOffers(ctx context.Context, repo *repository.OfferRepository, offers []offer.Offer, batchSize int) error {
	slog.Info("writing offers to database", slog.Int("count", len(offers)))

	var written int
	for batch := range slices.Chunk(offers, max(batchSize, 1)) {
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			return errors.Wrapf(err, "upsert batch at offset %d", written)
		}
		written += len(batch)
		slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(offers)))
	}

	return nil
}
