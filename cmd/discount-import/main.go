// Command discount-import loads discount codes from gzip-compressed CSV files
// with rows of code,type,amount[,limit]. Codes repeated within or across
// files are imported once; codes already stored are skipped unless
// -overwrite is set.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		cfg         writeConfig
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory scanned for *.csv.gz files when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&cfg.batchSize, "batch", 500, "codes checked against the database per batch")
	flag.BoolVar(&cfg.overwrite, "overwrite", false, "overwrite amount, type and limit of codes that already exist")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "scan and validate files without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !cfg.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, flag.Args(), dataDir, databaseURL, cfg); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, files []string, dataDir, databaseURL string, cfg writeConfig) error {
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			return errors.Wrap(err, "list data dir")
		}
		sort.Strings(matches)
		files = matches
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, suspects, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: confirming duplicates")

	dups, err := findDuplicates(ctx, files, filters, suspects)
	if err != nil {
		return errors.Wrap(err, "find duplicates")
	}

	slog.Info("duplicate codes found", slog.Int("count", len(dups)))

	var store codeStore = discardStore{}
	if !cfg.dryRun {
		slog.Info("connecting to database")

		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		store = postgres.NewDiscountRepository(pool)
	}

	slog.Info("pass 3: writing codes", slog.Bool("dry_run", cfg.dryRun))

	st, err := writeCodes(ctx, files, dups, store, cfg)
	if err != nil {
		return errors.Wrap(err, "write codes")
	}

	slog.Info("import stats",
		slog.Int("rows", st.rows),
		slog.Int("invalid", st.invalid),
		slog.Int("duplicates", st.duplicates),
		slog.Int("existing", st.existing),
		slog.Int("inserted", st.inserted),
		slog.Int("updated", st.updated),
	)
	return nil
}
