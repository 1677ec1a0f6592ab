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
	"golang.org/x/sync/errgroup"

	"github.com/xenking/medcart/internal/domain/coupon"
	"github.com/xenking/medcart/internal/repository"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000
	maxRejectLogs = 20
)

// couponStore is the part of the coupon repository the ingest writes through.
type couponStore interface {
	coupon.CodeSource
	FindByCode(ctx context.Context, code string) (*coupon.Rule, error)
	Upsert(ctx context.Context, rule coupon.Rule) error
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		update      bool
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzipped coupon CSV files")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "file name pattern inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&update, "update", false, "overwrite coupons that already exist")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
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

	if err := run(ctx, dataDir, pattern, databaseURL, update, dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, update, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "list coupon files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files matching %s in %s", pattern, dataDir)
	}
	sort.Strings(files)

	slog.Info("parsing coupon files", slog.Int("files", len(files)))

	rules, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse coupon files")
	}

	slog.Info("coupons parsed", slog.Int("count", len(rules)))

	if len(rules) == 0 || dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, repository.NewCouponRepository(pool), rules, update); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// parseFiles reads every file concurrently and merges the rules in file
// order.
func parseFiles(ctx context.Context, files []string) ([]coupon.Rule, error) {
	perFile := make([][]coupon.Rule, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rules, rejects, err := readGzFile(ctx, f)
			if err != nil {
				return err
			}
			for j, rej := range rejects {
				if j == maxRejectLogs {
					slog.Warn("more rows rejected", slog.String("file", f), slog.Int("remaining", len(rejects)-j))
					break
				}
				slog.Warn("row rejected", slog.String("file", f), slog.String("error", rej.Error()))
			}

			slog.Info("file parsed",
				slog.String("file", f),
				slog.Int("coupons", len(rules)),
				slog.Int("rejected", len(rejects)),
			)

			perFile[i] = rules
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeRules(perFile), nil
}

// writeCoupons upserts rules. Unless update is set, codes that already exist
// are left alone; the bloom prefilter answers most of those checks without a
// query.
func writeCoupons(ctx context.Context, store couponStore, rules []coupon.Rule, update bool) error {
	slog.Info("writing coupons to database", slog.Int("count", len(rules)))

	var existing *coupon.Prefilter
	if !update {
		codes, err := store.ListCodes(ctx)
		if err != nil {
			return errors.Wrap(err, "list existing codes")
		}
		existing = coupon.NewPrefilter(uint(len(codes)), bloomFPR)
		existing.Rebuild(codes)
	}

	var written, skipped int
	for i, rule := range rules {
		if existing != nil && existing.MayContain(rule.Code) {
			_, err := store.FindByCode(ctx, rule.Code)
			switch {
			case err == nil:
				skipped++
				continue
			case !errors.Is(err, coupon.ErrInvalidCoupon):
				return errors.Wrapf(err, "check coupon %s", rule.Code)
			}
		}

		if err := store.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rule.Code)
		}
		written++

		if (i+1)%progressEvery == 0 || i+1 == len(rules) {
			slog.Info("write progress", slog.Int("processed", i+1), slog.Int("total", len(rules)))
		}
	}

	slog.Info("coupons written", slog.Int("written", written), slog.Int("skipped", skipped))
	return nil
}
