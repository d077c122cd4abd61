package updater

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/ratelimit"
)

// Options configures one batch refresh run.
type Options struct {
	BatchSize int
}

func DefaultOptions() Options {
	return Options{BatchSize: 50}
}

// Updater refreshes tracked products in batches, oldest scrape first.
// Products are processed sequentially so the adaptive limiter can pace the
// whole run against origin pushback.
type Updater struct {
	store    Store
	scraper  ProductScraper
	ingestor *Ingestor
	limiter  *ratelimit.AdaptiveRateLimiter
	opts     Options
	logger   *slog.Logger
}

func New(store Store, scraper ProductScraper, ingestor *Ingestor, limiter *ratelimit.AdaptiveRateLimiter, opts Options, logger *slog.Logger) *Updater {
	return &Updater{
		store:    store,
		scraper:  scraper,
		ingestor: ingestor,
		limiter:  limiter,
		opts:     opts,
		logger:   logger.With("component", "updater"),
	}
}

// RunResult summarizes one batch run.
type RunResult struct {
	Total     int
	Refreshed int
	Failed    int
	Duration  time.Duration
}

// RunOnce refreshes up to BatchSize stale products. A failed scrape never
// touches the stored product: the previous state stays intact and the run
// moves on to the next product.
func (u *Updater) RunOnce(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	products, err := u.store.ListStaleProducts(ctx, u.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Total: len(products)}
	u.logger.Info("refresh run started", "products", len(products))

	for _, product := range products {
		if err := u.limiter.Wait(ctx); err != nil {
			result.Duration = time.Since(started)
			return result, err
		}

		snapshot, err := u.scraper.Scrape(ctx, product.ASIN, string(product.Marketplace))
		if err != nil {
			if ctx.Err() != nil {
				result.Duration = time.Since(started)
				return result, ctx.Err()
			}
			result.Failed++
			u.limiter.RecordError()
			u.logger.Warn("refresh failed, keeping previous state",
				"asin", product.ASIN, "marketplace", product.Marketplace, "error", err)
			continue
		}

		u.limiter.RecordSuccess()

		if _, err := u.ingestor.Ingest(ctx, snapshot, product); err != nil {
			result.Failed++
			u.logger.Error("failed to store refreshed snapshot",
				"asin", product.ASIN, "marketplace", product.Marketplace, "error", err)
			continue
		}

		result.Refreshed++
	}

	result.Duration = time.Since(started)
	u.logger.Info("refresh run finished",
		"total", result.Total,
		"refreshed", result.Refreshed,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	return result, nil
}
