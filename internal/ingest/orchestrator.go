// Package ingest drives the periodic pipeline: fetch feeds, assign
// deterministic ids, insert into the store, and run housekeeping.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/identity"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/store"
)

// Fetcher downloads one feed and returns its entries as drafts.
type Fetcher interface {
	Fetch(ctx context.Context, feed domain.Feed) ([]domain.Draft, error)
}

// Inserter is the write surface of the store the orchestrator needs.
type Inserter interface {
	InsertBatch(ctx context.Context, items []domain.Item) (int, error)
}

// Config tunes the orchestrator loop. Zero values take the defaults.
type Config struct {
	FetchInterval     time.Duration // default 10m
	HousekeepInterval time.Duration // default 24h
	RetainFor         time.Duration // default 7d, fixed-horizon cleanup
	OpTimeout         time.Duration // default 30s per store call
}

func (c Config) withDefaults() Config {
	if c.FetchInterval <= 0 {
		c.FetchInterval = 10 * time.Minute
	}
	if c.HousekeepInterval <= 0 {
		c.HousekeepInterval = 24 * time.Hour
	}
	if c.RetainFor <= 0 {
		c.RetainFor = 7 * 24 * time.Hour
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 30 * time.Second
	}
	return c
}

// Orchestrator owns the single ingestion goroutine.
type Orchestrator struct {
	fetcher Fetcher
	store   Inserter
	feeds   []domain.Feed
	cfg     Config
	logger  *zap.Logger

	housekeeper store.Housekeeper
	pruner      store.IndexPruner
}

// New creates an orchestrator over the given feeds.
func New(fetcher Fetcher, inserter Inserter, feeds []domain.Feed, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		store:   inserter,
		feeds:   feeds,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// WithHousekeeper attaches the fixed-horizon cleanup capability.
func (o *Orchestrator) WithHousekeeper(h store.Housekeeper) *Orchestrator {
	o.housekeeper = h
	return o
}

// WithIndexPruner attaches the index reconciliation capability.
func (o *Orchestrator) WithIndexPruner(p store.IndexPruner) *Orchestrator {
	o.pruner = p
	return o
}

// Run fetches once immediately, then loops until ctx is cancelled. Store and
// feed failures are logged and absorbed; only cancellation stops the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	fetchTicker := time.NewTicker(o.cfg.FetchInterval)
	defer fetchTicker.Stop()
	housekeepTicker := time.NewTicker(o.cfg.HousekeepInterval)
	defer housekeepTicker.Stop()

	o.FetchOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("ingestion stopped")
			return ctx.Err()
		case <-fetchTicker.C:
			o.FetchOnce(ctx)
		case <-housekeepTicker.C:
			o.HousekeepOnce(ctx)
		}
	}
}

// FetchOnce runs one fetch pass over all feeds. Each source fails
// independently.
func (o *Orchestrator) FetchOnce(ctx context.Context) {
	start := time.Now()
	fetched, inserted := 0, 0

	for _, feed := range o.feeds {
		n, ins, err := o.fetchFeed(ctx, feed)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.FetchErrorsTotal.WithLabelValues(feed.Source).Inc()
			o.logger.Warn("feed fetch failed, skipping source",
				zap.String("source", feed.Source), zap.Error(err))
			continue
		}
		fetched += n
		inserted += ins
	}

	o.logger.Info("fetch pass complete",
		zap.Int("fetched", fetched),
		zap.Int("inserted", inserted),
		zap.Duration("elapsed", time.Since(start)))
}

func (o *Orchestrator) fetchFeed(ctx context.Context, feed domain.Feed) (fetched, inserted int, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.OpTimeout)
	defer cancel()

	drafts, err := o.fetcher.Fetch(ctx, feed)
	if err != nil {
		return 0, 0, err
	}
	metrics.ItemsFetchedTotal.WithLabelValues(feed.Source).Add(float64(len(drafts)))

	now := time.Now()
	items := make([]domain.Item, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, domain.Item{
			ID:          identity.Resolve(d.URL),
			Category:    feed.Category,
			Title:       d.Title,
			URL:         d.URL,
			Description: d.Summary,
			ImageURL:    d.ImageURL,
			Source:      feed.Source,
			PublishedAt: d.PublishedAt,
			FetchedAt:   now,
		})
	}

	inserted, err = o.store.InsertBatch(ctx, items)
	if err != nil {
		return len(drafts), 0, err
	}
	metrics.ItemsInsertedTotal.WithLabelValues(feed.Source).Add(float64(inserted))
	return len(drafts), inserted, nil
}

// HousekeepOnce runs one housekeeping pass over whatever capabilities the
// backend offers.
func (o *Orchestrator) HousekeepOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.OpTimeout)
	defer cancel()

	if o.housekeeper != nil {
		cutoff := time.Now().Add(-o.cfg.RetainFor)
		deleted, err := o.housekeeper.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			o.logger.Warn("fixed-horizon cleanup failed", zap.Error(err))
		} else if deleted > 0 {
			o.logger.Info("expired items removed", zap.Int("deleted", deleted))
		}

		cleaned, err := o.housekeeper.CleanupCache(ctx)
		if err != nil {
			o.logger.Warn("cache cleanup failed", zap.Error(err))
		} else if cleaned > 0 {
			o.logger.Info("expired cache entries removed", zap.Int("cleaned", cleaned))
		}
	}

	if o.pruner != nil {
		pruned, err := o.pruner.PruneIndexes(ctx, o.cfg.RetainFor)
		if err != nil {
			o.logger.Warn("index pruning failed", zap.Error(err))
		} else if pruned > 0 {
			o.logger.Info("stale index members removed", zap.Int("pruned", pruned))
		}
	}
}
