// Package retention reclaims storage on a schedule. The policy depends on
// the backend: the embedded store reclaims by popularity, the Redis store
// expires rows natively and only needs its indexes reconciled.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/store"
)

// Policy is one reclamation strategy, run repeatedly by the Engine.
type Policy interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// PopularityPolicy degrades and evicts by popularity score: aged items lose
// their image first, much older unpopular items are deleted outright.
type PopularityPolicy struct {
	reclaimer      store.Reclaimer
	degradeHorizon time.Duration
	evictHorizon   time.Duration
	logger         *zap.Logger
}

// NewPopularityPolicy uses the default horizons: degrade after 1h, evict
// after 24h.
func NewPopularityPolicy(reclaimer store.Reclaimer, logger *zap.Logger) *PopularityPolicy {
	return &PopularityPolicy{
		reclaimer:      reclaimer,
		degradeHorizon: time.Hour,
		evictHorizon:   24 * time.Hour,
		logger:         logger,
	}
}

// WithHorizons overrides the degrade and evict horizons where positive.
func (p *PopularityPolicy) WithHorizons(degrade, evict time.Duration) *PopularityPolicy {
	if degrade > 0 {
		p.degradeHorizon = degrade
	}
	if evict > 0 {
		p.evictHorizon = evict
	}
	return p
}

func (p *PopularityPolicy) Name() string { return "popularity" }

// RunOnce degrades first, then evicts. A degrade failure does not block the
// evict pass.
func (p *PopularityPolicy) RunOnce(ctx context.Context) error {
	degraded, err := p.reclaimer.DegradeImages(ctx, p.degradeHorizon)
	if err != nil {
		p.logger.Warn("image degrade failed", zap.Error(err))
	} else if degraded > 0 {
		metrics.RetentionReclaimedTotal.WithLabelValues(p.Name(), "degraded").Add(float64(degraded))
		p.logger.Info("images degraded", zap.Int("count", degraded))
	}

	evicted, err := p.reclaimer.EvictUnpopular(ctx, p.evictHorizon)
	if err != nil {
		return err
	}
	if evicted > 0 {
		metrics.RetentionReclaimedTotal.WithLabelValues(p.Name(), "evicted").Add(float64(evicted))
		p.logger.Info("unpopular items evicted", zap.Int("count", evicted))
	}
	return nil
}

// ExpiryPolicy leans on backend row TTL and reconciles the ordering indexes
// against it.
type ExpiryPolicy struct {
	pruner  store.IndexPruner
	horizon time.Duration
	logger  *zap.Logger
}

// NewExpiryPolicy prunes index members older than horizon.
func NewExpiryPolicy(pruner store.IndexPruner, horizon time.Duration, logger *zap.Logger) *ExpiryPolicy {
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &ExpiryPolicy{pruner: pruner, horizon: horizon, logger: logger}
}

func (p *ExpiryPolicy) Name() string { return "expiry" }

func (p *ExpiryPolicy) RunOnce(ctx context.Context) error {
	pruned, err := p.pruner.PruneIndexes(ctx, p.horizon)
	if err != nil {
		return err
	}
	if pruned > 0 {
		metrics.RetentionReclaimedTotal.WithLabelValues(p.Name(), "pruned").Add(float64(pruned))
		p.logger.Info("index members pruned", zap.Int("count", pruned))
	}
	return nil
}

// Engine runs a policy on a ticker until cancelled.
type Engine struct {
	policy     Policy
	interval   time.Duration
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewEngine creates a retention engine. Non-positive interval defaults to
// 1h, non-positive timeout to 1m.
func NewEngine(policy Policy, interval, runTimeout time.Duration, logger *zap.Logger) *Engine {
	if interval <= 0 {
		interval = time.Hour
	}
	if runTimeout <= 0 {
		runTimeout = time.Minute
	}
	return &Engine{policy: policy, interval: interval, runTimeout: runTimeout, logger: logger}
}

// Run loops until ctx is cancelled. Policy failures are logged and counted,
// never fatal.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("retention stopped", zap.String("policy", e.policy.Name()))
			return ctx.Err()
		case <-ticker.C:
			e.runOnce(ctx)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	if err := e.policy.RunOnce(ctx); err != nil {
		metrics.RetentionRunsTotal.WithLabelValues(e.policy.Name(), "error").Inc()
		e.logger.Warn("retention run failed",
			zap.String("policy", e.policy.Name()), zap.Error(err))
		return
	}
	metrics.RetentionRunsTotal.WithLabelValues(e.policy.Name(), "ok").Inc()
}
