// Package store defines the backend-agnostic item storage contract. Two
// adapters implement it: an embedded SQLite store and a Redis store. Core
// logic depends only on the interfaces here; capability interfaces expose
// the backend-specific reclamation paths.
package store

import (
	"context"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const (
	// DefaultLimit is the page size used when the caller passes none.
	DefaultLimit = 20
	// MaxLimit caps the page size for all read paths.
	MaxLimit = 100
)

// ClampLimit normalizes a requested page size into [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Store is the contract every backend adapter satisfies. Category arguments
// accept the zero value to mean "all categories".
type Store interface {
	// Insert persists the item unless its id already exists. The write is
	// atomic and conditional: first writer wins, a duplicate returns
	// (false, nil) and leaves storage unchanged.
	Insert(ctx context.Context, item domain.Item) (bool, error)

	// InsertBatch applies Insert to each item independently. A failing item
	// is skipped, never aborting the rest. Returns the newly inserted count.
	InsertBatch(ctx context.Context, items []domain.Item) (int, error)

	// Query returns up to limit items ordered by (published_at DESC, id DESC),
	// optionally scoped to a category, resuming after cursor. The returned
	// cursor is empty at the end of data. A malformed cursor starts over.
	Query(ctx context.Context, category domain.Category, limit int, cursor string) ([]domain.Item, string, error)

	// QueryFresh returns items published within the trailing window, same
	// ordering as Query, single bounded page.
	QueryFresh(ctx context.Context, category domain.Category, window time.Duration, limit int) ([]domain.Item, error)

	// QueryByPopularityPercentile returns items whose popularity rank falls
	// in [minPct, maxPct] over the current population of items with nonzero
	// score, ordered by score DESC with recency as tie-break.
	QueryByPopularityPercentile(ctx context.Context, minPct, maxPct float64, limit int) ([]domain.Item, error)

	// GetByID returns a single item or domain.ErrItemNotFound.
	GetByID(ctx context.Context, id string) (domain.Item, error)

	// RecordView increments the view counter, synchronously recomputes the
	// popularity score, and returns the updated counter.
	RecordView(ctx context.Context, id string) (int64, error)

	// RecordClick is RecordView for the click counter.
	RecordClick(ctx context.Context, id string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Reclaimer is the popularity-weighted reclamation capability of the
// embedded backend. The Redis backend reclaims via per-row TTL instead and
// does not implement it.
type Reclaimer interface {
	// DegradeImages clears (not deletes) the image URL of items older than
	// olderThan whose nonzero popularity score is below the median score of
	// that aged population. Returns the number of degraded rows.
	DegradeImages(ctx context.Context, olderThan time.Duration) (int, error)

	// EvictUnpopular deletes items older than olderThan scoring below the
	// 20th-percentile-from-the-top cutoff of that aged population, keeping
	// roughly the top 20% by popularity. Returns the number of deleted rows.
	EvictUnpopular(ctx context.Context, olderThan time.Duration) (int, error)
}

// Housekeeper is the fixed-horizon cleanup capability used by the ingestion
// orchestrator's housekeeping tick.
type Housekeeper interface {
	// DeleteOlderThan removes items published before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// CleanupCache removes expired auxiliary cache entries.
	CleanupCache(ctx context.Context) (int, error)
}

// IndexPruner removes ordering-index members whose backing rows have expired.
// Only meaningful for the Redis backend, where row TTL and the sorted-set
// access paths age independently.
type IndexPruner interface {
	PruneIndexes(ctx context.Context, horizon time.Duration) (int, error)
}

// Cache is a small expiring byte cache for response caching.
type Cache interface {
	// CacheGet returns ErrCacheMiss when the key is absent or expired.
	CacheGet(ctx context.Context, key string) ([]byte, error)
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Searcher is the optional substring search capability. Backends without it
// return domain.ErrUnsupported.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Item, error)
}
