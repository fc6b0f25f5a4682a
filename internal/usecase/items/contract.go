package items

import (
	"context"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Reader is the storage surface the item service reads from.
type Reader interface {
	Query(ctx context.Context, category domain.Category, limit int, cursor string) (
		items []domain.Item, nextCursor string, err error,
	)
	QueryFresh(ctx context.Context, category domain.Category, window time.Duration, limit int) ([]domain.Item, error)
	QueryByPopularityPercentile(ctx context.Context, minPct, maxPct float64, limit int) ([]domain.Item, error)
	GetByID(ctx context.Context, id string) (domain.Item, error)
}

// CounterWriter records engagement events.
type CounterWriter interface {
	RecordView(ctx context.Context, id string) (int64, error)
	RecordClick(ctx context.Context, id string) (int64, error)
}

// Searcher is the optional substring search capability of the backend.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Item, error)
}
