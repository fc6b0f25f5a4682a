// Package items implements the read and engagement use cases over the item
// store, including read-time clustering of near-duplicate titles.
package items

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/newsdex/internal/cluster"
	"github.com/kailas-cloud/newsdex/internal/domain"
)

// DefaultGroupThreshold is the trigram similarity above which two titles
// fall into the same group.
const DefaultGroupThreshold = 0.3

// Service handles item reads and engagement counters.
type Service struct {
	reader   Reader
	counters CounterWriter
	searcher Searcher

	groupingEnabled bool
	groupThreshold  float64
	freshWindow     time.Duration
}

// New creates an item service. Grouping starts enabled with the default
// threshold; searcher may be nil when the backend has no search capability.
func New(reader Reader, counters CounterWriter) *Service {
	return &Service{
		reader:          reader,
		counters:        counters,
		groupingEnabled: true,
		groupThreshold:  DefaultGroupThreshold,
		freshWindow:     time.Hour,
	}
}

// WithGrouping configures read-time title clustering.
func (s *Service) WithGrouping(enabled bool, threshold float64) *Service {
	s.groupingEnabled = enabled
	if threshold > 0 {
		s.groupThreshold = threshold
	}
	return s
}

// WithSearcher attaches the optional search capability.
func (s *Service) WithSearcher(searcher Searcher) *Service {
	s.searcher = searcher
	return s
}

// WithFreshWindow overrides the trailing window used by Fresh.
func (s *Service) WithFreshWindow(window time.Duration) *Service {
	if window > 0 {
		s.freshWindow = window
	}
	return s
}

// List returns one page of items for a category (zero value means all),
// newest first, with near-duplicate titles collapsed. The cursor resumes a
// previous page and comes back empty at the end of data.
func (s *Service) List(ctx context.Context, category domain.Category, limit int, cursor string) (
	[]domain.Item, string, error,
) {
	items, next, err := s.reader.Query(ctx, category, limit, cursor)
	if err != nil {
		return nil, "", fmt.Errorf("list items: %w", err)
	}
	return s.collapse(items), next, nil
}

// Fresh returns items published within the trailing window; a non-positive
// window falls back to the configured default.
func (s *Service) Fresh(ctx context.Context, category domain.Category, window time.Duration, limit int) ([]domain.Item, error) {
	if window <= 0 {
		window = s.freshWindow
	}
	items, err := s.reader.QueryFresh(ctx, category, window, limit)
	if err != nil {
		return nil, fmt.Errorf("fresh items: %w", err)
	}
	return s.collapse(items), nil
}

// Popular returns items whose popularity rank falls in [minPct, maxPct]
// over the scored population, most popular first.
func (s *Service) Popular(ctx context.Context, minPct, maxPct float64, limit int) ([]domain.Item, error) {
	items, err := s.reader.QueryByPopularityPercentile(ctx, minPct, maxPct, limit)
	if err != nil {
		return nil, fmt.Errorf("popular items: %w", err)
	}
	return items, nil
}

// Get returns a single item by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Item, error) {
	item, err := s.reader.GetByID(ctx, id)
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Search runs substring search when the backend supports it, otherwise
// domain.ErrUnsupported.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	if s.searcher == nil {
		return nil, domain.ErrUnsupported
	}
	items, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return items, nil
}

// RecordView counts one view and returns the updated counter.
func (s *Service) RecordView(ctx context.Context, id string) (int64, error) {
	count, err := s.counters.RecordView(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("record view: %w", err)
	}
	return count, nil
}

// RecordClick counts one click and returns the updated counter.
func (s *Service) RecordClick(ctx context.Context, id string) (int64, error) {
	count, err := s.counters.RecordClick(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("record click: %w", err)
	}
	return count, nil
}

// collapse folds near-duplicate titles within one page. Each multi-member
// group keeps its earliest item, annotated with a fresh group id and the
// member count; the rest of the group is dropped from the page. Group ids
// are per-response handles, not stored identifiers.
func (s *Service) collapse(items []domain.Item) []domain.Item {
	if !s.groupingEnabled || len(items) < 2 {
		return items
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	out := make([]domain.Item, 0, len(items))
	for _, members := range cluster.Group(titles, s.groupThreshold) {
		lead := items[members[0]]
		if len(members) > 1 {
			lead.GroupID = uuid.NewString()
			lead.GroupCount = len(members)
		}
		out = append(out, lead)
	}
	return out
}
