// Package sqlite is the embedded relational Store adapter. All connection
// access is serialized behind one mutex; the pool is pinned to a single
// connection so the lock really does guard the handle.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/store"
)

//go:embed schema.sql
var schema string

// Compile-time checks for the contract and capability interfaces.
var (
	_ store.Store       = (*Store)(nil)
	_ store.Reclaimer   = (*Store)(nil)
	_ store.Housekeeper = (*Store)(nil)
	_ store.Cache       = (*Store)(nil)
	_ store.Searcher    = (*Store)(nil)
)

const itemColumns = `id, category, title, url, description, image_url, source,
       published_at, fetched_at, view_count, click_count, popularity_score`

// Store implements store.Store over an embedded SQLite database.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

// New opens (or creates) the database at path and applies the schema.
func New(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: the mutex serializes access, and in-memory databases
	// would otherwise get a fresh empty schema per pooled connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(
		"PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA synchronous=NORMAL;",
	); err != nil {
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.PingContext(ctx); err != nil {
		return &store.Error{Op: store.OpPing, Err: err}
	}
	return nil
}

// Insert persists the item unless the id exists. INSERT OR IGNORE makes the
// conditional write atomic: no read-then-write window, first writer wins.
func (s *Store) Insert(ctx context.Context, item domain.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO items
		    (id, category, title, url, description, image_url, source, published_at, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Category.String(), item.Title, item.URL,
		nullable(item.Description), nullable(item.ImageURL), item.Source,
		formatTime(item.PublishedAt), formatTime(item.FetchedAt),
	)
	if err != nil {
		return false, &store.Error{Op: store.OpInsert, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &store.Error{Op: store.OpInsert, Err: err}
	}
	return n > 0, nil
}

// InsertBatch inserts each item independently; a failing item is logged and
// skipped. Returns the count of newly inserted rows.
func (s *Store) InsertBatch(ctx context.Context, items []domain.Item) (int, error) {
	inserted := 0
	for _, item := range items {
		ok, err := s.Insert(ctx, item)
		if err != nil {
			s.logger.Warn("insert failed, skipping item",
				zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// Query pages through items in (published_at DESC, id DESC) order.
func (s *Store) Query(
	ctx context.Context, category domain.Category, limit int, cursor string,
) ([]domain.Item, string, error) {
	limit = store.ClampLimit(limit)

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, category.String())
	}
	if c, ok := store.DecodeCursor(cursor); ok {
		conditions = append(conditions, "(published_at < ? OR (published_at = ? AND id < ?))")
		cp := formatTime(c.PublishedAt)
		args = append(args, cp, cp, c.ID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit+1)

	query := fmt.Sprintf(
		`SELECT %s FROM items %s ORDER BY published_at DESC, id DESC LIMIT ?`,
		itemColumns, where,
	)

	s.mu.Lock()
	items, err := s.queryItems(ctx, query, args...)
	s.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = store.EncodeCursor(items[len(items)-1])
	}
	return items, next, nil
}

// QueryFresh returns items published within the trailing window.
func (s *Store) QueryFresh(
	ctx context.Context, category domain.Category, window time.Duration, limit int,
) ([]domain.Item, error) {
	limit = store.ClampLimit(limit)
	cutoff := formatTime(time.Now().Add(-window))

	query := fmt.Sprintf(
		`SELECT %s FROM items WHERE published_at >= ?
		 ORDER BY published_at DESC, id DESC LIMIT ?`, itemColumns)
	args := []any{cutoff, limit}
	if category != "" {
		query = fmt.Sprintf(
			`SELECT %s FROM items WHERE category = ? AND published_at >= ?
			 ORDER BY published_at DESC, id DESC LIMIT ?`, itemColumns)
		args = []any{category.String(), cutoff, limit}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryItems(ctx, query, args...)
}

// QueryByPopularityPercentile returns the rank window [minPct, maxPct] over
// items with nonzero popularity, most popular first, recency as tie-break.
func (s *Store) QueryByPopularityPercentile(
	ctx context.Context, minPct, maxPct float64, limit int,
) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE popularity_score > 0",
	).Scan(&total)
	if err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}
	if total == 0 {
		return nil, nil
	}

	skip, take := store.PercentileWindow(total, minPct, maxPct, limit)
	if take <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT %s FROM items WHERE popularity_score > 0
		 ORDER BY popularity_score DESC, published_at DESC LIMIT ? OFFSET ?`, itemColumns)
	return s.queryItems(ctx, query, take, skip)
}

// GetByID returns one item or domain.ErrItemNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf("SELECT %s FROM items WHERE id = ?", itemColumns)
	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, &store.Error{Op: store.OpGet, Err: err}
	}
	return item, nil
}

// RecordView increments the view counter and recomputes the popularity
// score from the updated counters.
func (s *Store) RecordView(ctx context.Context, id string) (int64, error) {
	return s.bumpCounter(ctx, id, "view_count")
}

// RecordClick increments the click counter and recomputes the popularity
// score from the updated counters.
func (s *Store) RecordClick(ctx context.Context, id string) (int64, error) {
	return s.bumpCounter(ctx, id, "click_count")
}

func (s *Store) bumpCounter(ctx context.Context, id, column string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE items SET %s = %s + 1 WHERE id = ?", column, column), id,
	); err != nil {
		return 0, &store.Error{Op: store.OpUpdate, Err: err}
	}

	// Recompute from the updated counters so the score never lags them.
	if _, err := s.db.ExecContext(ctx,
		"UPDATE items SET popularity_score = view_count * 0.7 + click_count * 0.3 WHERE id = ?",
		id,
	); err != nil {
		return 0, &store.Error{Op: store.OpUpdate, Err: err}
	}

	var count int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM items WHERE id = ?", column), id,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrItemNotFound
	}
	if err != nil {
		return 0, &store.Error{Op: store.OpGet, Err: err}
	}
	return count, nil
}

// Search does substring matching over title and description.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern := "%" + query + "%"
	sqlQuery := fmt.Sprintf(
		`SELECT %s FROM items WHERE title LIKE ? OR description LIKE ?
		 ORDER BY published_at DESC, id DESC LIMIT ?`, itemColumns)
	return s.queryItems(ctx, sqlQuery, pattern, pattern, store.ClampLimit(limit))
}

// --- Reclamation ---

// DegradeImages clears image URLs of aged items whose nonzero popularity
// falls below the median of the aged, scored population. Items with zero
// recorded popularity are left untouched.
func (s *Store) DegradeImages(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	s.mu.Lock()
	defer s.mu.Unlock()

	var median float64
	err := s.db.QueryRowContext(ctx,
		`SELECT popularity_score FROM items
		 WHERE published_at < ? AND popularity_score > 0
		 ORDER BY popularity_score
		 LIMIT 1 OFFSET (SELECT COUNT(*) FROM items WHERE published_at < ? AND popularity_score > 0) / 2`,
		cutoff, cutoff,
	).Scan(&median)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &store.Error{Op: store.OpQuery, Err: err}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET image_url = NULL
		 WHERE published_at < ?
		   AND popularity_score < ?
		   AND popularity_score > 0
		   AND image_url IS NOT NULL`,
		cutoff, median,
	)
	if err != nil {
		return 0, &store.Error{Op: store.OpUpdate, Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// EvictUnpopular deletes aged items scoring below the 20th-percentile-from-
// the-top cutoff, keeping roughly the top 20% of the aged population.
func (s *Store) EvictUnpopular(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	s.mu.Lock()
	defer s.mu.Unlock()

	var cutoffScore float64
	err := s.db.QueryRowContext(ctx,
		`SELECT popularity_score FROM items
		 WHERE published_at < ?
		 ORDER BY popularity_score DESC
		 LIMIT 1 OFFSET (SELECT COUNT(*) * 20 / 100 FROM items WHERE published_at < ?)`,
		cutoff, cutoff,
	).Scan(&cutoffScore)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &store.Error{Op: store.OpQuery, Err: err}
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM items WHERE published_at < ? AND popularity_score < ?",
		cutoff, cutoffScore,
	)
	if err != nil {
		return 0, &store.Error{Op: store.OpDelete, Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Housekeeping ---

// DeleteOlderThan removes items published before cutoff (fixed-horizon
// expiry for the embedded backend).
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM items WHERE published_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, &store.Error{Op: store.OpDelete, Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CleanupCache removes expired auxiliary cache rows.
func (s *Store) CleanupCache(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM aux_cache WHERE expires_at < ?", formatTime(time.Now()))
	if err != nil {
		return 0, &store.Error{Op: store.OpCache, Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Cache ---

// CacheGet returns a cached value or store.ErrCacheMiss.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM aux_cache WHERE cache_key = ? AND expires_at > ?",
		key, formatTime(time.Now()),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCacheMiss
	}
	if err != nil {
		return nil, &store.Error{Op: store.OpCache, Err: err}
	}
	return value, nil
}

// CacheSet stores a value with an expiry.
func (s *Store) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO aux_cache (cache_key, value, expires_at) VALUES (?, ?, ?)",
		key, value, formatTime(time.Now().Add(ttl)),
	)
	if err != nil {
		return &store.Error{Op: store.OpCache, Err: err}
	}
	return nil
}

// --- helpers ---

// queryItems runs a SELECT over itemColumns. Callers hold the mutex.
func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, &store.Error{Op: store.OpQuery, Err: err}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var (
		item        domain.Item
		category    string
		description sql.NullString
		imageURL    sql.NullString
		publishedAt string
		fetchedAt   string
	)
	err := row.Scan(
		&item.ID, &category, &item.Title, &item.URL, &description, &imageURL,
		&item.Source, &publishedAt, &fetchedAt,
		&item.ViewCount, &item.ClickCount, &item.PopularityScore,
	)
	if err != nil {
		return domain.Item{}, err
	}

	cat, err := domain.ParseCategory(category)
	if err != nil {
		cat = domain.CategoryGeneral
	}
	item.Category = cat
	item.Description = description.String
	item.ImageURL = imageURL.String
	item.PublishedAt = parseTime(publishedAt)
	item.FetchedAt = parseTime(fetchedAt)
	return item, nil
}

// formatTime stores second-precision UTC RFC3339 so that lexicographic
// comparison of the TEXT column matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
