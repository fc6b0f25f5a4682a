package redis

import (
	"context"
	"sort"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/store"
)

// Insert persists the item unless the id exists. HSETNX on the id field is
// the atomic claim: whoever sets it first owns the hash, losers see 0 and
// leave storage untouched.
func (s *Store) Insert(ctx context.Context, item domain.Item) (bool, error) {
	key := itemKey(item.ID)

	created, err := s.do(ctx,
		s.b().Hsetnx().Key(key).Field("id").Value(item.ID).Build(),
	).AsBool()
	if err != nil {
		return false, &store.Error{Op: store.OpInsert, Err: err}
	}
	if !created {
		return false, nil
	}

	hset := s.b().Hset().Key(key).FieldValue()
	for k, v := range itemFields(item) {
		hset = hset.FieldValue(k, v)
	}
	score := unixSecond(item.PublishedAt)
	cmds := []rueidis.Completed{
		hset.Build(),
		s.b().Expire().Key(key).Seconds(int64(s.itemTTL.Seconds())).Build(),
		s.b().Zadd().Key(idxAllKey).ScoreMember().ScoreMember(score, item.ID).Build(),
		s.b().Zadd().Key(catIndexKey(item.Category)).ScoreMember().ScoreMember(score, item.ID).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return true, &store.Error{Op: store.OpInsert, Err: err}
		}
	}
	return true, nil
}

// InsertBatch inserts each item independently; a failing item is logged and
// skipped. Returns the count of newly inserted items.
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

// Query pages through items in (published_at DESC, id DESC) order. The index
// scores are publish seconds, so ZREVRANGEBYSCORE walks recency and its
// reverse-lex tie order matches id DESC. A cursor resumes with two reads:
// the remainder of the cursor's own second, then everything strictly older.
func (s *Store) Query(
	ctx context.Context, category domain.Category, limit int, cursor string,
) ([]domain.Item, string, error) {
	limit = store.ClampLimit(limit)
	idx := indexKey(category)

	var ids []string
	if c, ok := store.DecodeCursor(cursor); ok {
		sec := unixSecondArg(c.PublishedAt)
		cmds := []rueidis.Completed{
			s.b().Zrevrangebyscore().Key(idx).Max(sec).Min(sec).Build(),
			s.b().Zrevrangebyscore().Key(idx).Max("(" + sec).Min("-inf").
				Limit(0, int64(limit+1)).Build(),
		}
		results := s.client.DoMulti(ctx, cmds...)
		ties, err := results[0].AsStrSlice()
		if err != nil {
			return nil, "", &store.Error{Op: store.OpQuery, Err: err}
		}
		older, err := results[1].AsStrSlice()
		if err != nil {
			return nil, "", &store.Error{Op: store.OpQuery, Err: err}
		}
		for _, id := range ties {
			if id < c.ID {
				ids = append(ids, id)
			}
		}
		ids = append(ids, older...)
		if len(ids) > limit+1 {
			ids = ids[:limit+1]
		}
	} else {
		var err error
		ids, err = s.do(ctx,
			s.b().Zrevrangebyscore().Key(idx).Max("+inf").Min("-inf").
				Limit(0, int64(limit+1)).Build(),
		).AsStrSlice()
		if err != nil {
			return nil, "", &store.Error{Op: store.OpQuery, Err: err}
		}
	}

	items, err := s.hydrate(ctx, ids)
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

	ids, err := s.do(ctx,
		s.b().Zrevrangebyscore().Key(indexKey(category)).
			Max("+inf").Min(unixSecondArg(time.Now().Add(-window))).
			Limit(0, int64(limit)).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}
	return s.hydrate(ctx, ids)
}

// QueryByPopularityPercentile reads the rank window off the popularity
// index, which only holds nonzero scores. The zset breaks score ties by
// member lex order, so recency ordering is restored client-side.
func (s *Store) QueryByPopularityPercentile(
	ctx context.Context, minPct, maxPct float64, limit int,
) ([]domain.Item, error) {
	total, err := s.do(ctx, s.b().Zcard().Key(idxPopKey).Build()).AsInt64()
	if err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}

	skip, take := store.PercentileWindow(total, minPct, maxPct, limit)
	if take <= 0 {
		return nil, nil
	}

	ids, err := s.do(ctx,
		s.b().Zrevrangebyscore().Key(idxPopKey).Max("+inf").Min("(0").
			Limit(skip, take).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}

	items, err := s.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PopularityScore != items[j].PopularityScore {
			return items[i].PopularityScore > items[j].PopularityScore
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}

// GetByID returns one item or domain.ErrItemNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Item, error) {
	fields, err := s.do(ctx, s.b().Hgetall().Key(itemKey(id)).Build()).AsStrMap()
	if err != nil {
		return domain.Item{}, &store.Error{Op: store.OpGet, Err: err}
	}
	if len(fields) == 0 || fields["id"] == "" {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return parseItem(fields), nil
}

// hydrate fetches the hashes behind ids, preserving order. Members whose
// hash already expired are skipped and removed from the indexes; the page
// may come back short, which callers tolerate.
func (s *Store) hydrate(ctx context.Context, ids []string) ([]domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		cmds[i] = s.b().Hgetall().Key(itemKey(id)).Build()
	}
	results := s.client.DoMulti(ctx, cmds...)

	items := make([]domain.Item, 0, len(ids))
	var dead []string
	for i, res := range results {
		fields, err := res.AsStrMap()
		if err != nil {
			return nil, &store.Error{Op: store.OpGet, Err: err}
		}
		if len(fields) == 0 || fields["id"] == "" {
			dead = append(dead, ids[i])
			continue
		}
		items = append(items, parseItem(fields))
	}

	if len(dead) > 0 {
		s.removeFromIndexes(ctx, dead)
	}
	return items, nil
}

// removeFromIndexes drops members from every index. Best effort: a failure
// here only delays cleanup until the next sweep.
func (s *Store) removeFromIndexes(ctx context.Context, ids []string) {
	keys := []string{idxAllKey, idxPopKey}
	for _, c := range domain.AllCategories() {
		keys = append(keys, catIndexKey(c))
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Zrem().Key(key).Member(ids...).Build()
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			s.logger.Warn("index cleanup failed", zap.Error(err))
			return
		}
	}
}
