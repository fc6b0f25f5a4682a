package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/store"
)

// RecordView increments the view counter, recomputes the popularity score
// and syncs the popularity index.
func (s *Store) RecordView(ctx context.Context, id string) (int64, error) {
	return s.bumpCounter(ctx, id, "view_count")
}

// RecordClick is RecordView for the click counter.
func (s *Store) RecordClick(ctx context.Context, id string) (int64, error) {
	return s.bumpCounter(ctx, id, "click_count")
}

func (s *Store) bumpCounter(ctx context.Context, id, field string) (int64, error) {
	key := itemKey(id)

	// HINCRBY would resurrect an expired hash, so check liveness first.
	exists, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, &store.Error{Op: store.OpUpdate, Err: err}
	}
	if exists == 0 {
		return 0, domain.ErrItemNotFound
	}

	count, err := s.do(ctx,
		s.b().Hincrby().Key(key).Field(field).Increment(1).Build(),
	).AsInt64()
	if err != nil {
		return 0, &store.Error{Op: store.OpUpdate, Err: err}
	}

	vals, err := s.do(ctx,
		s.b().Hmget().Key(key).Field("view_count", "click_count").Build(),
	).AsStrSlice()
	if err != nil {
		return 0, &store.Error{Op: store.OpGet, Err: err}
	}
	var views, clicks int64
	if len(vals) == 2 {
		views, _ = strconv.ParseInt(vals[0], 10, 64)
		clicks, _ = strconv.ParseInt(vals[1], 10, 64)
	}
	score := domain.PopularityScoreOf(views, clicks)

	cmds := []rueidis.Completed{
		s.b().Hset().Key(key).FieldValue().
			FieldValue("popularity_score", strconv.FormatFloat(score, 'f', -1, 64)).Build(),
		s.b().Zadd().Key(idxPopKey).ScoreMember().ScoreMember(score, id).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return 0, &store.Error{Op: store.OpUpdate, Err: err}
		}
	}
	return count, nil
}
