package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/store"
)

// PruneIndexes reconciles the sorted sets with row TTL expiry. Two passes:
// drop recency-index members older than horizon outright, then drop any
// remaining member whose hash no longer exists. Returns the number of
// members removed from the global index.
func (s *Store) PruneIndexes(ctx context.Context, horizon time.Duration) (int, error) {
	cutoff := "(" + unixSecondArg(time.Now().Add(-horizon))

	recencyKeys := []string{idxAllKey}
	for _, c := range domain.AllCategories() {
		recencyKeys = append(recencyKeys, catIndexKey(c))
	}

	cmds := make([]rueidis.Completed, len(recencyKeys))
	for i, key := range recencyKeys {
		cmds[i] = s.b().Zremrangebyscore().Key(key).Min("-inf").Max(cutoff).Build()
	}
	results := s.client.DoMulti(ctx, cmds...)
	aged, err := results[0].AsInt64()
	if err != nil {
		return 0, &store.Error{Op: store.OpDelete, Err: err}
	}
	for _, res := range results[1:] {
		if err := res.Error(); err != nil {
			return int(aged), &store.Error{Op: store.OpDelete, Err: err}
		}
	}

	ids, err := s.do(ctx,
		s.b().Zrange().Key(idxAllKey).Min("0").Max("-1").Build(),
	).AsStrSlice()
	if err != nil {
		return int(aged), &store.Error{Op: store.OpQuery, Err: err}
	}
	if len(ids) == 0 {
		return int(aged), nil
	}

	existCmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		existCmds[i] = s.b().Exists().Key(itemKey(id)).Build()
	}
	var dead []string
	for i, res := range s.client.DoMulti(ctx, existCmds...) {
		n, err := res.AsInt64()
		if err != nil {
			return int(aged), &store.Error{Op: store.OpQuery, Err: err}
		}
		if n == 0 {
			dead = append(dead, ids[i])
		}
	}
	if len(dead) > 0 {
		s.removeFromIndexes(ctx, dead)
	}
	return int(aged) + len(dead), nil
}
