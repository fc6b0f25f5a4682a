package redis

import (
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c, itemTTL: DefaultItemTTL, logger: zap.NewNop()}
}
