// Package redis is the Redis Store adapter. Items live in per-id hashes
// with a fixed TTL; three sorted sets (per category, global, popularity)
// provide the ordered access paths. Index members can outlive their hash,
// so reads prune dead members lazily and PruneIndexes sweeps the rest.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/store"
)

// Compile-time checks for the contract and capability interfaces.
var (
	_ store.Store       = (*Store)(nil)
	_ store.IndexPruner = (*Store)(nil)
	_ store.Cache       = (*Store)(nil)
)

// DefaultItemTTL is how long an item hash lives after its last write.
const DefaultItemTTL = 7 * 24 * time.Hour

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// ItemTTL overrides DefaultItemTTL when positive.
	ItemTTL time.Duration
}

// Store implements store.Store via rueidis.
type Store struct {
	client  rueidis.Client
	itemTTL time.Duration
	logger  *zap.Logger
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	ttl := cfg.ItemTTL
	if ttl <= 0 {
		ttl = DefaultItemTTL
	}
	return &Store{client: client, itemTTL: ttl, logger: logger}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.b().Ping().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &store.Error{Op: store.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
