package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

const weightsKey = "ensemble:source_weights"

// RedisWeightStore persists per-source ensemble weights in a Redis hash
// so learned weights survive restarts.
type RedisWeightStore struct {
	rdb *redis.Client
}

func NewRedisWeightStore(addr, password string, db int) *RedisWeightStore {
	return &RedisWeightStore{
		rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
	}
}

func (s *RedisWeightStore) Weights(ctx context.Context) (map[string]float64, error) {
	raw, err := s.rdb.HGetAll(ctx, weightsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("weights hgetall: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for source, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out[source] = f
	}
	return out, nil
}

func (s *RedisWeightStore) SetWeight(ctx context.Context, source string, weight float64) error {
	if weight < 0 {
		return fmt.Errorf("weight must be non-negative")
	}
	if err := s.rdb.HSet(ctx, weightsKey, source, weight).Err(); err != nil {
		return fmt.Errorf("weights hset: %w", err)
	}
	return nil
}

func (s *RedisWeightStore) Close() error { return s.rdb.Close() }

// MemoryWeightStore is an in-process WeightStore for single-node runs
// and tests.
type MemoryWeightStore struct {
	mu sync.RWMutex
	m  map[string]float64
}

func NewMemoryWeightStore() *MemoryWeightStore {
	return &MemoryWeightStore{m: make(map[string]float64)}
}

func (s *MemoryWeightStore) Weights(ctx context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryWeightStore) SetWeight(ctx context.Context, source string, weight float64) error {
	if weight < 0 {
		return fmt.Errorf("weight must be non-negative")
	}
	s.mu.Lock()
	s.m[source] = weight
	s.mu.Unlock()
	return nil
}
