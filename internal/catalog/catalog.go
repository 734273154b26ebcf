// Package catalog caches the backend product list. Redis is used when
// available so every console instance shares one copy; otherwise the list is
// memoized in-process.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"resto-console/internal/order"
)

const redisKey = "resto-console:catalog:v1"

type Source interface {
	ListProducts(ctx context.Context) ([]order.Product, error)
}

type Service struct {
	source Source
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	products  []order.Product
	expiresAt time.Time
}

func NewService(source Source, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, redis: rdb, ttl: ttl, logger: logger, now: time.Now}
}

// Products returns the cached product list, refreshing it from the backend
// when expired. A failed refresh serves the previous list if there is one.
func (s *Service) Products(ctx context.Context) ([]order.Product, error) {
	s.mu.Lock()
	if s.products != nil && s.now().Before(s.expiresAt) {
		out := s.products
		s.mu.Unlock()
		return out, nil
	}
	stale := s.products
	s.mu.Unlock()

	if cached, remaining, ok := s.readRedis(ctx); ok {
		s.store(cached, memoryTTL(remaining, s.ttl))
		return cached, nil
	}

	if s.source == nil {
		if stale != nil {
			return stale, nil
		}
		return nil, errors.New("catalog source not configured")
	}

	fresh, err := s.source.ListProducts(ctx)
	if err != nil {
		if stale != nil {
			s.logger.Warn("catalog refresh failed, serving stale products", zap.Error(err), zap.Int("products", len(stale)))
			return stale, nil
		}
		return nil, err
	}
	if fresh == nil {
		fresh = []order.Product{}
	}
	s.store(fresh, s.ttl)
	s.writeRedis(ctx, fresh)
	return fresh, nil
}

func (s *Service) Catalog(ctx context.Context) (order.Catalog, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	return order.NewCatalog(products), nil
}

// Invalidate drops both cache layers.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.products = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	if s.redis != nil {
		if err := s.redis.Del(ctx, redisKey).Err(); err != nil {
			s.logger.Warn("catalog redis delete failed", zap.Error(err))
		}
	}
}

func (s *Service) store(products []order.Product, ttl time.Duration) {
	s.mu.Lock()
	s.products = products
	s.expiresAt = s.now().Add(ttl)
	s.mu.Unlock()
}

// memoryTTL bounds the in-process copy of a Redis hit by the key's remaining
// lifetime, so the two tiers expire together. Keys without an expiry (or a
// failed PTTL) fall back to the configured ttl.
func memoryTTL(remaining, ttl time.Duration) time.Duration {
	if remaining <= 0 || remaining > ttl {
		return ttl
	}
	return remaining
}

func (s *Service) readRedis(ctx context.Context) ([]order.Product, time.Duration, bool) {
	if s.redis == nil {
		return nil, 0, false
	}
	pipe := s.redis.Pipeline()
	get := pipe.Get(ctx, redisKey)
	pttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("catalog redis read failed", zap.Error(err))
		return nil, 0, false
	}
	raw, err := get.Bytes()
	if err != nil {
		return nil, 0, false
	}
	var products []order.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		s.logger.Warn("catalog redis payload invalid", zap.Error(err))
		return nil, 0, false
	}
	return products, pttl.Val(), true
}

func (s *Service) writeRedis(ctx context.Context, products []order.Product) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, redisKey, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("catalog redis write failed", zap.Error(err))
	}
}
