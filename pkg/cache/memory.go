package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"attendly/pkg/logger"

	"github.com/jellydator/ttlcache/v3"
)

// memoryService is an in-process Service used when Redis is disabled.
type memoryService struct {
	items *ttlcache.Cache[string, []byte]
	log   *logger.Logger
}

// NewMemoryService returns an in-process cache. Call the returned stop
// function on shutdown to end the expiry loop.
func NewMemoryService(log *logger.Logger) (Service, func()) {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &memoryService{items: items, log: log}, items.Stop
}

func (s *memoryService) Get(ctx context.Context, key string, dest interface{}) error {
	item := s.items.Get(key)
	if item == nil {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(item.Value(), dest); err != nil {
		s.log.WarnContext(ctx, "Dropping undecodable cache entry", "key", key, "error", err.Error())
		s.items.Delete(key)
		return ErrCacheMiss
	}
	return nil
}

func (s *memoryService) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	s.items.Set(key, data, ttl)
	return nil
}

func (s *memoryService) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.items.Delete(key)
	}
	return nil
}

func (s *memoryService) Ping(context.Context) error {
	return nil
}
