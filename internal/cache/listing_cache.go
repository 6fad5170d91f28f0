// Package cache keeps the full listing collection in Redis between writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kostBack/internal/models"
)

const (
	DefaultTTL     = 5 * time.Minute
	listingsAllKey = "products:all"
	generationKey  = "products:gen"
)

var errStale = errors.New("cache: generation moved")

// ListingCache is safe to use as a nil pointer; every call is then a miss.
type ListingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewListingCache(rdb *redis.Client, ttl time.Duration) *ListingCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ListingCache{rdb: rdb, ttl: ttl}
}

// Generation returns the current write generation. A collection read from
// the database after this call may be stored with Set under the same value.
func (c *ListingCache) Generation(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	return gen, nil
}

// Get reports a hit only when a complete collection is cached.
func (c *ListingCache) Get(ctx context.Context) ([]models.Listing, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	b, err := c.rdb.Get(ctx, listingsAllKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var listings []models.Listing
	if err := json.Unmarshal(b, &listings); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return listings, true, nil
}

// Set stores listings only while the generation is still gen, so a
// collection read before a write never outlives that write.
func (c *ListingCache) Set(ctx context.Context, gen int64, listings []models.Listing) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, listingsAllKey, b, c.ttl)
			return nil
		})
		return err
	}, generationKey)
	if errors.Is(err, errStale) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate bumps the generation and drops the cached collection.
func (c *ListingCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, listingsAllKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
