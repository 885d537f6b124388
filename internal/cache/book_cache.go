package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/catalog-service/internal/domain"
)

const bookKeyPrefix = "catalog:book:"

// BookCache is a read-through cache of catalog entries stored as JSON.
type BookCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewBookCache returns a cache whose entries live for ttl.
func NewBookCache(client redis.Cmdable, ttl time.Duration) *BookCache {
	return &BookCache{client: client, ttl: ttl}
}

// Get returns the cached book, or (nil, nil) on a miss.
func (c *BookCache) Get(ctx context.Context, id string) (*domain.Book, error) {
	raw, err := c.client.Get(ctx, bookKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var book domain.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// Set stores book under its id.
func (c *BookCache) Set(ctx context.Context, book *domain.Book) error {
	raw, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bookKeyPrefix+book.ID, raw, c.ttl).Err()
}

// Invalidate drops the cached entry for id.
func (c *BookCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, bookKeyPrefix+id).Err()
}
