package cache

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/v3/cache"
	"github.com/eko/gocache/v3/store"
	"github.com/go-faster/errors"
)

var ErrorNotFound = errors.New("key not found")

// ICache is a string keyed cache with per item expiration.
type ICache[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryCache keeps items in a ristretto cache where every item costs 1,
// so MaxItems bounds the number of entries.
type InMemoryCache[T any] struct {
	cache     *gocache.Cache[T]
	ristretto *ristretto.Cache
}

var _ ICache[int] = (*InMemoryCache[int])(nil)

// Set stores value and waits until it becomes visible to Get.
func (c *InMemoryCache[T]) Set(ctx context.Context, key string, value T, expiration time.Duration) error {
	if err := c.cache.Set(ctx, key, value, store.WithCost(1), store.WithExpiration(expiration)); err != nil {
		return err
	}
	c.ristretto.Wait()
	return nil
}

func (c *InMemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	value, err := c.cache.Get(ctx, key)
	if err != nil {
		var resultObject T
		if strings.Contains(err.Error(), "value not found") {
			return resultObject, ErrorNotFound
		}
		return resultObject, err
	}
	return value, nil
}

func (c *InMemoryCache[T]) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

func NewInMemoryCache[T any](maxItems int64) (*InMemoryCache[T], error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * maxItems,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	ristrettoStore := store.NewRistretto(ristrettoCache)
	return &InMemoryCache[T]{
		cache:     gocache.New[T](ristrettoStore),
		ristretto: ristrettoCache,
	}, nil
}
