// Package cache adds a Redis read-through cache in front of full-collection
// lists. Any write through the wrapper drops the owner's cached list.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

const keyPrefix = "service:aidplug"

// Collection caches unfiltered List results per principal.
type Collection[T any] struct {
	next      repository.CollectionRepositoryInterface[T]
	rdb       redis.Cmdable
	principal repository.PrincipalInterface
	ttl       time.Duration
	logger    *zap.Logger
}

var _ repository.CollectionRepositoryInterface[model.Deal] = (*Collection[model.Deal])(nil)

func Wrap[T any](next repository.CollectionRepositoryInterface[T], rdb redis.Cmdable, principal repository.PrincipalInterface, ttl time.Duration, logger *zap.Logger) *Collection[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection[T]{next: next, rdb: rdb, principal: principal, ttl: ttl, logger: logger}
}

// WrapTables wraps every table in t.
func WrapTables(t repository.Tables, rdb redis.Cmdable, principal repository.PrincipalInterface, ttl time.Duration, logger *zap.Logger) repository.Tables {
	return repository.Tables{
		Profiles: Wrap(t.Profiles, rdb, principal, ttl, logger),
		Leads:    Wrap(t.Leads, rdb, principal, ttl, logger),
		Clients:  Wrap(t.Clients, rdb, principal, ttl, logger),
		Deals:    Wrap(t.Deals, rdb, principal, ttl, logger),
		Tasks:    Wrap(t.Tasks, rdb, principal, ttl, logger),
	}
}

// Key is the Redis key of uid's cached list for table.
func Key(table, uid string) string {
	return fmt.Sprintf("%s|%s|user_id:%v", keyPrefix, table, uid)
}

func (c *Collection[T]) Table() string { return c.next.Table() }

func (c *Collection[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, error) {
	if !opts.IsZero() {
		return c.next.List(ctx, opts)
	}
	uid, err := c.principal.UserID(ctx)
	if err != nil {
		return nil, err
	}
	key := Key(c.Table(), uid)

	str, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var out []T
		if err := json.Unmarshal([]byte(str), &out); err == nil {
			return out, nil
		}
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err := c.next.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (repository.Lookup[T], error) {
	return c.next.Get(ctx, id)
}

func (c *Collection[T]) Count(ctx context.Context, opts repository.ListOptions) (int, error) {
	return c.next.Count(ctx, opts)
}

func (c *Collection[T]) Insert(ctx context.Context, values any) (T, error) {
	rec, err := c.next.Insert(ctx, values)
	if err == nil {
		c.invalidate(ctx)
	}
	return rec, err
}

func (c *Collection[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	rec, err := c.next.Update(ctx, id, patch)
	if err == nil {
		c.invalidate(ctx)
	}
	return rec, err
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	err := c.next.Delete(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Collection[T]) invalidate(ctx context.Context) {
	uid, err := c.principal.UserID(ctx)
	if err != nil {
		return
	}
	if err := c.rdb.Del(ctx, Key(c.Table(), uid)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("table", c.Table()), zap.Error(err))
	}
}
