package utils

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Cache key namespaces shared with middlewares.ResponseCache.
const (
	CacheEventsList = "cache:events:list:"
	CacheEventsItem = "cache:events:item:"
	CacheOrgsItem   = "cache:orgs:item:"
)

type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator { return &CacheInvalidator{rdb} }

func (ci *CacheInvalidator) purge(ctx context.Context, pattern string) {
	iter := ci.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = ci.rdb.Del(ctx, iter.Val()).Err()
	}
}

// PurgeEventsList drops every cached event listing, including
// per-organisation listings.
func (ci *CacheInvalidator) PurgeEventsList(ctx context.Context) {
	ci.purge(ctx, CacheEventsList+"*")
}

// PurgeEventItem drops the cached copy of one event.
func (ci *CacheInvalidator) PurgeEventItem(ctx context.Context, id string) {
	// key 保留原始 id，可以精準刪除
	ci.purge(ctx, CacheEventsItem+id+":*")
}

// PurgeOrganization drops the cached copy of one organisation.
func (ci *CacheInvalidator) PurgeOrganization(ctx context.Context, id string) {
	ci.purge(ctx, CacheOrgsItem+id+":*")
}
