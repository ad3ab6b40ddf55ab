package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache is the subset of the Redis cache the decorator needs.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const (
	keyPrefixJobs        = "feed:jobs:"
	keyPrefixCurated     = "feed:curated:"
	keyCommunities       = "feed:communities"
	invalidateAllPattern = "feed:*"
)

// Cached wraps an API with a read-through page cache. Identical concurrent
// loads share one backend call. Every write invalidates all cached pages, so
// a reload after a mutation always reflects it.
type Cached struct {
	next   API
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group

	// generation is bumped by every write. Loads started under an older
	// generation are neither shared with newer loads nor stored.
	generation atomic.Uint64
}

func NewCached(next API, cache Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger.Named("feed_cache")}
}

type pageKeyInput struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Search     string `json:"search"`
	FeedSource string `json:"feed_source,omitempty"`
}

func normalizeSearch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func pageCacheKey(prefix string, in pageKeyInput) string {
	in.Search = normalizeSearch(in.Search)
	in.FeedSource = strings.TrimSpace(in.FeedSource)
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:])
}

func (c *Cached) ListJobs(ctx context.Context, page, pageSize int, search string, filters Filters) (JobPage, error) {
	key := pageCacheKey(keyPrefixJobs, pageKeyInput{Page: page, PageSize: pageSize, Search: search, FeedSource: filters.FeedSource})
	return load(ctx, c, key, func(ctx context.Context) (JobPage, error) {
		return c.next.ListJobs(ctx, page, pageSize, search, filters)
	})
}

func (c *Cached) ListCuratedJobs(ctx context.Context, page int, search string, pageSize int) (CuratedPage, error) {
	key := pageCacheKey(keyPrefixCurated, pageKeyInput{Page: page, PageSize: pageSize, Search: search})
	return load(ctx, c, key, func(ctx context.Context) (CuratedPage, error) {
		return c.next.ListCuratedJobs(ctx, page, search, pageSize)
	})
}

func (c *Cached) ListCommunities(ctx context.Context) ([]Community, error) {
	return load(ctx, c, keyCommunities, c.next.ListCommunities)
}

func load[T any](ctx context.Context, c *Cached, key string, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.cache != nil {
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err == nil && hit {
			c.logger.Debug("cache hit", zap.String("key", key))
			return cached, nil
		}
		c.logger.Debug("cache miss", zap.String("key", key))
	}

	gen := c.generation.Load()
	v, err, shared := c.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		out, err := fetch(ctx)
		if err != nil {
			return out, err
		}
		c.store(ctx, key, gen, out)
		return out, nil
	})
	if shared {
		c.logger.Debug("shared in-flight load", zap.String("key", key))
	}
	out, _ := v.(T)
	return out, err
}

// store caches a page loaded under generation gen unless a write happened
// since. A write racing the store itself is undone by deleting the key.
func (c *Cached) store(ctx context.Context, key string, gen uint64, value any) {
	if c.cache == nil {
		return
	}
	if c.generation.Load() != gen {
		c.logger.Debug("page predates a write, not caching", zap.String("key", key))
		return
	}
	if err := c.cache.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
		return
	}
	if c.generation.Load() != gen {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *Cached) invalidate(ctx context.Context) {
	c.generation.Add(1)
	if c.cache == nil {
		return
	}
	if err := c.cache.DeleteByPattern(ctx, invalidateAllPattern); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

func (c *Cached) UpdateJobField(ctx context.Context, jobID int64, field, value string) (RawJob, error) {
	out, err := c.next.UpdateJobField(ctx, jobID, field, value)
	if err == nil {
		c.invalidate(ctx)
	}
	return out, err
}

func (c *Cached) UpdateJobOverrides(ctx context.Context, jobID int64, patch OverridesPatch) (RawJob, error) {
	out, err := c.next.UpdateJobOverrides(ctx, jobID, patch)
	if err == nil {
		c.invalidate(ctx)
	}
	return out, err
}

func (c *Cached) SetJobPriority(ctx context.Context, req PriorityRequest) error {
	err := c.next.SetJobPriority(ctx, req)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Cached) RemoveJobFromCuration(ctx context.Context, jobID int64) error {
	err := c.next.RemoveJobFromCuration(ctx, jobID)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Cached) RemoveJobFromCommunity(ctx context.Context, jobID, communityID int64) error {
	err := c.next.RemoveJobFromCommunity(ctx, jobID, communityID)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}
