package serp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached wraps a provider with an in-memory cache of successful responses,
// so repeating a comparison within one session does not spend API credits.
// Failures are never cached.
type Cached struct {
	next  Provider
	cache *cache.Cache
}

var _ Provider = (*Cached)(nil)

// NewCached wraps next. A ttl <= 0 disables expiry.
func NewCached(next Provider, ttl time.Duration) *Cached {
	cleanup := ttl * 2
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &Cached{next: next, cache: cache.New(ttl, cleanup)}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) RequiresCredential() bool { return NeedsCredential(c.next) }

func (c *Cached) Search(ctx context.Context, req Request) (*Response, error) {
	key := cacheKey(c.next.Name(), req)
	if v, found := c.cache.Get(key); found {
		if resp, ok := v.(*Response); ok {
			hit := *resp
			hit.Cached = true
			return &hit, nil
		}
	}

	resp, err := c.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, resp)
	return resp, nil
}

// Len reports the number of cached responses.
func (c *Cached) Len() int { return c.cache.ItemCount() }

// Flush drops every cached response.
func (c *Cached) Flush() { c.cache.Flush() }

// The credential is part of the key so one account's results are never
// served to another.
func cacheKey(provider string, req Request) string {
	return strings.Join([]string{
		provider,
		req.Keyword,
		req.Language,
		req.Country,
		string(req.Device),
		strconv.Itoa(count(req)),
		req.Credential,
	}, "\x1f")
}
