package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
	"golang.org/x/sync/singleflight"
)

// CacheOption is a functional option for ReleaseCache
type CacheOption func(*ReleaseCache)

// WithDefaultTTL sets the freshness window for products without their own TTL
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *ReleaseCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithRetryBackoff sets how long a stale release is served after a failed revalidation
// before the next attempt
func WithRetryBackoff(d time.Duration) CacheOption {
	return func(c *ReleaseCache) {
		if d > 0 {
			c.retryBackoff = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) CacheOption {
	return func(c *ReleaseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// DefaultRetryBackoff is the wait between revalidation attempts while a stale release is served
const DefaultRetryBackoff = 30 * time.Second

// ReleaseCache resolves products through the fetcher and keeps results for each product's TTL.
// Concurrent Get calls for the same product share one fetch.
type ReleaseCache struct {
	fetcher      interfaces.ReleaseFetcher
	defaultTTL   time.Duration
	retryBackoff time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]*model.CacheEntry

	// products keys resolution per product, lists keys release list fetches per repository
	products singleflight.Group
	lists    singleflight.Group
}

var _ interfaces.ReleaseCache = (*ReleaseCache)(nil)

// NewReleaseCache creates an empty cache. Panics if fetcher is nil.
func NewReleaseCache(fetcher interfaces.ReleaseFetcher, opts ...CacheOption) *ReleaseCache {
	if fetcher == nil {
		panic("usecase: ReleaseFetcher must not be nil")
	}

	c := &ReleaseCache{
		fetcher:      fetcher,
		defaultTTL:   model.DefaultTTL,
		retryBackoff: DefaultRetryBackoff,
		now:          time.Now,
		entries:      make(map[string]*model.CacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// detachCancel keeps the parent's deadline but not its cancellation, so one caller
// giving up does not fail a fetch that other callers are waiting on.
func detachCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if dl, ok := parent.Deadline(); ok {
		return context.WithDeadline(ctx, dl)
	}
	return context.WithCancel(ctx)
}

// Get returns the product's release, revalidating it when the cached entry is stale
func (c *ReleaseCache) Get(ctx context.Context, product *model.Product) (*model.Release, error) {
	if product == nil {
		return nil, goerr.New("product is nil", goerr.T(types.ErrTagConfiguration))
	}

	key := product.Key()
	if entry, ok := c.Entry(key); ok && entry.IsFresh(c.now()) {
		return entryResult(entry, product)
	}

	if err := ctx.Err(); err != nil {
		return c.staleOr(ctx, product, goerr.Wrap(err, "context done before revalidation", goerr.V("product", product.Name)))
	}

	ch := c.products.DoChan(key, func() (any, error) {
		// Another caller may have refreshed the entry while this one waited for the flight
		if entry, ok := c.Entry(key); ok && entry.IsFresh(c.now()) {
			return entry, nil
		}

		fetchCtx, cancel := detachCancel(ctx)
		defer cancel()
		return c.revalidate(fetchCtx, product)
	})

	select {
	case <-ctx.Done():
		return c.staleOr(ctx, product, goerr.Wrap(ctx.Err(), "gave up waiting for release", goerr.V("product", product.Name)))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return entryResult(res.Val.(*model.CacheEntry), product)
	}
}

// staleOr returns the last known release of product when the caller can no longer wait
// for revalidation, and err when there is none.
func (c *ReleaseCache) staleOr(ctx context.Context, product *model.Product, err error) (*model.Release, error) {
	release, ok := c.Last(product)
	if !ok {
		return nil, err
	}
	ctxlog.From(ctx).Warn("Revalidation did not finish in time, serving previous release",
		"product", product.Name,
		"tag", release.TagName,
		"error", err,
	)
	return release, nil
}

// Last returns the most recent release stored for product regardless of freshness
func (c *ReleaseCache) Last(product *model.Product) (*model.Release, bool) {
	entry, ok := c.Entry(product.Key())
	if !ok || entry.Release == nil {
		return nil, false
	}
	return entry.Release, true
}

func entryResult(entry *model.CacheEntry, product *model.Product) (*model.Release, error) {
	if entry.Release == nil {
		return nil, goerr.New("no release matched",
			goerr.V("product", product.Name),
			goerr.V("rule", product.Rule.String()),
			goerr.T(types.ErrTagNotFound))
	}
	return entry.Release, nil
}

// revalidate fetches and matches the product, then stores the outcome.
// A failure falls back to the previous successful release when one exists.
func (c *ReleaseCache) revalidate(ctx context.Context, product *model.Product) (*model.CacheEntry, error) {
	logger := ctxlog.From(ctx).With("product", product.Name, "repository", product.Repository())
	key := product.Key()

	release, err := c.fetchAndSelect(ctx, product)
	switch {
	case err == nil:
		entry := c.store(key, release, product)
		logger.Debug("Stored release", "tag", release.TagName, "ttl", entry.TTL)
		return entry, nil

	case goerr.HasTag(err, types.ErrTagNotFound):
		if prev, ok := c.Entry(key); ok && prev.Release != nil {
			logger.Warn("Revalidation found no release, serving previous one",
				"error", err,
				"tag", prev.Release.TagName,
				"age", prev.Age(c.now()),
			)
			return c.retain(prev), nil
		}
		entry := c.store(key, nil, product)
		logger.Debug("Stored negative entry", "ttl", entry.TTL)
		return entry, nil

	default:
		if prev, ok := c.Entry(key); ok && prev.Release != nil {
			logger.Warn("Revalidation failed, serving previous release",
				"error", err,
				"tag", prev.Release.TagName,
				"age", prev.Age(c.now()),
			)
			return c.retain(prev), nil
		}
		return nil, err
	}
}

func (c *ReleaseCache) fetchAndSelect(ctx context.Context, product *model.Product) (*model.Release, error) {
	var releases []*model.Release

	switch product.Rule.Kind {
	case model.RuleLatestStable:
		latest, err := c.fetcher.FetchLatest(ctx, product.Owner, product.Repo)
		if err != nil {
			return nil, err
		}
		releases = []*model.Release{latest}

	case model.RulePrefixMatch:
		v, err, _ := c.lists.Do(product.Repository(), func() (any, error) {
			return c.fetcher.FetchAll(ctx, product.Owner, product.Repo)
		})
		if err != nil {
			return nil, err
		}
		releases = v.([]*model.Release)

	default:
		return nil, goerr.New("unknown selection rule",
			goerr.V("product", product.Name),
			goerr.V("rule", product.Rule.Kind),
			goerr.T(types.ErrTagConfiguration))
	}

	release, err := product.Select(releases)
	if err != nil {
		return nil, goerr.Wrap(err, "selection rule matched nothing",
			goerr.V("product", product.Name),
			goerr.V("rule", product.Rule.String()),
			goerr.T(types.ErrTagNotFound))
	}

	if err := release.Validate(); err != nil {
		return nil, goerr.Wrap(err, "selected release is incomplete",
			goerr.V("product", product.Name),
			goerr.T(types.ErrTagTransport))
	}

	return release, nil
}

func (c *ReleaseCache) ttlOf(product *model.Product) time.Duration {
	if product.TTL > 0 {
		return product.TTL
	}
	return c.defaultTTL
}

func (c *ReleaseCache) store(key string, release *model.Release, product *model.Product) *model.CacheEntry {
	entry := &model.CacheEntry{
		Key:       key,
		Release:   release,
		FetchedAt: c.now(),
		TTL:       c.ttlOf(product),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	return entry
}

// retain keeps serving prev for the retry backoff. FetchedAt stays the time of the last
// successful fetch.
func (c *ReleaseCache) retain(prev *model.CacheEntry) *model.CacheEntry {
	entry := &model.CacheEntry{
		Key:       prev.Key,
		Release:   prev.Release,
		FetchedAt: prev.FetchedAt,
		TTL:       prev.Age(c.now()) + c.retryBackoff,
	}

	c.mu.Lock()
	c.entries[prev.Key] = entry
	c.mu.Unlock()

	return entry
}

// Entry returns the stored entry of key regardless of freshness
func (c *ReleaseCache) Entry(key string) (*model.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Purge drops the entry of key so the next Get fetches again
func (c *ReleaseCache) Purge(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// PurgeAll drops every entry
func (c *ReleaseCache) PurgeAll() {
	c.mu.Lock()
	c.entries = make(map[string]*model.CacheEntry)
	c.mu.Unlock()
}
