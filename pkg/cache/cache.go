// Package cache resolves text references through three tiers of increasing
// latency and durability: in-process memory, the device-local pebble store,
// and the hosted shared store, falling back to the remote text source only on
// a full miss. Every lower-tier hit backfills the faster tiers so they stay
// warm without a separate warming pass.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mikradb/pkg/logger"
	"mikradb/pkg/models"
	"mikradb/pkg/shared"
	"mikradb/pkg/source"
	"mikradb/pkg/store"
)

// LookupStatus distinguishes a genuine absence from an unreachable tier, so
// callers and tests never have to parse log output to tell them apart.
type LookupStatus int

const (
	LookupHit LookupStatus = iota
	LookupMiss
	LookupUnavailable
)

const (
	defaultMemorySize = 256
	defaultMemoryTTL  = time.Hour
)

// Cache is the tiered text cache.
type Cache struct {
	mem     *expirable.LRU[string, models.TextEntry]
	shared  *shared.Client // nil disables the shared tier
	src     *source.Client
	version int
	now     func() time.Time
}

// Options tunes the memory tier; zero values pick defaults.
type Options struct {
	MemorySize int
	MemoryTTL  time.Duration
}

// New builds a cache over the given source client and optional shared-store
// client. The durable tier uses the package-level pebble store, which must be
// opened by the caller.
func New(src *source.Client, sh *shared.Client, opts Options) *Cache {
	size := opts.MemorySize
	if size <= 0 {
		size = defaultMemorySize
	}
	ttl := opts.MemoryTTL
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &Cache{
		mem:     expirable.NewLRU[string, models.TextEntry](size, nil, ttl),
		shared:  sh,
		src:     src,
		version: models.CacheFormatVersion,
		now:     time.Now,
	}
}

// Resolve returns the ordered text units for ref. It fails only when every
// tier and the source all miss; the sole propagated error class is
// source.ErrNotFound / fetch failure (spec: source exhaustion).
func (c *Cache) Resolve(ctx context.Context, ref string) ([]string, error) {
	start := c.now()
	units, tier, err := c.resolve(ctx, ref)
	observeResolve(tier, err, c.now().Sub(start))
	return units, err
}

func (c *Cache) resolve(ctx context.Context, ref string) ([]string, string, error) {
	// tier 1: memory
	if e, ok := c.mem.Get(ref); ok {
		tierCounter(tierMemory, outcomeHit)
		return e.Units, tierMemory, nil
	}
	tierCounter(tierMemory, outcomeMiss)

	// tier 2: durable device store
	if e, st := c.durableLookup(ref); st == LookupHit {
		c.mem.Add(ref, *e)
		return e.Units, tierDurable, nil
	}

	// tier 3: shared store
	if e, st := c.sharedLookup(ctx, ref); st == LookupHit {
		c.mem.Add(ref, *e)
		c.writeDurable(*e)
		return e.Units, tierShared, nil
	}

	// all tiers missed: fetch from the source and backfill everything
	units, err := c.src.Fetch(ctx, ref)
	if err != nil {
		tierCounter(tierSource, outcomeError)
		return nil, tierSource, err
	}
	entry := models.TextEntry{
		Ref:       ref,
		Units:     units,
		FetchedAt: c.now(),
		Version:   c.version,
	}
	c.mem.Add(ref, entry)
	// tier 2/3 writes are fire-and-forget; a failed backfill never blocks
	// returning the result
	go c.writeDurable(entry)
	if c.shared != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.shared.UpsertText(ctx, entry); err != nil {
				logger.Warn("shared_backfill_failed", "ref", ref, "error", err)
			}
		}()
	}
	tierCounter(tierSource, outcomeHit)
	return units, tierSource, nil
}

// durableLookup checks the pebble tier, evicting invalid or expired entries.
func (c *Cache) durableLookup(ref string) (*models.TextEntry, LookupStatus) {
	e, err := store.GetTextEntry(c.version, ref)
	if err != nil {
		logger.Warn("durable_lookup_failed", "ref", ref, "error", err)
		tierCounter(tierDurable, outcomeUnavailable)
		return nil, LookupUnavailable
	}
	if e == nil {
		tierCounter(tierDurable, outcomeMiss)
		return nil, LookupMiss
	}
	if !e.Valid(c.now()) {
		if err := store.DeleteTextEntry(c.version, ref); err != nil {
			logger.Warn("durable_evict_failed", "ref", ref, "error", err)
		}
		tierCounter(tierDurable, outcomeExpired)
		return nil, LookupMiss
	}
	tierCounter(tierDurable, outcomeHit)
	return e, LookupHit
}

// sharedLookup checks the hosted tier; any lookup error is a soft miss.
func (c *Cache) sharedLookup(ctx context.Context, ref string) (*models.TextEntry, LookupStatus) {
	if c.shared == nil {
		return nil, LookupMiss
	}
	e, err := c.shared.GetText(ctx, ref)
	if err != nil {
		logger.Warn("shared_lookup_failed", "ref", ref, "error", err)
		tierCounter(tierShared, outcomeUnavailable)
		return nil, LookupUnavailable
	}
	if e == nil {
		tierCounter(tierShared, outcomeMiss)
		return nil, LookupMiss
	}
	if !e.Valid(c.now()) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = c.shared.DeleteText(ctx, ref)
		}()
		tierCounter(tierShared, outcomeExpired)
		return nil, LookupMiss
	}
	tierCounter(tierShared, outcomeHit)
	return e, LookupHit
}

// writeDurable persists an entry into the pebble tier. A failed write (for
// example quota exhaustion) triggers a bulk eviction of stale-version entries
// and a single retry; if that also fails the write is abandoned and the
// memory and shared tiers remain authoritative.
func (c *Cache) writeDurable(e models.TextEntry) {
	if err := store.SaveTextEntry(e); err == nil {
		return
	}
	if n, err := store.SweepStaleVersions(c.version); err != nil {
		logger.Warn("durable_sweep_failed", "error", err)
	} else if n > 0 {
		logger.Info("durable_quota_sweep", "evicted", n)
	}
	if err := store.SaveTextEntry(e); err != nil {
		logger.Warn("durable_backfill_abandoned", "ref", e.Ref, "error", err)
	}
}

// Preload resolves ref in the background when it is absent from the cheap
// tiers (memory and durable). Errors are swallowed.
func (c *Cache) Preload(ref string) {
	if _, ok := c.mem.Get(ref); ok {
		return
	}
	if _, st := c.durableLookup(ref); st == LookupHit {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.Resolve(ctx, ref); err != nil {
			logger.Debug("preload_failed", "ref", ref, "error", err)
		}
	}()
}

// Invalidate deletes the entry from all three tiers unconditionally.
func (c *Cache) Invalidate(ctx context.Context, ref string) {
	c.mem.Remove(ref)
	if err := store.DeleteTextEntry(c.version, ref); err != nil {
		logger.Warn("invalidate_durable_failed", "ref", ref, "error", err)
	}
	if c.shared != nil {
		if err := c.shared.DeleteText(ctx, ref); err != nil {
			logger.Warn("invalidate_shared_failed", "ref", ref, "error", err)
		}
	}
	logger.Info("text_invalidated", "ref", ref)
}
