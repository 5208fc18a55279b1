// Package statuscache serves consistent mech status snapshots to many
// concurrent readers. Entries live for a TTL, are invalidated early by
// write-side events, and are recomputed behind a singleflight gate so a
// stampede of cache misses costs one ledger replay, not many.
package statuscache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/projection"
	"github.com/cinderworks/mechvolt/internal/notify"
	"golang.org/x/sync/singleflight"
)

// Variant selects the presentation precision of a snapshot.
type Variant string

const (
	// VariantPrecise keeps sub-unit (cent) precision.
	VariantPrecise Variant = "precise"
	// VariantWhole truncates monetary fields to whole units.
	VariantWhole Variant = "whole"
)

// Variants lists every cacheable presentation variant.
func Variants() []Variant {
	return []Variant{VariantPrecise, VariantWhole}
}

// Result is a snapshot plus how stale it is.
type Result struct {
	Snapshot projection.Snapshot
	// CacheAge is zero for freshly computed snapshots.
	CacheAge time.Duration
	// FromCache reports whether the TTL store served this result.
	FromCache bool
}

// SnapshotSource computes a fresh snapshot as of now. The append gateway
// implements this.
type SnapshotSource interface {
	Snapshot(ctx context.Context, now time.Time) (projection.Snapshot, error)
}

type entry struct {
	snapshot projection.Snapshot
	storedAt time.Time
}

// Cache is the TTL + event-invalidated snapshot store.
type Cache struct {
	source SnapshotSource
	broker *notify.Broker
	ttl    time.Duration
	clock  func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[Variant]entry
	// gen advances on every invalidation. A computation that started
	// under an older generation must not repopulate the entries.
	gen uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

const defaultTTL = 45 * time.Second

// New builds a cache in the EMPTY state for every variant.
func New(source SnapshotSource, broker *notify.Broker, opts ...Option) (*Cache, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	cache := &Cache{
		source:  source,
		broker:  broker,
		ttl:     defaultTTL,
		clock:   time.Now,
		entries: make(map[Variant]entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache, nil
}

// Get returns the cached snapshot for a variant, recomputing on miss,
// expiry, or force. Concurrent misses for the same variant share one
// in-flight computation.
func (c *Cache) Get(ctx context.Context, variant Variant, force bool) (Result, error) {
	now := c.clock()

	if !force {
		c.mu.Lock()
		cached, ok := c.entries[variant]
		c.mu.Unlock()
		if ok && now.Sub(cached.storedAt) < c.ttl {
			return Result{
				Snapshot:  cached.snapshot,
				CacheAge:  now.Sub(cached.storedAt),
				FromCache: true,
			}, nil
		}
	}

	for attempt := 0; ; attempt++ {
		value, err, _ := c.group.Do(string(variant), func() (any, error) {
			snap, stored, err := c.compute(ctx, variant)
			if err != nil {
				return nil, err
			}
			return flight{snapshot: snap, stored: stored}, nil
		})
		if err != nil {
			// The singleflight slot may have failed on another caller's
			// context; fall back to one direct computation before giving up.
			snap, _, directErr := c.compute(ctx, variant)
			if directErr != nil {
				return Result{}, directErr
			}
			return Result{Snapshot: snap}, nil
		}
		shared := value.(flight)
		if shared.stored || attempt > 0 {
			return Result{Snapshot: shared.snapshot}, nil
		}
		// The shared computation started before an invalidating event
		// landed, so its snapshot may predate that event. Go around once
		// more; the retry starts a flight under the current generation.
	}
}

// flight is the shared singleflight payload. stored is false when an
// invalidation overtook the computation.
type flight struct {
	snapshot projection.Snapshot
	stored   bool
}

// Invalidate synchronously clears every entry and publishes the
// update-needed notification for downstream consumers. In-flight
// computations are cut loose: their results stay out of the cache and
// later readers start a fresh replay.
func (c *Cache) Invalidate(reason string) {
	c.mu.Lock()
	c.entries = make(map[Variant]entry)
	c.gen++
	c.mu.Unlock()
	for _, variant := range Variants() {
		c.group.Forget(string(variant))
	}

	log.Printf("status cache invalidated reason=%q", reason)
	if c.broker != nil {
		c.broker.Publish(notify.Message{Topic: notify.TopicUpdateNeeded, Reason: reason})
	}
}

// compute runs one replay, applies the variant, and repopulates the entry.
// The entry is dropped instead when an invalidation arrived while the
// replay was in flight; the returned bool reports whether it was stored.
func (c *Cache) compute(ctx context.Context, variant Variant) (projection.Snapshot, bool, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	now := c.clock()
	snap, err := c.source.Snapshot(ctx, now)
	if err != nil {
		return projection.Snapshot{}, false, err
	}
	snap = applyVariant(snap, variant)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return snap, false, nil
	}
	c.entries[variant] = entry{snapshot: snap, storedAt: now}
	return snap, true, nil
}

// applyVariant truncates monetary fields to whole units for the whole
// variant. Precise snapshots pass through untouched.
func applyVariant(snap projection.Snapshot, variant Variant) projection.Snapshot {
	if variant != VariantWhole {
		return snap
	}
	snap.PowerMinor = snap.PowerMinor / 100 * 100
	snap.PowerMaxMinor = snap.PowerMaxMinor / 100 * 100
	snap.TotalDonatedMinor = snap.TotalDonatedMinor / 100 * 100
	snap.EvoCurrentMinor = snap.EvoCurrentMinor / 100 * 100
	snap.EvoMaxMinor = snap.EvoMaxMinor / 100 * 100
	return snap
}
