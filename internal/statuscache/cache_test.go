package statuscache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/projection"
	"github.com/cinderworks/mechvolt/internal/notify"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeSource counts computations and can fail or block on demand.
type fakeSource struct {
	mu       sync.Mutex
	calls    int
	snapshot projection.Snapshot
	err      error
	block    chan struct{}
}

func (f *fakeSource) Snapshot(_ context.Context, now time.Time) (projection.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.err
	snap := f.snapshot
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return projection.Snapshot{}, err
	}
	snap.ComputedAt = now
	return snap, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, source *fakeSource, broker *notify.Broker, clock *fakeClock) *Cache {
	t.Helper()
	cache, err := New(source, broker, WithTTL(45*time.Second), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return cache
}

func TestGetComputesOnMissThenServesCached(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 2, PowerMinor: 500}}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	first, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.FromCache {
		t.Fatal("expected fresh computation on miss")
	}
	if source.callCount() != 1 {
		t.Fatalf("expected 1 computation, got %d", source.callCount())
	}

	clock.Advance(10 * time.Second)
	second, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if !second.FromCache {
		t.Fatal("expected cached result inside TTL")
	}
	if second.CacheAge != 10*time.Second {
		t.Fatalf("expected cache age 10s, got %s", second.CacheAge)
	}
	if source.callCount() != 1 {
		t.Fatalf("expected no recomputation, got %d calls", source.callCount())
	}
}

func TestGetRecomputesAfterTTL(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 2}}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	if _, err := cache.Get(context.Background(), VariantPrecise, false); err != nil {
		t.Fatalf("get: %v", err)
	}
	clock.Advance(46 * time.Second)
	result, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get after ttl: %v", err)
	}
	if result.FromCache {
		t.Fatal("expected recomputation after TTL expiry")
	}
	if source.callCount() != 2 {
		t.Fatalf("expected 2 computations, got %d", source.callCount())
	}
}

func TestForceBypassesTTL(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 2}}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	if _, err := cache.Get(context.Background(), VariantPrecise, false); err != nil {
		t.Fatalf("get: %v", err)
	}
	result, err := cache.Get(context.Background(), VariantPrecise, true)
	if err != nil {
		t.Fatalf("forced get: %v", err)
	}
	if result.FromCache {
		t.Fatal("expected forced recomputation")
	}
	if source.callCount() != 2 {
		t.Fatalf("expected 2 computations, got %d", source.callCount())
	}
}

func TestInvalidateClearsAndNotifies(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 2}}
	clock := &fakeClock{now: t0}
	broker := notify.NewBroker()
	cache := newTestCache(t, source, broker, clock)

	updates, cancel := broker.Subscribe(notify.TopicUpdateNeeded, 4)
	defer cancel()

	if _, err := cache.Get(context.Background(), VariantPrecise, false); err != nil {
		t.Fatalf("get: %v", err)
	}

	cache.Invalidate("donation completed")

	select {
	case msg := <-updates:
		if msg.Reason != "donation completed" {
			t.Fatalf("unexpected reason %q", msg.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("expected update-needed notification")
	}

	// A read issued right after the invalidation must not see pre-event data.
	result, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get after invalidation: %v", err)
	}
	if result.FromCache {
		t.Fatal("expected recomputation after invalidation")
	}
	if source.callCount() != 2 {
		t.Fatalf("expected 2 computations, got %d", source.callCount())
	}
}

func TestInvalidateCutsLooseInFlightComputation(t *testing.T) {
	source := &fakeSource{
		snapshot: projection.Snapshot{Level: 2, TotalDonatedMinor: 100},
		block:    make(chan struct{}),
	}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	// A reader starts a replay that stalls mid-flight.
	staleDone := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), VariantPrecise, false)
		staleDone <- err
	}()
	deadline := time.After(2 * time.Second)
	for source.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("stale computation never started")
		case <-time.After(time.Millisecond):
		}
	}

	// A donation lands while that replay is still running.
	source.mu.Lock()
	release := source.block
	source.block = nil
	source.snapshot.TotalDonatedMinor = 999
	source.mu.Unlock()
	cache.Invalidate("donation completed")

	// A read issued after the invalidating event must reflect it even
	// though the pre-event replay has not finished yet.
	fresh, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get after invalidation: %v", err)
	}
	if fresh.FromCache {
		t.Fatal("expected recomputation after invalidation")
	}
	if fresh.Snapshot.TotalDonatedMinor != 999 {
		t.Fatalf("expected post-event total 999, got %d", fresh.Snapshot.TotalDonatedMinor)
	}

	// Letting the stale replay finish must not poison the cache.
	close(release)
	if err := <-staleDone; err != nil {
		t.Fatalf("stale get: %v", err)
	}
	cached, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if !cached.FromCache {
		t.Fatal("expected the post-event entry to be cached")
	}
	if cached.Snapshot.TotalDonatedMinor != 999 {
		t.Fatalf("cache served pre-event total %d", cached.Snapshot.TotalDonatedMinor)
	}
}

func TestConcurrentMissesShareOneComputation(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 2}, block: make(chan struct{})}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	const readers = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), VariantPrecise, false); err != nil {
				failures.Add(1)
			}
		}()
	}

	// Let the goroutines pile onto the singleflight gate, then release.
	time.Sleep(50 * time.Millisecond)
	close(source.block)
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d readers failed", failures.Load())
	}
	if source.callCount() != 1 {
		t.Fatalf("expected a single shared computation, got %d", source.callCount())
	}
}

func TestWholeVariantTruncatesMinorUnits(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{
		Level:             2,
		PowerMinor:        1234,
		PowerMaxMinor:     10050,
		TotalDonatedMinor: 2099,
		EvoCurrentMinor:   99,
		EvoMaxMinor:       3001,
	}}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	result, err := cache.Get(context.Background(), VariantWhole, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result.Snapshot.PowerMinor != 1200 {
		t.Fatalf("expected truncated power 1200, got %d", result.Snapshot.PowerMinor)
	}
	if result.Snapshot.TotalDonatedMinor != 2000 {
		t.Fatalf("expected truncated total 2000, got %d", result.Snapshot.TotalDonatedMinor)
	}
	if result.Snapshot.EvoCurrentMinor != 0 {
		t.Fatalf("expected truncated evo 0, got %d", result.Snapshot.EvoCurrentMinor)
	}
}

func TestVariantsAreCachedIndependently(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 2, PowerMinor: 1234}}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	precise, err := cache.Get(context.Background(), VariantPrecise, false)
	if err != nil {
		t.Fatalf("get precise: %v", err)
	}
	whole, err := cache.Get(context.Background(), VariantWhole, false)
	if err != nil {
		t.Fatalf("get whole: %v", err)
	}
	if precise.Snapshot.PowerMinor == whole.Snapshot.PowerMinor {
		t.Fatal("expected variants to differ")
	}
	if source.callCount() != 2 {
		t.Fatalf("expected one computation per variant, got %d", source.callCount())
	}
}

func TestGetPropagatesComputeError(t *testing.T) {
	source := &fakeSource{err: errors.New("ledger unreadable")}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)

	if _, err := cache.Get(context.Background(), VariantPrecise, false); err == nil {
		t.Fatal("expected compute error to propagate")
	}
}

// fakeArchive records snapshots for refresher tests.
type fakeArchive struct {
	mu   sync.Mutex
	rows []projection.Snapshot
}

func (f *fakeArchive) RecordSnapshot(_ context.Context, snap projection.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, snap)
	return nil
}

func (f *fakeArchive) ListSnapshots(_ context.Context, _ time.Time, _ int) ([]projection.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]projection.Snapshot(nil), f.rows...), nil
}

func (f *fakeArchive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func TestRefresherForcesRecomputationAndArchives(t *testing.T) {
	source := &fakeSource{snapshot: projection.Snapshot{Level: 1, Offline: true}}
	clock := &fakeClock{now: t0}
	cache := newTestCache(t, source, nil, clock)
	archive := &fakeArchive{}

	refresher := NewRefresher(cache, archive, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresher.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for archive.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresher never archived snapshots")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if source.callCount() < 2 {
		t.Fatalf("expected repeated forced computations, got %d", source.callCount())
	}

	// The refresher is what surfaces offline transitions with no readers.
	rows, err := archive.ListSnapshots(context.Background(), time.Time{}, 10)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if !rows[0].Offline {
		t.Fatal("expected archived snapshot to carry offline state")
	}
}
