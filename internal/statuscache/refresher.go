package statuscache

import (
	"context"
	"log"
	"time"

	"github.com/cinderworks/mechvolt/internal/storage"
)

const defaultRefreshInterval = 30 * time.Second

// Refresher periodically forces fresh snapshot computations. Decay is
// evaluated lazily, so without this loop an idle mech would never be
// observed going offline; the refresher is the authoritative trigger for
// time-driven transitions.
type Refresher struct {
	cache    *Cache
	archive  storage.SnapshotArchive
	interval time.Duration
}

// NewRefresher builds the background refresh loop. archive may be nil
// when no snapshot history is kept.
func NewRefresher(cache *Cache, archive storage.SnapshotArchive, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Refresher{cache: cache, archive: archive, interval: interval}
}

// Run refreshes every variant on a fixed interval until ctx is cancelled.
// Cancellation at any point is safe: an abandoned recomputation only
// discards an in-memory result.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

// refreshOnce repopulates each variant and archives the precise snapshot.
func (r *Refresher) refreshOnce(ctx context.Context) {
	for _, variant := range Variants() {
		result, err := r.cache.Get(ctx, variant, true)
		if err != nil {
			log.Printf("status refresh failed variant=%s err=%v", variant, err)
			continue
		}
		if variant == VariantPrecise && r.archive != nil {
			if err := r.archive.RecordSnapshot(ctx, result.Snapshot); err != nil {
				log.Printf("snapshot archive write failed err=%v", err)
			}
		}
	}
}
