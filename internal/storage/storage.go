package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/event"
	"github.com/cinderworks/mechvolt/internal/mech/projection"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// EventStore persists the append-only power ledger.
//
// Appends must be funneled through one in-process gateway; implementations
// serialize physical writes but do not arbitrate between independent
// gateways writing to the same file or database.
type EventStore interface {
	// Append assigns the next sequence number, stamps the event, and
	// persists it durably before returning.
	Append(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns up to limit events with Seq > afterSeq in
	// ascending order. An empty result means the ledger is exhausted.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// GetEventBySeq returns a single event, or ErrNotFound.
	GetEventBySeq(ctx context.Context, seq uint64) (event.Event, error)
	Close() error
}

// SnapshotArchive persists periodic snapshot rows for history queries.
// Archive rows are observability data, never a replay source.
type SnapshotArchive interface {
	RecordSnapshot(ctx context.Context, snap projection.Snapshot) error
	ListSnapshots(ctx context.Context, since time.Time, limit int) ([]projection.Snapshot, error)
}
