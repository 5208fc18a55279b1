// Package service hosts the single logical append gateway for the power
// ledger. Every producer of monetary events routes through one Gateway so
// sequence assignment and physical writes are never interleaved; the
// ledger format has been corrupted by independent writers before.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/economy"
	"github.com/cinderworks/mechvolt/internal/mech/event"
	"github.com/cinderworks/mechvolt/internal/mech/projection"
	perrors "github.com/cinderworks/mechvolt/internal/platform/errors"
	"github.com/cinderworks/mechvolt/internal/platform/requestctx"
	"github.com/cinderworks/mechvolt/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cinderworks/mechvolt/internal/mech/service"

// Invalidation reasons handed to the cache ahead of TTL expiry.
const (
	ReasonDonationCompleted = "donation completed"
	ReasonStateChanged      = "state changed"
)

// Invalidator receives write-side invalidation signals.
type Invalidator interface {
	Invalidate(reason string)
}

// ToggleAction reports which way DeleteOrRestore flipped its target.
type ToggleAction string

const (
	ActionDeleted  ToggleAction = "deleted"
	ActionRestored ToggleAction = "restored"
)

// ToggleResult is the outcome of a delete-or-restore call.
type ToggleResult struct {
	Action    ToggleAction `json:"action_taken"`
	TargetSeq uint64       `json:"target_seq"`
}

// Gateway serializes all ledger writes and computes snapshots on demand.
type Gateway struct {
	mu          sync.Mutex
	store       storage.EventStore
	calc        *economy.Calculator
	invalidator Invalidator
	tracer      trace.Tracer
	clock       func() time.Time
}

// NewGateway builds the append gateway. invalidator may be nil until the
// cache is attached.
func NewGateway(store storage.EventStore, calc *economy.Calculator) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if calc == nil {
		return nil, fmt.Errorf("economy calculator is required")
	}
	return &Gateway{
		store:  store,
		calc:   calc,
		tracer: otel.Tracer(tracerName),
		clock:  time.Now,
	}, nil
}

// SetInvalidator attaches the cache invalidation hook.
func (g *Gateway) SetInvalidator(invalidator Invalidator) {
	g.invalidator = invalidator
}

// SetClock overrides the wall clock, for tests.
func (g *Gateway) SetClock(clock func() time.Time) {
	if clock != nil {
		g.clock = clock
	}
}

// AppendDonation records a viewer donation in minor units.
func (g *Gateway) AppendDonation(ctx context.Context, donor string, amountMinor int64) (event.Event, error) {
	donor = strings.TrimSpace(donor)
	if donor == "" {
		return event.Event{}, perrors.New(perrors.CodeRequestInvalid, "donor is required")
	}
	if amountMinor <= 0 {
		return event.Event{}, perrors.New(perrors.CodeEventAmountInvalid, "donation amount must be positive")
	}
	payload := event.DonationAddedPayload{Donor: donor, AmountMinor: amountMinor}
	return g.append(ctx, event.TypeDonationAdded, payload, ReasonDonationCompleted)
}

// AppendPowerGift records a campaign power gift.
func (g *Gateway) AppendPowerGift(ctx context.Context, campaignID string, powerMinor int64) (event.Event, error) {
	if powerMinor <= 0 {
		return event.Event{}, perrors.New(perrors.CodeEventAmountInvalid, "gift power must be positive")
	}
	payload := event.GiftPowerGrantedPayload{CampaignID: strings.TrimSpace(campaignID), PowerMinor: powerMinor}
	return g.append(ctx, event.TypeGiftPowerGranted, payload, ReasonStateChanged)
}

// AppendSystemDonation records a power grant issued by the system itself.
func (g *Gateway) AppendSystemDonation(ctx context.Context, eventName string, powerMinor int64) (event.Event, error) {
	if powerMinor <= 0 {
		return event.Event{}, perrors.New(perrors.CodeEventAmountInvalid, "system donation power must be positive")
	}
	payload := event.SystemDonationAddedPayload{EventName: strings.TrimSpace(eventName), PowerMinor: powerMinor}
	return g.append(ctx, event.TypeSystemDonationAdded, payload, ReasonStateChanged)
}

// AppendExactHitBonus records the bonus for landing exactly on a threshold.
func (g *Gateway) AppendExactHitBonus(ctx context.Context, fromLevel, toLevel int, powerMinor int64) (event.Event, error) {
	if powerMinor <= 0 {
		return event.Event{}, perrors.New(perrors.CodeEventAmountInvalid, "bonus power must be positive")
	}
	if toLevel <= fromLevel {
		return event.Event{}, perrors.New(perrors.CodeRequestInvalid, "bonus levels must ascend")
	}
	payload := event.ExactHitBonusGrantedPayload{FromLevel: fromLevel, ToLevel: toLevel, PowerMinor: powerMinor}
	return g.append(ctx, event.TypeExactHitBonusGranted, payload, ReasonStateChanged)
}

// DeleteOrRestore appends a compensating delete for the target monetary
// event. An active target is deactivated; an already-deleted target is
// restored. History is never mutated in place.
func (g *Gateway) DeleteOrRestore(ctx context.Context, targetSeq uint64) (ToggleResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.DeleteOrRestore",
		trace.WithAttributes(attribute.Int64("ledger.target_seq", int64(targetSeq))))
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	target, err := g.store.GetEventBySeq(ctx, targetSeq)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ToggleResult{}, perrors.WithMetadata(perrors.CodeEventTargetInvalid,
				fmt.Sprintf("event %d does not exist", targetSeq),
				map[string]string{"target_seq": fmt.Sprint(targetSeq)})
		}
		return ToggleResult{}, perrors.Wrap(perrors.CodeLedgerIO, "load delete target", err)
	}
	if !target.Type.IsMonetary() {
		return ToggleResult{}, perrors.WithMetadata(perrors.CodeEventTargetInvalid,
			fmt.Sprintf("event %d is not a monetary event", targetSeq),
			map[string]string{"target_seq": fmt.Sprint(targetSeq), "type": string(target.Type)})
	}

	events, err := projection.CollectEvents(ctx, g.store)
	if err != nil {
		return ToggleResult{}, perrors.Wrap(perrors.CodeLedgerIO, "collect events", err)
	}
	action := ActionDeleted
	if projection.DeleteCounts(events)[targetSeq]%2 == 1 {
		action = ActionRestored
	}

	payload, err := event.EncodePayload(event.DonationDeletedPayload{DeletedSeq: targetSeq})
	if err != nil {
		return ToggleResult{}, perrors.Wrap(perrors.CodeRequestInvalid, "encode delete payload", err)
	}
	stored, err := g.store.Append(ctx, event.Event{Type: event.TypeDonationDeleted, PayloadJSON: payload})
	if err != nil {
		return ToggleResult{}, perrors.Wrap(perrors.CodeLedgerIO, "append delete event", err)
	}

	log.Printf("ledger toggle action=%s target_seq=%d seq=%d request_id=%s",
		action, targetSeq, stored.Seq, requestctx.RequestIDFromContext(ctx))
	g.signalInvalidation(ReasonStateChanged)
	return ToggleResult{Action: action, TargetSeq: targetSeq}, nil
}

// Snapshot replays the full ledger as of now. This is the single source
// of truth for the decay computation regardless of trigger.
func (g *Gateway) Snapshot(ctx context.Context, now time.Time) (projection.Snapshot, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Snapshot")
	defer span.End()

	if now.IsZero() {
		now = g.clock()
	}
	// Collect and project separately so only storage failures carry the
	// ledger IO code; fold failures are not a disk problem.
	events, err := projection.CollectEvents(ctx, g.store)
	if err != nil {
		return projection.Snapshot{}, perrors.Wrap(perrors.CodeLedgerIO, "collect events", err)
	}
	snap, err := projection.Project(events, g.calc, now)
	if err != nil {
		return projection.Snapshot{}, perrors.Wrap(perrors.CodeUnknown, "project ledger", err)
	}
	return snap, nil
}

// append is the serialized write path shared by every producer.
func (g *Gateway) append(ctx context.Context, typ event.Type, payload any, reason string) (event.Event, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Append",
		trace.WithAttributes(attribute.String("ledger.event_type", string(typ))))
	defer span.End()

	data, err := event.EncodePayload(payload)
	if err != nil {
		return event.Event{}, perrors.Wrap(perrors.CodeRequestInvalid, "encode payload", err)
	}

	g.mu.Lock()
	stored, err := g.store.Append(ctx, event.Event{Type: typ, PayloadJSON: data})
	g.mu.Unlock()
	if err != nil {
		// Append failures propagate: a swallowed write would desync the
		// donor's expectations from the ledger.
		return event.Event{}, perrors.Wrap(perrors.CodeLedgerIO, "append event", err)
	}

	log.Printf("ledger append seq=%d type=%s request_id=%s",
		stored.Seq, stored.Type, requestctx.RequestIDFromContext(ctx))
	g.signalInvalidation(reason)
	return stored, nil
}

func (g *Gateway) signalInvalidation(reason string) {
	if g.invalidator != nil {
		g.invalidator.Invalidate(reason)
	}
}
