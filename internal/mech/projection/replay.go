package projection

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/economy"
	"github.com/cinderworks/mechvolt/internal/mech/event"
)

const replayPageSize = 200

// EventLister is the slice of the event store replay needs.
type EventLister interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Replay pages through the full ledger and projects it as of now.
func Replay(ctx context.Context, store EventLister, calc *economy.Calculator, now time.Time) (Snapshot, error) {
	events, err := CollectEvents(ctx, store)
	if err != nil {
		return Snapshot{}, err
	}
	return Project(events, calc, now)
}

// CollectEvents pages through the full ledger in seq order.
func CollectEvents(ctx context.Context, store EventLister) ([]event.Event, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is not configured")
	}

	var events []event.Event
	var lastSeq uint64
	for {
		page, err := store.ListEvents(ctx, lastSeq, replayPageSize)
		if err != nil {
			return nil, fmt.Errorf("list events after seq %d: %w", lastSeq, err)
		}
		if len(page) == 0 {
			return events, nil
		}
		for _, evt := range page {
			if evt.Seq <= lastSeq {
				return nil, fmt.Errorf("ledger order violation: seq %d after %d", evt.Seq, lastSeq)
			}
			lastSeq = evt.Seq
		}
		events = append(events, page...)
	}
}

// Project folds an ordered event sequence into a snapshot as of now.
// Pure: identical inputs always produce identical snapshots.
//
// Compensating deletes follow a parity rule: every donation.deleted flips
// the active flag of its monetary target, so an odd number of deletes
// deactivates a contribution and an even number restores it. A delete
// whose target is itself a delete walks the chain down to the monetary
// record.
func Project(events []event.Event, calc *economy.Calculator, now time.Time) (Snapshot, error) {
	if calc == nil {
		return Snapshot{}, fmt.Errorf("economy calculator is not configured")
	}

	// Pass 1: delete-count parity per monetary target.
	deleteCount := DeleteCounts(events)

	// Pass 2: totals over active monetary events.
	var totalMinor, powerSum int64
	var lastActive time.Time
	unknown := map[event.Type]int{}
	for _, evt := range events {
		if !evt.Type.IsKnown() {
			unknown[evt.Type]++
			continue
		}
		if !evt.Type.IsMonetary() {
			continue
		}
		if deleteCount[evt.Seq]%2 == 1 {
			continue
		}
		amount, err := event.Contribution(evt)
		if err != nil {
			log.Printf("replay skipping undecodable event seq=%d type=%s err=%v", evt.Seq, evt.Type, err)
			continue
		}
		totalMinor += amount
		powerSum += amount
		if evt.Timestamp.After(lastActive) {
			lastActive = evt.Timestamp
		}
	}
	for typ, count := range unknown {
		log.Printf("replay ignored unknown event type=%s count=%d", typ, count)
	}

	level := calc.LevelFor(totalMinor)

	power := powerSum
	if power > level.PowerMaxMinor {
		power = level.PowerMaxMinor
	}
	if power < 0 {
		power = 0
	}
	if !lastActive.IsZero() {
		power = Decay(power, level.DecayPerDayMinor, now.Sub(lastActive))
	}

	evoCurrent, evoMax, err := evoProgress(calc, level.Level, totalMinor)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Level:             level.Level,
		LevelName:         level.Name,
		LevelColor:        level.Color,
		PowerMinor:        power,
		PowerMaxMinor:     level.PowerMaxMinor,
		TotalDonatedMinor: totalMinor,
		EvoCurrentMinor:   evoCurrent,
		EvoMaxMinor:       evoMax,
		Offline:           power == 0 && level.DecayPerDayMinor > 0,
		ComputedAt:        now.UTC(),
	}, nil
}

// DeleteCounts tallies compensating deletes per monetary target. A
// monetary event is active when its count is even.
func DeleteCounts(events []event.Event) map[uint64]int {
	bySeq := make(map[uint64]event.Event, len(events))
	for _, evt := range events {
		bySeq[evt.Seq] = evt
	}

	deleteCount := make(map[uint64]int)
	for _, evt := range events {
		if evt.Type != event.TypeDonationDeleted {
			continue
		}
		target, err := event.DeleteTarget(evt)
		if err != nil {
			log.Printf("replay skipping undecodable delete seq=%d err=%v", evt.Seq, err)
			continue
		}
		resolved, ok := resolveMonetaryTarget(bySeq, target)
		if !ok {
			log.Printf("replay delete target missing seq=%d target=%d", evt.Seq, target)
			continue
		}
		deleteCount[resolved]++
	}
	return deleteCount
}

// resolveMonetaryTarget walks a delete chain until it reaches a monetary
// event. Cycles and dangling references resolve to not-found.
func resolveMonetaryTarget(bySeq map[uint64]event.Event, target uint64) (uint64, bool) {
	seen := make(map[uint64]bool)
	for {
		if seen[target] {
			return 0, false
		}
		seen[target] = true

		evt, ok := bySeq[target]
		if !ok {
			return 0, false
		}
		if evt.Type.IsMonetary() {
			return target, true
		}
		if evt.Type != event.TypeDonationDeleted {
			return 0, false
		}
		next, err := event.DeleteTarget(evt)
		if err != nil {
			return 0, false
		}
		target = next
	}
}

// evoProgress expresses how far the donation total sits between the
// current tier's threshold and the next one.
func evoProgress(calc *economy.Calculator, level int, totalMinor int64) (current, max int64, err error) {
	if level >= calc.MaxLevel() {
		return 0, 0, nil
	}
	here, err := calc.ThresholdMinor(level)
	if err != nil {
		return 0, 0, err
	}
	next, err := calc.ThresholdMinor(level + 1)
	if err != nil {
		return 0, 0, err
	}
	return totalMinor - here, next - here, nil
}
