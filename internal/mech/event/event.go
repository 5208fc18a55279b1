package event

import (
	"strings"
	"time"
)

// Type identifies the type of a ledger event.
type Type string

// Monetary events. Each one records a contribution in minor units.
const (
	// TypeDonationAdded records a viewer donation.
	TypeDonationAdded Type = "donation.added"
	// TypeGiftPowerGranted records a campaign power gift.
	TypeGiftPowerGranted Type = "gift.power_granted"
	// TypeSystemDonationAdded records a power grant issued by the system
	// itself (seasonal events, milestones).
	TypeSystemDonationAdded Type = "system.donation_added"
	// TypeExactHitBonusGranted records the bonus for landing a donation
	// exactly on a level threshold.
	TypeExactHitBonusGranted Type = "bonus.exact_hit"
)

// Compensating events.
const (
	// TypeDonationDeleted logically negates an earlier monetary event.
	// The target record stays in the ledger; only its effect is reversed.
	TypeDonationDeleted Type = "donation.deleted"
)

// Event is an immutable record in the append-only power ledger.
type Event struct {
	// Seq is the ledger sequence number (starts at 1, gap-free).
	// Assigned by storage on append.
	Seq uint64
	// Timestamp is when the event occurred, UTC, millisecond precision.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "donation", "gift").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// IsMonetary reports whether the event type contributes power and counts
// toward the all-time donation total.
func (t Type) IsMonetary() bool {
	switch t {
	case TypeDonationAdded, TypeGiftPowerGranted, TypeSystemDonationAdded, TypeExactHitBonusGranted:
		return true
	}
	return false
}

// IsKnown reports whether the event type is one this build understands.
// Unknown types are tolerated during replay for forward compatibility.
func (t Type) IsKnown() bool {
	return t.IsMonetary() || t == TypeDonationDeleted
}
