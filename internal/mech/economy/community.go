package economy

import "math"

// massivePivotMembers is the member count where logarithmic scaling of the
// massive tier starts.
const massivePivotMembers = 1000

// CommunityTier maps a member-count bracket to a cost multiplier.
type CommunityTier struct {
	// MinMembers is the inclusive lower bound of the bracket.
	MinMembers int
	// MaxMembers is the inclusive upper bound; zero means unbounded.
	MaxMembers int
	// Multiplier is the base cost multiplier for the bracket.
	Multiplier float64
	// Label is the cosmetic bracket name.
	Label string
	// Massive marks the bracket that scales logarithmically past the pivot.
	Massive bool
}

// Contains reports whether the bracket covers the given member count.
func (t CommunityTier) Contains(members int) bool {
	if members < t.MinMembers {
		return false
	}
	return t.MaxMembers == 0 || members <= t.MaxMembers
}

// DefaultCommunityTiers is the stock bracket table.
func DefaultCommunityTiers() []CommunityTier {
	return []CommunityTier{
		{MinMembers: 0, MaxMembers: 50, Multiplier: 0.5, Label: "hamlet"},
		{MinMembers: 51, MaxMembers: 200, Multiplier: 0.8, Label: "village"},
		{MinMembers: 201, MaxMembers: 500, Multiplier: 1.0, Label: "town"},
		{MinMembers: 501, MaxMembers: 1000, Multiplier: 1.3, Label: "city"},
		{MinMembers: 1001, MaxMembers: 0, Multiplier: 1.5, Label: "metropolis", Massive: true},
	}
}

// CommunityMultiplier resolves the cost multiplier for a member count.
// The massive bracket adds 0.5*log2(members/1000) beyond the pivot so very
// large communities keep scaling instead of flatlining.
func CommunityMultiplier(tiers []CommunityTier, members int) float64 {
	if members < 0 {
		members = 0
	}
	for _, tier := range tiers {
		if !tier.Contains(members) {
			continue
		}
		multiplier := tier.Multiplier
		if tier.Massive && members > massivePivotMembers {
			multiplier += 0.5 * math.Log2(float64(members)/float64(massivePivotMembers))
		}
		return multiplier
	}
	// No bracket matched; fall back to neutral cost.
	return 1.0
}
