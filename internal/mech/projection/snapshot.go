package projection

import "time"

// Snapshot is the derived state of the mech at a single instant. It is
// never persisted as a source of truth; the ledger is.
type Snapshot struct {
	// Level is the current evolution tier.
	Level int `json:"level"`
	// LevelName and LevelColor carry the tier cosmetics for presentation.
	LevelName  string `json:"level_name"`
	LevelColor string `json:"level_color"`
	// PowerMinor is the current power in minor units, after decay.
	PowerMinor int64 `json:"power_minor"`
	// PowerMaxMinor is the power cap of the current tier.
	PowerMaxMinor int64 `json:"power_max_minor"`
	// TotalDonatedMinor is the all-time active contribution total.
	TotalDonatedMinor int64 `json:"total_donated_minor"`
	// EvoCurrentMinor is progress past the current tier's threshold.
	EvoCurrentMinor int64 `json:"evo_current_minor"`
	// EvoMaxMinor is the distance between the current and next thresholds.
	// Zero at the top tier.
	EvoMaxMinor int64 `json:"evo_max_minor"`
	// Offline reports a decayed-to-zero mech on a decaying tier.
	Offline bool `json:"offline"`
	// ComputedAt is the instant the snapshot was computed for.
	ComputedAt time.Time `json:"computed_at"`
}
