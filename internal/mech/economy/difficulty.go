package economy

// Manual difficulty multipliers clamp to this range.
const (
	ManualMultiplierMin = 0.25
	ManualMultiplierMax = 2.5
)

// DifficultyConfig controls the global evolution difficulty.
type DifficultyConfig struct {
	// Multiplier is the pinned scalar used when ManualOverride is set.
	Multiplier float64
	// ManualOverride pins the multiplier instead of deriving it from
	// community size.
	ManualOverride bool
}

// ClampManual bounds a manually pinned multiplier to the supported range.
func ClampManual(multiplier float64) float64 {
	if multiplier < ManualMultiplierMin {
		return ManualMultiplierMin
	}
	if multiplier > ManualMultiplierMax {
		return ManualMultiplierMax
	}
	return multiplier
}
