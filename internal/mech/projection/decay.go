package projection

import "time"

const secondsPerDay = 86_400

// Decay applies lazy time-based power drain: the per-day rate converted to
// a per-second rate over the elapsed duration, floored at zero. A zero rate
// (the immortal tier) or non-positive elapsed time leaves power untouched.
func Decay(powerMinor, decayPerDayMinor int64, elapsed time.Duration) int64 {
	if powerMinor <= 0 {
		return 0
	}
	if decayPerDayMinor <= 0 || elapsed <= 0 {
		return powerMinor
	}
	drained := decayPerDayMinor * int64(elapsed/time.Second) / secondsPerDay
	if drained >= powerMinor {
		return 0
	}
	return powerMinor - drained
}
