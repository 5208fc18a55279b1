package economy

import (
	"fmt"
	"math"
	"sort"
)

// Progressive minimum applied to multiplied costs. Whatever the multiplier
// configuration, cost(level) stays at or above
// minCostMinor + (level-2)*costStepMinor for level > 1, which keeps
// thresholds strictly increasing.
const (
	defaultMinCostMinor  = 10_00
	defaultCostStepMinor = 5_00
)

// Config assembles the static and dynamic inputs of the calculator.
type Config struct {
	Levels      []LevelConfig
	Tiers       []CommunityTier
	Difficulty  DifficultyConfig
	MemberCount int
	// MinCostMinor and CostStepMinor override the progressive minimum.
	// Zero values take the defaults.
	MinCostMinor  int64
	CostStepMinor int64
}

// Calculator derives evolution costs and thresholds from level, difficulty,
// and community configuration.
type Calculator struct {
	levels        []LevelConfig
	tiers         []CommunityTier
	difficulty    DifficultyConfig
	memberCount   int
	minCostMinor  int64
	costStepMinor int64
	// costs holds the multiplied cost per level, indexed by level. Costs
	// above level 1 increase strictly so thresholds never tie.
	costs []int64
}

// NewCalculator validates the configuration and builds a calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	levels := append([]LevelConfig(nil), cfg.Levels...)
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	for i, level := range levels {
		if level.Level != i+1 {
			return nil, fmt.Errorf("level table must be contiguous from 1, got %d at position %d", level.Level, i)
		}
		if level.PowerMaxMinor <= 0 {
			return nil, fmt.Errorf("level %d has non-positive power cap", level.Level)
		}
		if level.DecayPerDayMinor < 0 {
			return nil, fmt.Errorf("level %d has negative decay", level.Level)
		}
		if i > 0 && level.BaseCostMinor <= levels[i-1].BaseCostMinor {
			return nil, fmt.Errorf("level %d base cost must exceed level %d", level.Level, levels[i-1].Level)
		}
	}

	tiers := append([]CommunityTier(nil), cfg.Tiers...)
	if len(tiers) == 0 {
		tiers = DefaultCommunityTiers()
	}

	minCost := cfg.MinCostMinor
	if minCost <= 0 {
		minCost = defaultMinCostMinor
	}
	step := cfg.CostStepMinor
	if step <= 0 {
		step = defaultCostStepMinor
	}

	memberCount := cfg.MemberCount
	if memberCount < 0 {
		memberCount = 0
	}

	calc := &Calculator{
		levels:        levels,
		tiers:         tiers,
		difficulty:    cfg.Difficulty,
		memberCount:   memberCount,
		minCostMinor:  minCost,
		costStepMinor: step,
	}
	calc.costs = calc.computeCosts()
	return calc, nil
}

// computeCosts resolves the multiplied cost of every level once, up
// front. Adjacent base costs under small multipliers can round to the
// same value above the progressive floor; ties are bumped by one step so
// thresholds stay strictly increasing.
func (c *Calculator) computeCosts() []int64 {
	costs := make([]int64, len(c.levels)+1)
	for _, level := range c.levels {
		cost := int64(math.Round(float64(level.BaseCostMinor) * c.DifficultyMultiplier() * c.CommunityMultiplier()))
		if level.Level > 1 {
			floor := c.minCostMinor + int64(level.Level-2)*c.costStepMinor
			if cost < floor {
				cost = floor
			}
		}
		if level.Level > 2 && cost <= costs[level.Level-1] {
			cost = costs[level.Level-1] + c.costStepMinor
		}
		costs[level.Level] = cost
	}
	return costs
}

// MaxLevel returns the highest configured level.
func (c *Calculator) MaxLevel() int {
	return len(c.levels)
}

// Level returns the configuration for a level.
func (c *Calculator) Level(level int) (LevelConfig, bool) {
	if level < 1 || level > len(c.levels) {
		return LevelConfig{}, false
	}
	return c.levels[level-1], true
}

// CommunityMultiplier resolves the community cost multiplier for the
// configured member count.
func (c *Calculator) CommunityMultiplier() float64 {
	return CommunityMultiplier(c.tiers, c.memberCount)
}

// DifficultyMultiplier resolves the effective difficulty multiplier:
// the community multiplier in dynamic mode, or the pinned (clamped) scalar
// under manual override.
func (c *Calculator) DifficultyMultiplier() float64 {
	if c.difficulty.ManualOverride {
		return ClampManual(c.difficulty.Multiplier)
	}
	return c.CommunityMultiplier()
}

// CostMinor returns the evolution cost of a level in minor units.
func (c *Calculator) CostMinor(level int) (int64, error) {
	if _, ok := c.Level(level); !ok {
		return 0, fmt.Errorf("level %d is not configured", level)
	}
	return c.costs[level], nil
}

// ThresholdMinor returns the cumulative donation total required to hold a
// level. Level 1 is free; higher levels cost their multiplied cost.
func (c *Calculator) ThresholdMinor(level int) (int64, error) {
	if level == 1 {
		return 0, nil
	}
	return c.CostMinor(level)
}

// LevelFor returns the highest level whose threshold is covered by the
// given all-time donation total.
func (c *Calculator) LevelFor(totalMinor int64) LevelConfig {
	current := c.levels[0]
	for _, level := range c.levels[1:] {
		threshold, err := c.ThresholdMinor(level.Level)
		if err != nil || totalMinor < threshold {
			break
		}
		current = level
	}
	return current
}
