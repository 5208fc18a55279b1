package economy

// LevelConfig describes one evolution tier of the mech.
type LevelConfig struct {
	// Level is the 1-based tier number.
	Level int
	// Name is the cosmetic tier name.
	Name string
	// Description is the cosmetic tier description.
	Description string
	// Color is the hex accent color used by presentation layers.
	Color string
	// BaseCostMinor is the unmultiplied evolution cost in minor units.
	BaseCostMinor int64
	// PowerMaxMinor caps power at this tier, in minor units.
	PowerMaxMinor int64
	// DecayPerDayMinor is how much power drains per day, in minor units.
	// Zero marks the immortal tier.
	DecayPerDayMinor int64
}

// Immortal reports whether power at this tier never decays.
func (l LevelConfig) Immortal() bool {
	return l.DecayPerDayMinor == 0
}

// DefaultLevels is the stock 11-tier evolution table.
func DefaultLevels() []LevelConfig {
	return []LevelConfig{
		{Level: 1, Name: "Scrapling", Description: "Bolted together from spare parts", Color: "#8d99ae", BaseCostMinor: 0, PowerMaxMinor: 50_00, DecayPerDayMinor: 10_00},
		{Level: 2, Name: "Tinframe", Description: "First real chassis", Color: "#a8dadc", BaseCostMinor: 20_00, PowerMaxMinor: 100_00, DecayPerDayMinor: 15_00},
		{Level: 3, Name: "Voltwalker", Description: "Powered joints come online", Color: "#457b9d", BaseCostMinor: 50_00, PowerMaxMinor: 200_00, DecayPerDayMinor: 20_00},
		{Level: 4, Name: "Gearhound", Description: "Runs hot, runs fast", Color: "#1d3557", BaseCostMinor: 100_00, PowerMaxMinor: 350_00, DecayPerDayMinor: 30_00},
		{Level: 5, Name: "Ironclad", Description: "Plated and proud", Color: "#6d597a", BaseCostMinor: 200_00, PowerMaxMinor: 500_00, DecayPerDayMinor: 40_00},
		{Level: 6, Name: "Stormrig", Description: "Crackles in the dark", Color: "#b56576", BaseCostMinor: 350_00, PowerMaxMinor: 750_00, DecayPerDayMinor: 50_00},
		{Level: 7, Name: "Pyrelord", Description: "The furnace never sleeps", Color: "#e56b6f", BaseCostMinor: 550_00, PowerMaxMinor: 1_000_00, DecayPerDayMinor: 65_00},
		{Level: 8, Name: "Aegis Colossus", Description: "A walking wall", Color: "#eaac8b", BaseCostMinor: 800_00, PowerMaxMinor: 1_500_00, DecayPerDayMinor: 80_00},
		{Level: 9, Name: "Nova Sentinel", Description: "Burns bright enough to see from orbit", Color: "#ffd166", BaseCostMinor: 1_200_00, PowerMaxMinor: 2_000_00, DecayPerDayMinor: 100_00},
		{Level: 10, Name: "Titan Ascendant", Description: "The community's will, made steel", Color: "#06d6a0", BaseCostMinor: 1_800_00, PowerMaxMinor: 3_000_00, DecayPerDayMinor: 125_00},
		{Level: 11, Name: "Eternal Prime", Description: "Beyond entropy", Color: "#118ab2", BaseCostMinor: 2_500_00, PowerMaxMinor: 5_000_00, DecayPerDayMinor: 0},
	}
}
