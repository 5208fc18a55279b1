package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cinderworks/mechvolt/internal/mech/economy"
)

// levelRow is the JSON shape of one level-table override entry.
type levelRow struct {
	Level            int    `json:"level"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Color            string `json:"color"`
	BaseCostMinor    int64  `json:"base_cost_minor"`
	PowerMaxMinor    int64  `json:"power_max_minor"`
	DecayPerDayMinor int64  `json:"decay_per_day_minor"`
}

// tierRow is the JSON shape of one community-tier override entry.
type tierRow struct {
	MinMembers int     `json:"min_members"`
	MaxMembers int     `json:"max_members"`
	Multiplier float64 `json:"multiplier"`
	Label      string  `json:"label"`
	Massive    bool    `json:"massive"`
}

// parseLevelTable decodes the level-table override. An empty value keeps
// the stock table.
func parseLevelTable(raw string) ([]economy.LevelConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var rows []levelRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("parse level table: %w", err)
	}
	levels := make([]economy.LevelConfig, 0, len(rows))
	for _, row := range rows {
		levels = append(levels, economy.LevelConfig{
			Level:            row.Level,
			Name:             row.Name,
			Description:      row.Description,
			Color:            row.Color,
			BaseCostMinor:    row.BaseCostMinor,
			PowerMaxMinor:    row.PowerMaxMinor,
			DecayPerDayMinor: row.DecayPerDayMinor,
		})
	}
	return levels, nil
}

// parseTierTable decodes the community-tier override. An empty value
// keeps the stock table.
func parseTierTable(raw string) ([]economy.CommunityTier, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var rows []tierRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("parse community tier table: %w", err)
	}
	tiers := make([]economy.CommunityTier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, economy.CommunityTier{
			MinMembers: row.MinMembers,
			MaxMembers: row.MaxMembers,
			Multiplier: row.Multiplier,
			Label:      row.Label,
			Massive:    row.Massive,
		})
	}
	return tiers, nil
}
