package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/projection"
)

// RecordSnapshot archives one computed snapshot for history queries.
func (s *Store) RecordSnapshot(ctx context.Context, snap projection.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	offline := 0
	if snap.Offline {
		offline = 1
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO snapshots (
    computed_at, level, level_name, level_color,
    power_minor, power_max_minor, total_donated_minor,
    evo_current_minor, evo_max_minor, offline
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(snap.ComputedAt), snap.Level, snap.LevelName, snap.LevelColor,
		snap.PowerMinor, snap.PowerMaxMinor, snap.TotalDonatedMinor,
		snap.EvoCurrentMinor, snap.EvoMaxMinor, offline,
	); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns archived snapshots computed at or after since,
// most recent first.
func (s *Store) ListSnapshots(ctx context.Context, since time.Time, limit int) ([]projection.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT computed_at, level, level_name, level_color,
       power_minor, power_max_minor, total_donated_minor,
       evo_current_minor, evo_max_minor, offline
FROM snapshots
WHERE computed_at >= ?
ORDER BY computed_at DESC, id DESC
LIMIT ?`,
		toMillis(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []projection.Snapshot
	for rows.Next() {
		var (
			snap    projection.Snapshot
			millis  int64
			offline int
		)
		if err := rows.Scan(
			&millis, &snap.Level, &snap.LevelName, &snap.LevelColor,
			&snap.PowerMinor, &snap.PowerMaxMinor, &snap.TotalDonatedMinor,
			&snap.EvoCurrentMinor, &snap.EvoMaxMinor, &offline,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.ComputedAt = fromMillis(millis)
		snap.Offline = offline != 0
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
