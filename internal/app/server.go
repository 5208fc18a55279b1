// Package app wires the mechvolt engine: ledger storage, the append
// gateway, the status cache, the background refresher, and the HTTP API.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cinderworks/mechvolt/internal/api/rest"
	"github.com/cinderworks/mechvolt/internal/mech/economy"
	"github.com/cinderworks/mechvolt/internal/mech/service"
	"github.com/cinderworks/mechvolt/internal/notify"
	"github.com/cinderworks/mechvolt/internal/platform/otel"
	"github.com/cinderworks/mechvolt/internal/platform/timeouts"
	"github.com/cinderworks/mechvolt/internal/statuscache"
	"github.com/cinderworks/mechvolt/internal/storage"
	"github.com/cinderworks/mechvolt/internal/storage/bbolt"
	"github.com/cinderworks/mechvolt/internal/storage/jsonl"
	"github.com/cinderworks/mechvolt/internal/storage/sqlite"
)

// Ledger backends selectable via configuration.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendBBolt  = "bbolt"
)

// Config defines the inputs for the engine process.
type Config struct {
	HTTPAddr      string `env:"MECHVOLT_HTTP_ADDR" envDefault:":8080"`
	LedgerBackend string `env:"MECHVOLT_LEDGER_BACKEND" envDefault:"jsonl"`
	LedgerPath    string `env:"MECHVOLT_LEDGER_PATH" envDefault:"mechvolt.ledger.jsonl"`
	// SnapshotDBPath enables the SQLite snapshot archive when set. With
	// the sqlite ledger backend the archive shares the ledger database
	// and this value is ignored.
	SnapshotDBPath string `env:"MECHVOLT_SNAPSHOT_DB_PATH"`

	MemberCount          int     `env:"MECHVOLT_MEMBER_COUNT" envDefault:"0"`
	DifficultyMultiplier float64 `env:"MECHVOLT_DIFFICULTY_MULTIPLIER" envDefault:"1.0"`
	DifficultyManual     bool    `env:"MECHVOLT_DIFFICULTY_MANUAL" envDefault:"false"`
	// LevelTableJSON and TierTableJSON override the stock economy tables
	// with JSON arrays. Empty keeps the defaults.
	LevelTableJSON string `env:"MECHVOLT_LEVEL_TABLE"`
	TierTableJSON  string `env:"MECHVOLT_COMMUNITY_TABLE"`

	CacheTTL        time.Duration `env:"MECHVOLT_CACHE_TTL"`
	RefreshInterval time.Duration `env:"MECHVOLT_REFRESH_INTERVAL"`
}

// openEventStore opens the configured ledger backend. The returned
// cleanup closes every opened store.
func openEventStore(cfg Config) (storage.EventStore, storage.SnapshotArchive, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LedgerBackend)) {
	case BackendJSONL, "":
		store, err := jsonl.Open(cfg.LedgerPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open jsonl ledger: %w", err)
		}
		return withOptionalArchive(store, cfg.SnapshotDBPath)
	case BackendBBolt:
		store, err := bbolt.Open(cfg.LedgerPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open bbolt ledger: %w", err)
		}
		return withOptionalArchive(store, cfg.SnapshotDBPath)
	case BackendSQLite:
		store, err := sqlite.Open(cfg.LedgerPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return store, store, closeQuietly("ledger", store), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// withOptionalArchive pairs a ledger with the SQLite snapshot archive
// when one is configured.
func withOptionalArchive(store storage.EventStore, snapshotDBPath string) (storage.EventStore, storage.SnapshotArchive, func(), error) {
	if strings.TrimSpace(snapshotDBPath) == "" {
		return store, nil, closeQuietly("ledger", store), nil
	}
	archive, err := sqlite.Open(snapshotDBPath)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("open snapshot archive: %w", err)
	}
	cleanup := func() {
		closeQuietly("snapshot archive", archive)()
		closeQuietly("ledger", store)()
	}
	return store, archive, cleanup, nil
}

func closeQuietly(name string, closer interface{ Close() error }) func() {
	return func() {
		if err := closer.Close(); err != nil {
			log.Printf("close %s: %v", name, err)
		}
	}
}

// Run starts the engine and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	shutdownTracing, err := otel.Setup(ctx, "mechvolt")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, archive, cleanup, err := openEventStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	levels, err := parseLevelTable(cfg.LevelTableJSON)
	if err != nil {
		return err
	}
	tiers, err := parseTierTable(cfg.TierTableJSON)
	if err != nil {
		return err
	}
	calc, err := economy.NewCalculator(economy.Config{
		Levels:      levels,
		Tiers:       tiers,
		MemberCount: cfg.MemberCount,
		Difficulty: economy.DifficultyConfig{
			Multiplier:     cfg.DifficultyMultiplier,
			ManualOverride: cfg.DifficultyManual,
		},
	})
	if err != nil {
		return fmt.Errorf("build calculator: %w", err)
	}

	gateway, err := service.NewGateway(store, calc)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = timeouts.CacheTTL
	}
	broker := notify.NewBroker()
	cache, err := statuscache.New(gateway, broker, statuscache.WithTTL(ttl))
	if err != nil {
		return fmt.Errorf("build status cache: %w", err)
	}
	gateway.SetInvalidator(cache)

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = timeouts.RefreshInterval
	}
	refresher := statuscache.NewRefresher(cache, archive, interval)
	go refresher.Run(ctx)

	handler, err := rest.NewHandler(gateway, cache, store)
	if err != nil {
		return fmt.Errorf("build api handler: %w", err)
	}
	server, err := rest.NewServer(cfg.HTTPAddr, handler)
	if err != nil {
		return fmt.Errorf("build api server: %w", err)
	}
	return server.ListenAndServe(ctx)
}
