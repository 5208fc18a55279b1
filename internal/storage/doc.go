// Package storage defines the persistence interfaces for the power ledger.
//
// It abstracts the append-only event store so the projection and gateway
// layers stay backend-agnostic. Implementations (JSONL file, SQLite,
// BoltDB) live in subpackages.
//
// # Error Types
//
//   - ErrNotFound: Indicates a requested record is missing.
package storage
