// Package bbolt implements the power ledger on BoltDB. Events live in a
// single bucket keyed by big-endian sequence number, so range scans walk
// the ledger in append order.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/event"
	"github.com/cinderworks/mechvolt/internal/storage"
	"go.etcd.io/bbolt"
)

const eventsBucket = "events"

// record is the stored shape of one ledger entry.
type record struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is a BoltDB-backed event store.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the ledger database at path. BoltDB holds an
// exclusive file lock, so a second writer blocks and then fails on the
// open timeout instead of interleaving appends.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(eventsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append assigns the next sequence number, stamps the event, and writes
// it in a single transaction.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("event type is required")
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventsBucket))
		if bucket == nil {
			return fmt.Errorf("events bucket is missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("assign sequence: %w", err)
		}
		evt.Seq = seq

		data, err := json.Marshal(record{
			Seq:       evt.Seq,
			Timestamp: evt.Timestamp,
			Type:      string(evt.Type),
			Payload:   json.RawMessage(evt.PayloadJSON),
		})
		if err != nil {
			return fmt.Errorf("encode ledger record: %w", err)
		}
		return bucket.Put(seqKey(seq), data)
	})
	if err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

// ListEvents returns up to limit events with Seq > afterSeq in ascending
// order. Undecodable values are skipped with a logged warning.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var out []event.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventsBucket))
		if bucket == nil {
			return fmt.Errorf("events bucket is missing")
		}
		cursor := bucket.Cursor()
		for key, value := cursor.Seek(seqKey(afterSeq + 1)); key != nil; key, value = cursor.Next() {
			var rec record
			if err := json.Unmarshal(value, &rec); err != nil {
				log.Printf("ledger skipping undecodable record seq=%d err=%v", binary.BigEndian.Uint64(key), err)
				continue
			}
			out = append(out, event.Event{
				Seq:         rec.Seq,
				Timestamp:   rec.Timestamp.UTC(),
				Type:        event.Type(rec.Type),
				PayloadJSON: []byte(rec.Payload),
			})
			if len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetEventBySeq returns a single event, or storage.ErrNotFound.
func (s *Store) GetEventBySeq(ctx context.Context, seq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	var evt event.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventsBucket))
		if bucket == nil {
			return fmt.Errorf("events bucket is missing")
		}
		value := bucket.Get(seqKey(seq))
		if value == nil {
			return storage.ErrNotFound
		}
		var rec record
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode ledger record: %w", err)
		}
		evt = event.Event{
			Seq:         rec.Seq,
			Timestamp:   rec.Timestamp.UTC(),
			Type:        event.Type(rec.Type),
			PayloadJSON: []byte(rec.Payload),
		}
		return nil
	})
	if err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

func seqKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}
