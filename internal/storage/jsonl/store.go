// Package jsonl implements the power ledger as an append-only file with
// one self-describing JSON record per line.
//
// The format survived a history of corruption caused by independent
// processes appending concurrently, so Open takes an exclusive lock file
// next to the ledger and refuses to share it.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/event"
	"github.com/cinderworks/mechvolt/internal/storage"
)

// record is the wire shape of one ledger line.
type record struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is a JSONL-file-backed event store.
type Store struct {
	mu       sync.Mutex
	path     string
	lockPath string
	file     *os.File
	nextSeq  uint64
}

// Open opens (or creates) the ledger at path and acquires its lock file.
// A second process holding the lock is a hard error: interleaved appends
// are exactly the failure mode this store exists to prevent.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	lockPath := path + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("ledger %s is locked by another writer (remove %s if stale)", path, lockPath)
		}
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	fmt.Fprintf(lock, "%d\n", os.Getpid())
	if err := lock.Close(); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("write ledger lock: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	store := &Store{path: path, lockPath: lockPath, file: file}
	lastSeq, err := store.scanLastSeq()
	if err != nil {
		_ = file.Close()
		_ = os.Remove(lockPath)
		return nil, err
	}
	store.nextSeq = lastSeq + 1
	return store, nil
}

// Append assigns the next sequence number, stamps the event, and writes a
// single fsynced line.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("event type is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return event.Event{}, fmt.Errorf("ledger is closed")
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
	evt.Seq = s.nextSeq

	line, err := json.Marshal(record{
		Seq:       evt.Seq,
		Timestamp: evt.Timestamp,
		Type:      string(evt.Type),
		Payload:   json.RawMessage(evt.PayloadJSON),
	})
	if err != nil {
		return event.Event{}, fmt.Errorf("encode ledger record: %w", err)
	}
	line = append(line, '\n')

	// One write call per record keeps a crashed append confined to the
	// final line, which readers already tolerate.
	if _, err := s.file.Write(line); err != nil {
		return event.Event{}, fmt.Errorf("append ledger record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return event.Event{}, fmt.Errorf("sync ledger: %w", err)
	}

	s.nextSeq++
	return evt, nil
}

// ListEvents returns up to limit events with Seq > afterSeq in ascending
// order. Undecodable lines are skipped with a logged warning rather than
// failing the whole replay.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger for read: %w", err)
	}
	defer file.Close()

	var out []event.Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Printf("ledger skipping undecodable line file=%s line=%d err=%v", s.path, lineNo, err)
			continue
		}
		if rec.Seq <= afterSeq {
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
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return out, nil
}

// GetEventBySeq returns a single event, or storage.ErrNotFound.
func (s *Store) GetEventBySeq(ctx context.Context, seq uint64) (event.Event, error) {
	events, err := s.ListEvents(ctx, seq-1, 1)
	if err != nil {
		return event.Event{}, err
	}
	if len(events) == 0 || events[0].Seq != seq {
		return event.Event{}, storage.ErrNotFound
	}
	return events[0], nil
}

// Close releases the append handle and the lock file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if removeErr := os.Remove(s.lockPath); removeErr != nil && err == nil {
		err = removeErr
	}
	return err
}

// scanLastSeq finds the highest sequence number already in the ledger.
func (s *Store) scanLastSeq() (uint64, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open ledger for scan: %w", err)
	}
	defer file.Close()

	var last uint64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Seq > last {
			last = rec.Seq
		}
	}
	if err := scanner.Err(); err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("scan ledger: %w", err)
	}
	return last, nil
}
