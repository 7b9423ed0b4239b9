// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/bureau-foundation/vaultd/lib/clock"
	"github.com/bureau-foundation/vaultd/lib/codec"
)

var eventsBucket = []byte("events")

// Outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Event is one recorded operation.
type Event struct {
	ID        string    `cbor:"id" json:"id"`
	Time      time.Time `cbor:"time" json:"time"`
	VaultID   string    `cbor:"vault_id" json:"vault_id"`
	Operation string    `cbor:"operation" json:"operation"`
	Outcome   string    `cbor:"outcome" json:"outcome"`
	Kind      string    `cbor:"kind,omitempty" json:"kind,omitempty"`
	Message   string    `cbor:"message,omitempty" json:"message,omitempty"`
}

// Log is an open audit database.
type Log struct {
	db    *bolt.DB
	clock clock.Clock
}

// Open opens or creates the database at path.
func Open(path string, clk clock.Clock) (*Log, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit log: %w", err)
	}
	return &Log{db: db, clock: clk}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends an event for vaultID. A nil opErr records success;
// otherwise kind and the error message are stored.
func (l *Log) Record(vaultID, operation, kind string, opErr error) error {
	event := Event{
		ID:        uuid.NewString(),
		Time:      l.clock.Now().UTC(),
		VaultID:   vaultID,
		Operation: operation,
		Outcome:   OutcomeOK,
	}
	if opErr != nil {
		event.Outcome = OutcomeError
		event.Kind = kind
		event.Message = opErr.Error()
	}

	value, err := codec.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		vaultBucket, err := tx.Bucket(eventsBucket).CreateBucketIfNotExists([]byte(vaultID))
		if err != nil {
			return fmt.Errorf("creating audit bucket for %s: %w", vaultID, err)
		}
		sequence, err := vaultBucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, sequence)
		return vaultBucket.Put(key, value)
	})
}

// List returns up to limit events for vaultID, newest first. A limit
// of zero or less returns every event.
func (l *Log) List(vaultID string, limit int) ([]Event, error) {
	var events []Event
	err := l.db.View(func(tx *bolt.Tx) error {
		vaultBucket := tx.Bucket(eventsBucket).Bucket([]byte(vaultID))
		if vaultBucket == nil {
			return nil
		}
		cursor := vaultBucket.Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			var event Event
			if err := codec.Unmarshal(value, &event); err != nil {
				return fmt.Errorf("decoding audit event %x: %w", key, err)
			}
			events = append(events, event)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Forget deletes every event for vaultID.
func (l *Log) Forget(vaultID string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(eventsBucket).DeleteBucket([]byte(vaultID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
