package ingestion

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// VersionStore persists the Place/Visit Detector's current cluster-run
// version in an embedded Badger KV store, so delete_visits(version?)
// (spec.md §4.1) can target "the latest run" across a process restart
// without a schema migration, grounded on the teacher's badger-backed
// auth token trackers (internal/auth/jti_tracker.go, session_badger.go).
type VersionStore struct {
	db *badger.DB
}

const versionKey = "placedetect:version"

// OpenVersionStore opens (creating if absent) a Badger database at dir.
func OpenVersionStore(dir string) (*VersionStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open version store: %w", err)
	}
	return &VersionStore{db: db}, nil
}

// Close releases the underlying Badger database.
func (v *VersionStore) Close() error {
	return v.db.Close()
}

// Current returns the last recorded cluster-run version, or 0 if none has
// run yet.
func (v *VersionStore) Current() (int, error) {
	var version int
	err := v.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(versionKey))
		if err == badger.ErrKeyNotFound {
			version = 0
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n, perr := strconv.Atoi(string(val))
			if perr != nil {
				return perr
			}
			version = n
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return version, nil
}

// Advance persists version+1 and returns the new version.
func (v *VersionStore) Advance() (int, error) {
	current, err := v.Current()
	if err != nil {
		return 0, err
	}
	next := current + 1
	err = v.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(versionKey), []byte(strconv.Itoa(next)))
	})
	if err != nil {
		return 0, fmt.Errorf("advance version: %w", err)
	}
	return next, nil
}
