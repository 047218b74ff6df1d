package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/questboard/domain"
)

var (
	rawBucket       = []byte("raw")
	processedBucket = []byte("processed")
)

// Store wraps BoltDB to keep committed snapshots and the raw records they were built from.
type Store struct {
	db     *bolt.DB
	retain int
}

// Open initializes the BoltDB file and ensures the buckets exist. retain bounds the
// number of processed snapshots kept.
func Open(path string, retain int) (*Store, error) {
	if retain <= 0 {
		retain = DefaultRetain
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{rawBucket, processedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, retain: retain}, nil
}

// Save stores the processed snapshot and the raw records of every dataset in one
// transaction, pruning history beyond the retention limit.
func (s *Store) Save(snap *domain.Snapshot, raw map[string][]byte) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if snap == nil {
		return domain.ErrInvalidPayload
	}
	rec := Record{SavedAt: snap.FetchedAt}
	rec.normalize()

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	rec.Snapshot = payload
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		rb := tx.Bucket(rawBucket)
		for dataset, body := range raw {
			if body == nil {
				continue
			}
			if err := rb.Put([]byte(dataset), body); err != nil {
				return err
			}
		}
		pb := tx.Bucket(processedBucket)
		if err := pb.Put([]byte(buildKey(rec)), encoded); err != nil {
			return err
		}
		return prune(pb, s.retain)
	})
}

// Latest returns the most recently saved snapshot, or nil when none exists.
func (s *Store) Latest() (*domain.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var snap *domain.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(processedBucket).Cursor().Last()
		if v == nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		var out domain.Snapshot
		if err := json.Unmarshal(rec.Snapshot, &out); err != nil {
			return err
		}
		snap = &out
		return nil
	})
	return snap, err
}

// Raw returns the last raw body stored for dataset, or nil.
func (s *Store) Raw(dataset string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(rawBucket).Get([]byte(dataset)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Size returns the number of stored processed snapshots.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(processedBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prune(b *bolt.Bucket, retain int) error {
	c := b.Cursor()
	total := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		total++
	}
	excess := total - retain
	if excess <= 0 {
		return nil
	}
	var stale [][]byte
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func buildKey(rec Record) string {
	return fmt.Sprintf("%020d_%s", rec.SavedAt.UnixNano(), rec.ID)
}
