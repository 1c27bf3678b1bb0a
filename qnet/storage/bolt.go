package storage

import (
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var chainBucket = []byte("chain")

// BoltStore is the on-disk reference Store, backed by a single bbolt bucket
// holding opaque key/value pairs (spec.md §6 Store collaborator, grounded on
// cuemby-warren/pkg/storage.BoltStore).
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	path := filepath.Join(dataDir, "qnet.db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chainBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Put implements Store.
func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chainBucket).Put(key, value)
	})
}

// Get implements Store.
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(chainBucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IterRange implements Store.
func (s *BoltStore) IterRange(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(chainBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

type boltBatch struct {
	tx *bolt.Tx
}

func (b *boltBatch) Put(key, value []byte) error {
	return b.tx.Bucket(chainBucket).Put(key, value)
}

func (b *boltBatch) Delete(key []byte) error {
	return b.tx.Bucket(chainBucket).Delete(key)
}

// Batch implements Store, running fn inside a single bbolt read-write
// transaction so every write in fn either all commit or all roll back
// (spec.md §5 "atomic batch for block append").
func (s *BoltStore) Batch(fn func(b Batch) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltBatch{tx: tx})
	})
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
