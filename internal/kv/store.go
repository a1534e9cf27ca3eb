package kv

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.etcd.io/bbolt"
)

// Store wraps a transactional ordered byte-key store (an embedded bbolt
// database) and exposes the column-family primitives the resource state
// store is built on.
type Store struct {
	db     *bbolt.DB
	logger hclog.Logger
}

// Open opens (creating if necessary) the bbolt file at path.
func Open(path string, logger hclog.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded store at %s: %w", path, err)
	}
	return &Store{db: db, logger: logger.Named("kv-store")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Transaction wraps a single bbolt transaction. Read-your-writes holds
// within it because bbolt transactions are themselves copy-on-write
// snapshots with buffered mutations.
type Transaction struct {
	tx       *bbolt.Tx
	writable bool
}

func (t *Transaction) bucket(name []byte) (*bbolt.Bucket, error) {
	if t.writable {
		b, err := t.tx.CreateBucketIfNotExists(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open column family %q: %w", name, err)
		}
		return b, nil
	}
	b := t.tx.Bucket(name)
	if b == nil {
		return nil, nil
	}
	return b, nil
}

// Update runs fn inside a writable transaction; the transaction commits if
// fn returns nil and aborts (discarding all buffered writes) otherwise.
// All mutations a single command makes flow through one such transaction.
func (s *Store) Update(fn func(*Transaction) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&Transaction{tx: tx, writable: true})
	})
}

// View runs fn inside a read-only transaction.
func (s *Store) View(fn func(*Transaction) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&Transaction{tx: tx, writable: false})
	})
}
