// Package boltstore keeps documents in a bbolt file, one bucket per
// collection.
package boltstore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"docmapper/store"
)

// Store is a store.Store backed by a bbolt database.
type Store struct {
	db *bolt.DB
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Lister = (*Store)(nil)
)

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// New wraps an open database.
func New(db *bolt.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, collection string, id any) (store.Record, error) {
	var rec store.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return store.ErrNotFound
		}

		v := b.Get([]byte(store.FormatID(id)))
		if v == nil {
			return store.ErrNotFound
		}

		// v is only valid inside the transaction
		var err error
		rec, err = store.UnmarshalRecord(append([]byte(nil), v...))

		return err
	})

	return rec, err
}

// Put implements store.Store.
func (s *Store) Put(_ context.Context, collection string, id any, rec store.Record) error {
	value, err := store.MarshalRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("boltstore: bucket %s: %w", collection, err)
		}

		return b.Put([]byte(store.FormatID(id)), value)
	})
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, collection string, id any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}

		return b.Delete([]byte(store.FormatID(id)))
	})
}

// IDs implements store.Lister. Keys come back in bbolt's byte order.
func (s *Store) IDs(_ context.Context, collection string) ([]string, error) {
	var ids []string

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})

	return ids, err
}
