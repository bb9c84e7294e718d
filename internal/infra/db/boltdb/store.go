// Package boltdb is a single-file order and catalog store for small
// deployments and local development. Values are JSON documents.
package boltdb

import (
	"encoding/json"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"

	"pix-checkout/internal/domain"
)

var (
	bucketOrders     = []byte("orders")      // correlation id -> order
	bucketOrderIndex = []byte("orders_by_id") // order id -> correlation id
	bucketProducts   = []byte("products")
	bucketPlans      = []byte("plans")
	bucketBumps      = []byte("order_bumps")
	bucketPixels     = []byte("pixels")
	bucketSettings   = []byte("settings")

	settingsKey = []byte("checkout")
)

// Store wraps a BoltDB file.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketOrders, bucketOrderIndex, bucketProducts, bucketPlans, bucketBumps, bucketPixels, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Orders returns the store as an order repository.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{db: s.db} }

// Catalog returns the store as a catalog repository.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{db: s.db} }

func getJSON[T any](b *bolt.Bucket, key string) (*T, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return nil, domain.ErrNotFound
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return v, nil
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), raw)
}

// listJSON decodes every value of the bucket that keep accepts.
func listJSON[T any](b *bolt.Bucket, keep func(*T) bool) ([]*T, error) {
	var out []*T
	err := b.ForEach(func(_, raw []byte) error {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return domain.ErrReadDatabaseRow
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func deleteKey(b *bolt.Bucket, key string) error {
	if b.Get([]byte(key)) == nil {
		return domain.ErrNotFound
	}
	return b.Delete([]byte(key))
}

// wrap turns bolt failures into store errors and passes domain errors through.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{domain.ErrNotFound, domain.ErrAlreadyExists, domain.ErrInvalidArgument, domain.ErrInvalidTransition, domain.ErrReadDatabaseRow} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &domain.StoreError{Op: op, Err: err}
}
