// Package store persists encoded documents by collection and identity. It
// is the collaborator the mapper saves to, loads from and resolves
// references through; it knows nothing about Go types.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("store: document not found")

// Record is one stored document and the fingerprint of the type layout it
// was written with.
type Record struct {
	Data        bson.Raw
	Fingerprint uint32
}

// Store keeps documents keyed by collection and identity.
type Store interface {
	Get(ctx context.Context, collection string, id any) (Record, error)
	Put(ctx context.Context, collection string, id any, rec Record) error
	Delete(ctx context.Context, collection string, id any) error
}

// Lister is implemented by stores that can enumerate a collection.
type Lister interface {
	IDs(ctx context.Context, collection string) ([]string, error)
}

// FormatID renders an identity as the string stores key it by. Object ids
// use their hex form, UUIDs their canonical form.
func FormatID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case uuid.UUID:
		return v.String()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// KeyOf returns the flat key of a document: "collection/id".
func KeyOf(collection string, id any) string {
	return collection + "/" + FormatID(id)
}

// Memory is a Store held in a map. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]Record)}
}

func (m *Memory) Get(_ context.Context, collection string, id any) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.docs[collection][FormatID(id)]
	if !ok {
		return Record{}, ErrNotFound
	}

	return Record{Data: append(bson.Raw(nil), rec.Data...), Fingerprint: rec.Fingerprint}, nil
}

func (m *Memory) Put(_ context.Context, collection string, id any, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Record)
	}
	m.docs[collection][FormatID(id)] = Record{Data: append(bson.Raw(nil), rec.Data...), Fingerprint: rec.Fingerprint}

	return nil
}

func (m *Memory) Delete(_ context.Context, collection string, id any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs[collection], FormatID(id))

	return nil
}

// IDs returns the stored identities of collection in sorted order.
func (m *Memory) IDs(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

type recordDocument struct {
	Fingerprint int64    `bson:"fingerprint"`
	Data        bson.Raw `bson:"data"`
}

// MarshalRecord encodes rec as one BSON document, for stores that keep a
// single byte value per key.
func MarshalRecord(rec Record) ([]byte, error) {
	b, err := bson.Marshal(recordDocument{Fingerprint: int64(rec.Fingerprint), Data: rec.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	return b, nil
}

// UnmarshalRecord decodes a value written by MarshalRecord.
func UnmarshalRecord(b []byte) (Record, error) {
	var doc recordDocument
	if err := bson.Unmarshal(b, &doc); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}

	return Record{Data: doc.Data, Fingerprint: uint32(doc.Fingerprint)}, nil
}
