// Package redisstore keeps documents in Redis hashes, one hash per
// document under "<prefix><collection>/<id>".
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"docmapper/store"
)

const (
	fieldData        = "data"
	fieldFingerprint = "fingerprint"

	defaultPrefix = "docmapper::"
)

// Option configures a Store.
type Option func(*config)

type config struct {
	prefix string
}

// WithPrefix overrides the prefix of every key.
func WithPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.prefix = prefix
	}
}

// Store is a store.Store backed by Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Lister = (*Store)(nil)
)

// New wraps an existing redis client.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client is nil")
	}

	cfg := config{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{client: client, prefix: cfg.prefix}, nil
}

// NewWithOptions creates a redis client from go-redis options and wraps it.
func NewWithOptions(options *redis.Options, opts ...Option) (*Store, error) {
	if options == nil {
		return nil, errors.New("redisstore: redis options are required")
	}

	return New(redis.NewClient(options), opts...)
}

func (s *Store) key(collection string, id any) string {
	return s.prefix + store.KeyOf(collection, id)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, collection string, id any) (store.Record, error) {
	result, err := s.client.HGetAll(ctx, s.key(collection, id)).Result()
	if err != nil {
		return store.Record{}, fmt.Errorf("redisstore: get %s: %w", store.KeyOf(collection, id), err)
	}
	if len(result) == 0 {
		return store.Record{}, store.ErrNotFound
	}

	rec := store.Record{Data: bson.Raw(result[fieldData])}
	if fp, ok := result[fieldFingerprint]; ok {
		n, err := strconv.ParseUint(fp, 10, 32)
		if err != nil {
			return store.Record{}, fmt.Errorf("redisstore: bad fingerprint %q: %w", fp, err)
		}
		rec.Fingerprint = uint32(n)
	}

	return rec, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, collection string, id any, rec store.Record) error {
	fields := map[string]any{
		fieldData:        []byte(rec.Data),
		fieldFingerprint: strconv.FormatUint(uint64(rec.Fingerprint), 10),
	}

	if err := s.client.HSet(ctx, s.key(collection, id), fields).Err(); err != nil {
		return fmt.Errorf("redisstore: put %s: %w", store.KeyOf(collection, id), err)
	}

	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, collection string, id any) error {
	return s.client.Del(ctx, s.key(collection, id)).Err()
}

// IDs implements store.Lister by scanning the collection's key space.
func (s *Store) IDs(ctx context.Context, collection string) ([]string, error) {
	prefix := s.prefix + collection + "/"

	var ids []string

	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redisstore: scan %s: %w", collection, err)
	}

	sort.Strings(ids)

	return ids, nil
}

// Client exposes the underlying redis client.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}
