package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

func TestKeyOf(t *testing.T) {
	oid := primitive.NewObjectID()
	u := uuid.New()

	tests := []struct {
		name string
		id   any
		want string
	}{
		{name: "string", id: "a1", want: "users/a1"},
		{name: "int", id: 42, want: "users/42"},
		{name: "object id", id: oid, want: "users/" + oid.Hex()},
		{name: "uuid", id: u, want: "users/" + u.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyOf("users", tt.id))
		})
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "users", 1)
	require.ErrorIs(t, err, ErrNotFound)

	doc, err := bson.Marshal(bson.D{{Key: "_id", Value: 1}})
	require.NoError(t, err)

	require.NoError(t, m.Put(ctx, "users", 1, Record{Data: doc, Fingerprint: 7}))

	rec, err := m.Get(ctx, "users", 1)
	require.NoError(t, err)
	assert.Equal(t, bson.Raw(doc), rec.Data)
	assert.Equal(t, uint32(7), rec.Fingerprint)

	rec.Data[len(rec.Data)-2] = 'X'
	again, err := m.Get(ctx, "users", 1)
	require.NoError(t, err)
	assert.Equal(t, bson.Raw(doc), again.Data, "records are copied out")

	ids, err := m.IDs(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	require.NoError(t, m.Delete(ctx, "users", 1))
	_, err = m.Get(ctx, "users", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(ctx, "nothing", "here"))
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		i := i
		g.Go(func() error {
			doc, err := bson.Marshal(bson.D{{Key: "_id", Value: i}})
			if err != nil {
				return err
			}
			if err := m.Put(ctx, "n", i, Record{Data: doc}); err != nil {
				return err
			}
			_, err = m.Get(ctx, "n", i)
			return err
		})
	}
	require.NoError(t, g.Wait())

	ids, err := m.IDs(ctx, "n")
	require.NoError(t, err)
	assert.Len(t, ids, 50)
}

func TestRecordEncoding(t *testing.T) {
	doc, err := bson.Marshal(bson.D{{Key: "name", Value: "x"}})
	require.NoError(t, err)

	for _, fp := range []uint32{0, 1, 1 << 31, ^uint32(0)} {
		t.Run(fmt.Sprint(fp), func(t *testing.T) {
			b, err := MarshalRecord(Record{Data: doc, Fingerprint: fp})
			require.NoError(t, err)

			rec, err := UnmarshalRecord(b)
			require.NoError(t, err)
			assert.Equal(t, fp, rec.Fingerprint)
			assert.Equal(t, bson.Raw(doc), rec.Data)
		})
	}

	_, err = UnmarshalRecord([]byte{1, 2})
	assert.Error(t, err)
}
