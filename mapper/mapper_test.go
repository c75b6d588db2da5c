package mapper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"docmapper/errors"
	"docmapper/examples/shop"
	"docmapper/lifecycle"
	"docmapper/options"
)

func newShopMapper(t *testing.T, opts ...Option) *Mapper {
	t.Helper()

	m, err := New(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, m.Map(shop.Types()...))

	return m
}

func keysOf(doc bson.D) []string {
	keys := make([]string, 0, len(doc))
	for _, e := range doc {
		keys = append(keys, e.Key)
	}
	return keys
}

func sampleOrder(customer primitive.ObjectID) shop.Order {
	return shop.Order{
		ID:         1,
		Customer:   &shop.Customer{ID: customer},
		Status:     shop.StatusPaid,
		TotalCents: 500,
		Items: []shop.OrderItem{
			{Product: &shop.Product{ID: 7}, Name: "pen", Quantity: 2, UnitPrice: 250},
		},
		Payment:   shop.CardPayment{Last4: "4242", Cents: 500},
		OrderedAt: time.Date(2024, 3, 9, 14, 0, 0, 250_000_000, time.UTC),
	}
}

func TestMapper_Map(t *testing.T) {
	m := newShopMapper(t)

	var names []string
	for _, d := range m.Mapped() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"shop.CardPayment", "shop.Customer", "shop.InvoicePayment", "shop.Order", "shop.OrderItem", "shop.Product",
	}, names)

	d, err := m.Descriptor(&shop.Order{})
	require.NoError(t, err)
	assert.Equal(t, "orders", d.Collection)
	require.NotNil(t, d.ID)
	assert.Equal(t, "ID", d.ID.Name)

	// mapping twice is harmless
	require.NoError(t, m.Map(&shop.Order{}))
	assert.Len(t, m.Mapped(), 6)
}

func TestMapper_MapErrors(t *testing.T) {
	type clash struct {
		A string `odm:"x"`
		B string `odm:"x"`
	}

	m, err := New()
	require.NoError(t, err)

	err = m.Map(42, clash{}, shop.Product{})
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindNoCodec})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindDuplicateKey})

	require.Len(t, m.Mapped(), 1, "valid types are mapped despite failures")
	assert.Equal(t, "shop.Product", m.Mapped()[0].Name)
}

func TestMapper_RoundTripWithoutStore(t *testing.T) {
	m := newShopMapper(t)
	ctx := context.Background()

	in := sampleOrder(primitive.NewObjectID())

	doc, err := m.ToDocument(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "customer", "status", "totalCents", "items", "payment", "orderedAt"}, keysOf(doc))

	var out shop.Order
	require.NoError(t, m.FromDocument(ctx, doc, &out))

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	invoice := in
	invoice.Payment = &shop.InvoicePayment{Number: "INV-1", Cents: 500, DueDays: 30}

	data, err := m.Encode(ctx, invoice)
	require.NoError(t, err)

	var back shop.Order
	require.NoError(t, m.Decode(ctx, data, &back))
	assert.Equal(t, &shop.InvoicePayment{Number: "INV-1", Cents: 500, DueDays: 30}, back.Payment)
}

func TestMapper_Errors(t *testing.T) {
	m := newShopMapper(t)
	ctx := context.Background()

	_, err := m.Encode(ctx, shop.Order{ID: 1, Status: "LOST"})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindInvalidEnum})

	var out shop.Order
	err = m.FromDocument(ctx, bson.D{
		{Key: "_id", Value: int64(1)},
		{Key: "payment", Value: bson.D{{Key: options.DefaultDiscriminatorKey, Value: "cash"}}},
	}, &out)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindUnresolvedDiscriminator})
}

func TestMapper_AlsoLoad(t *testing.T) {
	m := newShopMapper(t)

	var p shop.Product
	require.NoError(t, m.FromDocument(context.Background(), bson.D{
		{Key: "_id", Value: int64(3)},
		{Key: "price", Value: int64(999)},
	}, &p))

	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, int64(999), p.PriceCents)
}

func TestMapper_Flags(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	product := shop.Product{ID: 1, Name: "pen", CreatedAt: created}

	tests := []struct {
		name  string
		flags options.Flag
		value any
		want  []string
	}{
		{
			name:  "defaults",
			value: product,
			want:  []string{"_id", "sku", "name", "description", "priceCents", "inventoryCount", "createdAt"},
		},
		{
			name:  "ignore finals",
			flags: options.IgnoreFinals,
			value: product,
			want:  []string{"_id", "sku", "name", "description", "priceCents", "inventoryCount"},
		},
		{
			name:  "nulls omitted",
			value: shop.Customer{ID: primitive.NewObjectID()},
			want:  []string{"_id", "email", "fullName", "isActive"},
		},
		{
			name:  "nulls stored",
			flags: options.StoreNulls,
			value: shop.Customer{ID: primitive.NewObjectID()},
			want:  []string{"_id", "email", "fullName", "address", "isActive"},
		},
		{
			name:  "empties stored",
			flags: options.StoreEmpties,
			value: shop.Order{ID: 1, Status: shop.StatusPending, Items: []shop.OrderItem{}},
			want:  []string{"_id", "status", "totalCents", "items", "orderedAt"},
		},
		{
			name:  "empties omitted",
			value: shop.Order{ID: 1, Status: shop.StatusPending, Items: []shop.OrderItem{}},
			want:  []string{"_id", "status", "totalCents", "orderedAt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newShopMapper(t, WithFlags(tt.flags))

			doc, err := m.ToDocument(ctx, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keysOf(doc))
		})
	}
}

const orderMapping = `
version: "1"
config:
  storeEmpties: true
types:
  - type: shop.Order
    collection: purchases
    fields:
      Status:
        name: state
    ignore: TotalCents
`

func writeMapping(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestMapper_MappingFile(t *testing.T) {
	m := newShopMapper(t, WithMappingFile(writeMapping(t, "mapping.yaml", orderMapping)))
	ctx := context.Background()

	assert.True(t, m.Config().StoreEmpties)
	require.NoError(t, m.Check())

	d, err := m.Descriptor(shop.Order{})
	require.NoError(t, err)
	assert.Equal(t, "purchases", d.Collection)

	in := shop.Order{ID: 1, Status: shop.StatusShipped, TotalCents: 100, Items: []shop.OrderItem{}}
	doc, err := m.ToDocument(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "state", "items", "orderedAt"}, keysOf(doc))

	var out shop.Order
	require.NoError(t, m.FromDocument(ctx, doc, &out))
	assert.Equal(t, shop.StatusShipped, out.Status)
	assert.Zero(t, out.TotalCents)
}

func TestMapper_MappingFileErrors(t *testing.T) {
	t.Run("unknown field fails the mapping of the type", func(t *testing.T) {
		path := writeMapping(t, "mapping.yaml", `
types:
  - type: shop.Order
    fields:
      Stauts:
        name: state
`)
		m, err := New(WithMappingFile(path), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)

		err = m.Map(shop.Types()...)
		assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindUnknownOption})
		assert.ErrorContains(t, err, "Status")
	})

	t.Run("unknown type is reported by check", func(t *testing.T) {
		m := newShopMapper(t, WithMappingFile(writeMapping(t, "mapping.yaml", `
types:
  - type: shop.Refund
    collection: refunds
`)))

		err := m.Check()
		require.Error(t, err)
		assert.ErrorContains(t, err, "shop.Refund")
	})

	t.Run("invalid configuration overlay", func(t *testing.T) {
		_, err := New(WithMappingFile(writeMapping(t, "mapping.toml", `
[config]
discriminatorKey = "$t"
`)))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := New(WithMappingFile(filepath.Join(t.TempDir(), "absent.yaml")))
		assert.Error(t, err)
	})
}

func TestMapper_Hooks(t *testing.T) {
	hooks := lifecycle.NewRegistry()
	require.NoError(t, hooks.Listen(lifecycle.PostEncode,
		func(_ *lifecycle.Context, p *shop.Product, doc bson.D) (bson.D, error) {
			return append(doc, bson.E{Key: "source", Value: "catalogue"}), nil
		}))

	m := newShopMapper(t, WithHooks(hooks))
	assert.Same(t, hooks, m.Hooks())

	doc, err := m.ToDocument(context.Background(), shop.Product{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, bson.E{Key: "source", Value: "catalogue"}, doc[len(doc)-1])

	// other types are untouched
	doc, err = m.ToDocument(context.Background(), shop.Customer{ID: primitive.NewObjectID()})
	require.NoError(t, err)
	assert.NotContains(t, keysOf(doc), "source")
}

func TestMapper_Factory(t *testing.T) {
	newProduct := func() *shop.Product {
		return &shop.Product{Description: "n/a", Inventory: -1}
	}

	m := newShopMapper(t, WithFactory(newProduct))
	ctx := context.Background()

	var p shop.Product
	require.NoError(t, m.FromDocument(ctx, bson.D{{Key: "_id", Value: int64(2)}, {Key: "name", Value: "ink"}}, &p))
	assert.Equal(t, shop.Product{ID: 2, Name: "ink", Description: "n/a", Inventory: -1}, p)

	var o shop.Order
	require.NoError(t, m.FromDocument(ctx, bson.D{
		{Key: "_id", Value: int64(1)},
		{Key: "status", Value: "PAID"},
		{Key: "items", Value: bson.A{bson.D{{Key: "product", Value: int64(7)}}}},
	}, &o))

	require.Len(t, o.Items, 1)
	assert.Equal(t, &shop.Product{ID: 7, Description: "n/a", Inventory: -1}, o.Items[0].Product, "reference stubs come from the factory")

	badShape := &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindIncompatibleField}
	assert.ErrorIs(t, m.RegisterFactory(func() shop.Product { return shop.Product{} }), badShape)
	_, err := New(WithFactory("not a function"))
	assert.ErrorIs(t, err, badShape)
}

func TestMapper_DriverRegistry(t *testing.T) {
	m := newShopMapper(t)

	in := sampleOrder(primitive.NewObjectID())

	data, err := bson.MarshalWithRegistry(m.DriverRegistry(), in)
	require.NoError(t, err)

	var out shop.Order
	require.NoError(t, m.Decode(context.Background(), data, &out))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("driver round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMapper_InvalidConfig(t *testing.T) {
	cfg := options.Default()
	cfg.FieldNaming = "kebab"

	_, err := New(WithConfig(cfg))
	assert.Error(t, err)
}
