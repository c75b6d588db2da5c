package mapper

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"docmapper/descriptor"
	"docmapper/errors"
	"docmapper/store"
)

// ErrNoStore is returned by the persistence methods of a mapper created
// without WithStore.
var ErrNoStore = stderrors.New("mapper: no store configured")

var (
	objectIDType = reflect.TypeOf(primitive.ObjectID{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
)

// Save encodes v, a pointer to an entity, and puts it in the store under
// its collection and identity. A zero ObjectID or UUID identity is
// generated first and assigned to v. It returns the identity.
func (m *Mapper) Save(ctx context.Context, v any) (any, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}

	d, rv, err := m.entity(v, errors.PhaseEncode)
	if err != nil {
		return nil, err
	}

	idv, _ := d.IDValue(rv)
	if idv.IsZero() && idv.CanSet() {
		switch idv.Type() {
		case objectIDType:
			idv.Set(reflect.ValueOf(primitive.NewObjectID()))
		case uuidType:
			idv.Set(reflect.ValueOf(uuid.New()))
		}
	}
	id := idv.Interface()

	data, err := m.Encode(ctx, v)
	if err != nil {
		return nil, err
	}

	rec := store.Record{Data: data, Fingerprint: d.Fingerprint()}
	if err := m.store.Put(ctx, d.Collection, id, rec); err != nil {
		return nil, fmt.Errorf("failed to save %s %v: %w", d.Name, id, err)
	}

	return id, nil
}

// Load reads the entity stored under id into v, a pointer to an entity.
// References back to the loaded entity resolve to v itself. A document
// written with a different layout is decoded anyway and logged.
func (m *Mapper) Load(ctx context.Context, id any, v any) error {
	if m.store == nil {
		return ErrNoStore
	}

	d, rv, err := m.entity(v, errors.PhaseDecode)
	if err != nil {
		return err
	}

	id = convertID(id, d.ID.Type)

	rec, err := m.store.Get(ctx, d.Collection, id)
	if err != nil {
		return fmt.Errorf("failed to load %s %v: %w", d.Name, id, err)
	}

	if rec.Fingerprint != 0 && rec.Fingerprint != d.Fingerprint() {
		m.logger.Warn("stored document was written with a different layout",
			zap.String("type", d.Name),
			zap.String("collection", d.Collection),
			zap.String("id", store.FormatID(id)),
			zap.Uint32("stored", rec.Fingerprint),
			zap.Uint32("current", d.Fingerprint()))
	}

	c, err := m.registry.LookupType(d.Type)
	if err != nil {
		return err
	}

	dc := m.registry.NewDecodeContext(ctx)
	dc.Remember(d.Collection, id, rv.Addr())

	return m.registry.DecodeWith(dc, c, bsonrw.NewBSONDocumentReader(rec.Data), rv)
}

// Delete removes the stored document of v, a pointer to an entity.
func (m *Mapper) Delete(ctx context.Context, v any) error {
	if m.store == nil {
		return ErrNoStore
	}

	d, rv, err := m.entity(v, errors.PhaseEncode)
	if err != nil {
		return err
	}

	idv, _ := d.IDValue(rv)
	if err := m.store.Delete(ctx, d.Collection, idv.Interface()); err != nil {
		return fmt.Errorf("failed to delete %s %v: %w", d.Name, idv.Interface(), err)
	}

	return nil
}

// IDs lists the stored identities of the collection of sample's type. The
// store must implement store.Lister.
func (m *Mapper) IDs(ctx context.Context, sample any) ([]string, error) {
	lister, ok := m.store.(store.Lister)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list collections", m.store)
	}

	d, err := m.Descriptor(sample)
	if err != nil {
		return nil, err
	}

	return lister.IDs(ctx, d.Collection)
}

// entity checks that v is a non-nil pointer to a struct with an identity
// and returns its descriptor and the struct value.
func (m *Mapper) entity(v any, phase errors.Phase) (*descriptor.TypeDescriptor, reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, reflect.Value{}, errors.New(phase, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", v)).
			Detail("expected a non-nil pointer to a struct").
			Build()
	}

	d, err := m.registry.Descriptors().Get(rv.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}

	if d.ID == nil {
		return nil, reflect.Value{}, errors.New(errors.PhaseMap, errors.KindIncompatibleField).
			GoType(d.Name).
			Detail("only types with an identity field can be stored").
			Build()
	}

	return d, rv.Elem(), nil
}

// convertID converts id to the identity field's type when it is a
// different but convertible kind, e.g. an untyped constant given for an
// int64 identity.
func convertID(id any, t reflect.Type) any {
	v := reflect.ValueOf(id)
	if !v.IsValid() || v.Type() == t {
		return id
	}

	switch s := id.(type) {
	case string:
		switch t {
		case objectIDType:
			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				return oid
			}
		case uuidType:
			if u, err := uuid.Parse(s); err == nil {
				return u
			}
		}
	}

	if v.Type().ConvertibleTo(t) && isNumber(v.Kind()) == isNumber(t.Kind()) {
		return v.Convert(t).Interface()
	}

	return id
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// storeResolver fetches referenced documents from a store.
type storeResolver struct {
	store store.Store
}

func (r *storeResolver) Resolve(ctx context.Context, collection string, id any) (bson.Raw, error) {
	rec, err := r.store.Get(ctx, collection, id)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return rec.Data, nil
}
