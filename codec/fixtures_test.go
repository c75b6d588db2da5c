package codec

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/descriptor"
	"docmapper/lifecycle"
	"docmapper/options"
)

type pair struct {
	ID    primitive.ObjectID `odm:",id"`
	Name  string
	Count int
}

type bag struct {
	Items []string
	Tags  map[string]int
	Note  *string
}

type Shape interface {
	Area() float64
}

type circle struct {
	descriptor.Embedded `odm:"discriminator=Circle"`

	Radius float64
}

func (c circle) Area() float64 {
	return math.Pi * c.Radius * c.Radius
}

type square struct {
	descriptor.Embedded `odm:"discriminator=Square"`

	Side float64
}

func (s *square) Area() float64 {
	return s.Side * s.Side
}

type drawing struct {
	Main   Shape
	Layers []Shape
}

type treeNode struct {
	Name     string
	Children []*treeNode
	Next     *treeNode
}

type color int

const (
	colorRed color = iota + 1
	colorGreen
)

var colorNames = map[color]string{colorRed: "red", colorGreen: "green"}

func (c color) IsValid() bool {
	_, ok := colorNames[c]
	return ok
}

func (c color) MarshalText() ([]byte, error) {
	name, ok := colorNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown color %d", int(c))
	}

	return []byte(name), nil
}

func (c *color) UnmarshalText(b []byte) error {
	for k, name := range colorNames {
		if name == string(b) {
			*c = k
			return nil
		}
	}

	return fmt.Errorf("unknown color %q", string(b))
}

type level int8

func (l level) IsValid() bool {
	return l >= 0 && l <= 3
}

type palette struct {
	Primary color
	Levels  []level
}

type author struct {
	descriptor.Entity `odm:"collection=authors"`

	ID   string `odm:",id"`
	Name string
}

type book struct {
	descriptor.Entity `odm:"collection=books"`

	ID       int     `odm:",id"`
	Title    string  `odm:",alsoload=name"`
	Author   *author `odm:",reference"`
	Editor   *author `odm:",reference,idonly"`
	Reviewer *author `odm:",reference,lazy"`
	Related  []*book `odm:",reference,idonly"`
}

type versioned struct {
	ID      string `odm:",id"`
	Version int    `odm:",final"`
	Cache   string `odm:",notsaved"`
	Skip    string `odm:"-"`
}

type stamped struct {
	Name    string
	Encoded int
	Decoded bool
}

func (s *stamped) PreEncode(*lifecycle.Context) error {
	s.Encoded++
	return nil
}

func (s *stamped) PostDecode(*lifecycle.Context, bson.D) error {
	s.Decoded = true
	return nil
}

type memo struct {
	descriptor.Embedded `odm:"discriminator=Memo,alwaysdiscriminator"`

	Text string
}

type quiet struct {
	descriptor.Embedded `odm:"nodiscriminator"`

	Text string
}

type loose struct {
	Value any
	Attrs map[string]any
	List  []any
}

// memoryResolver serves documents from a map keyed by collection and id.
type memoryResolver struct {
	mu    sync.Mutex
	docs  map[string]bson.Raw
	calls int
}

func newMemoryResolver() *memoryResolver {
	return &memoryResolver{docs: make(map[string]bson.Raw)}
}

func (m *memoryResolver) put(collection string, id any, doc bson.Raw) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[fmt.Sprintf("%s/%v", collection, id)] = doc
}

func (m *memoryResolver) Resolve(_ context.Context, collection string, id any) (bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	return m.docs[fmt.Sprintf("%s/%v", collection, id)], nil
}

func newTestRegistry(opts ...Option) *Registry {
	return NewRegistry(append([]Option{WithConfig(options.Default())}, opts...)...)
}

func withFlags(f options.Flag) Option {
	return WithConfig(options.FromFlags(f))
}

func mustMarshal(r *Registry, v any) bson.Raw {
	doc, err := r.Marshal(context.Background(), v)
	if err != nil {
		panic(err)
	}

	return doc
}

func mustDoc(v any) bson.Raw {
	b, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}

func keysOf(doc bson.Raw) []string {
	elems, err := doc.Elements()
	if err != nil {
		panic(err)
	}

	keys := make([]string, 0, len(elems))
	for _, e := range elems {
		keys = append(keys, e.Key())
	}

	return keys
}
