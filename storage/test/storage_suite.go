// Package test holds a suite of tests every object store must pass.
package test

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
)

// BaseStorageSuite exercises a storer.ObjectStorer. Embedding suites set
// Storer in SetupTest.
type BaseStorageSuite struct {
	suite.Suite
	Storer storer.ObjectStorer
}

// Fixtures returns one object of every type, the feature holding a value of
// every supported field type.
func Fixtures() []object.RevObject {
	bound := orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{3, 4}}
	f, err := object.NewFeature(
		nil, true, int8(-1), uint8(2), int16(3), int32(-4), 5, int64(6),
		float32(7.5), 8.25, "nine", uint16('x'),
		[]bool{true, false}, []byte{1, 2}, []int16{-1}, []int32{1}, []int64{1, 2}, []int{3},
		[]float32{1.5}, []float64{2.5}, []string{"a", ""}, []uint16{'a'},
		orb.Point{1, 2}, orb.LineString{{1, 2}, {3, 4}},
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		orb.MultiPoint{{1, 1}}, orb.MultiLineString{{{1, 2}, {3, 4}}},
		orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		orb.Collection{orb.Point{1, 2}, orb.LineString{{0, 0}, {1, 1}}},
		uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"),
		big.NewInt(-129), object.Decimal{Unscaled: big.NewInt(12345), Scale: 2},
		time.UnixMilli(1500000000123).UTC(),
		map[string]any{"k": int32(1), "nested": map[string]any{"s": "v"}},
		bound,
	)
	if err != nil {
		panic(err)
	}

	ft, err := object.NewFeatureType(object.Name{Namespace: "http://example.com", Local: "roads"}, []object.PropertyDescriptor{
		{Name: object.Name{Local: "name"}, TypeName: object.Name{Local: "String"}, Binding: object.String, Nillable: true, MaxOccurs: 1},
		{Name: object.Name{Local: "geom"}, TypeName: object.Name{Local: "LineString"}, Binding: object.LineString, MinOccurs: 1, MaxOccurs: 1, CRS: "EPSG:4326"},
	})
	if err != nil {
		panic(err)
	}

	node := object.NewFeatureNode("f1", f.ID(), ft.ID(), &bound)
	node.ExtraData = map[string]any{"note": "x"}
	leaf, err := object.NewLeafTree([]object.Node{node}, nil, 1, 0)
	if err != nil {
		panic(err)
	}

	root, err := object.NewLeafTree(nil, []object.Node{object.NewTreeNode("roads", leaf.ID(), ft.ID(), leaf.Bounds())}, 1, 1)
	if err != nil {
		panic(err)
	}

	buckets, err := object.NewBucketTree([]object.Bucket{{Index: 4, ObjectID: leaf.ID(), Bounds: leaf.Bounds()}}, 1, 0)
	if err != nil {
		panic(err)
	}

	person := &object.Person{Name: "a", Email: "a@example.com", Timestamp: 1000, TimeZoneOffset: -3600000}
	commit, err := object.NewCommit(root.ID(), []plumbing.ObjectID{plumbing.ComputeID([]byte("p"))}, person, nil, "msg")
	if err != nil {
		panic(err)
	}

	tag, err := object.NewTag("v1", commit.ID(), "release", person)
	if err != nil {
		panic(err)
	}

	return []object.RevObject{f, ft, leaf, root, buckets, commit, tag}
}

func (s *BaseStorageSuite) TestPutAndGet() {
	for _, o := range Fixtures() {
		s.NoError(s.Storer.Put(o))

		got, err := s.Storer.Object(o.ID())
		s.Require().NoError(err, "%s", o.Type())
		s.Equal(o.ID(), got.ID())
		s.Equal(o.Type(), got.Type())

		// the decoded object must hash back to its id
		id, err := object.Hash(got)
		s.NoError(err)
		s.Equal(o.ID(), id, "%s", o.Type())
	}
}

func (s *BaseStorageSuite) TestPutTwice() {
	o := Fixtures()[0]
	s.NoError(s.Storer.Put(o))
	s.NoError(s.Storer.Put(o))

	ok, err := s.Storer.Exists(o.ID())
	s.NoError(err)
	s.True(ok)
}

func (s *BaseStorageSuite) TestNotFound() {
	id := plumbing.ComputeID([]byte("missing"))

	_, err := s.Storer.Object(id)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)

	_, err = s.Storer.Tree(id)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)

	o, err := s.Storer.ObjectIfPresent(id)
	s.NoError(err)
	s.Nil(o)

	ok, err := s.Storer.Exists(id)
	s.NoError(err)
	s.False(ok)
}

func (s *BaseStorageSuite) TestTree() {
	fixtures := Fixtures()
	s.NoError(s.Storer.PutAll(fixtures))

	t, err := s.Storer.Tree(fixtures[3].ID())
	s.NoError(err)
	s.Equal(uint64(1), t.Size())
	s.Equal(1, t.TreeCount())
	s.Equal("roads", t.Trees()[0].Name)

	_, err = s.Storer.Tree(fixtures[0].ID())
	s.ErrorIs(err, plumbing.ErrInvalidType)

	t, err = s.Storer.Tree(object.EmptyTreeID)
	s.NoError(err)
	s.True(t.IsEmpty())
}

func (s *BaseStorageSuite) TestBucketTreeBounds() {
	fixtures := Fixtures()
	s.NoError(s.Storer.PutAll(fixtures))

	t, err := s.Storer.Tree(fixtures[4].ID())
	s.NoError(err)
	s.True(t.IsBucketed())

	b, ok := t.Bucket(4)
	s.True(ok)
	s.Require().NotNil(b.Bounds)
	s.Equal(orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{3, 4}}, *b.Bounds)
}

func (s *BaseStorageSuite) TestAll() {
	fixtures := Fixtures()
	s.NoError(s.Storer.PutAll(fixtures))

	ids := []plumbing.ObjectID{fixtures[2].ID(), plumbing.ComputeID([]byte("missing")), fixtures[0].ID()}
	iter, err := s.Storer.All(ids)
	s.NoError(err)

	found := map[plumbing.ObjectID]bool{}
	err = iter.ForEach(func(o object.RevObject) error {
		found[o.ID()] = true
		return nil
	})

	s.NoError(err)
	s.Equal(map[plumbing.ObjectID]bool{fixtures[2].ID(): true, fixtures[0].ID(): true}, found)
}
