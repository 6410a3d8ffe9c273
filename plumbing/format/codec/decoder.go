package codec

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

// decoder keeps the first read error; every read after it returns the
// zero value.
type decoder struct {
	d   *msgpack.Decoder
	err error
}

func (d *decoder) corrupt(err error) error {
	return fmt.Errorf("%w: %w", plumbing.ErrCorruptObject, err)
}

func (d *decoder) set(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) int() int64 {
	if d.err != nil {
		return 0
	}

	v, err := d.d.DecodeInt64()
	d.err = err
	return v
}

func (d *decoder) uint() uint64 {
	if d.err != nil {
		return 0
	}

	v, err := d.d.DecodeUint64()
	d.err = err
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}

	v, err := d.d.DecodeBool()
	d.err = err
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}

	v, err := d.d.DecodeFloat32()
	d.err = err
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}

	v, err := d.d.DecodeFloat64()
	d.err = err
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}

	v, err := d.d.DecodeString()
	d.err = err
	return v
}

func (d *decoder) bytes() []byte {
	if d.err != nil {
		return nil
	}

	v, err := d.d.DecodeBytes()
	d.err = err
	return v
}

// len reads the length of a sequence, failing on nil or negative lengths.
func (d *decoder) len() int {
	if d.err != nil {
		return 0
	}

	n, err := d.d.DecodeArrayLen()
	if err != nil {
		d.err = err
		return 0
	}

	if n < 0 {
		d.err = fmt.Errorf("invalid length %d", n)
		return 0
	}

	return n
}

func capacity(n int) int {
	return min(n, maxPrealloc)
}

func (d *decoder) id() plumbing.ObjectID {
	b := d.bytes()
	if d.err != nil {
		return plumbing.ZeroID
	}

	id, ok := plumbing.FromBytes(b)
	if !ok {
		d.set(fmt.Errorf("invalid id of %d bytes", len(b)))
	}

	return id
}

func (d *decoder) bound() *orb.Bound {
	if !d.bool() {
		return nil
	}

	b := orb.Bound{}
	b.Min[0] = d.float64()
	b.Min[1] = d.float64()
	b.Max[0] = d.float64()
	b.Max[1] = d.float64()
	return &b
}

func (d *decoder) person() *object.Person {
	if !d.bool() {
		return nil
	}

	return &object.Person{
		Name:           d.string(),
		Email:          d.string(),
		Timestamp:      d.int(),
		TimeZoneOffset: int32(d.int()),
	}
}

func (d *decoder) name() object.Name {
	return object.Name{Namespace: d.string(), Local: d.string()}
}

func (d *decoder) feature() (object.RevObject, error) {
	n := d.len()
	values := make([]any, 0, capacity(n))
	for i := 0; i < n && d.err == nil; i++ {
		values = append(values, d.value())
	}

	if d.err != nil {
		return nil, nil
	}

	return object.NewFeature(values...)
}

func (d *decoder) tree() (object.RevObject, error) {
	size := d.uint()
	treeCount := int(d.int())
	trees := d.nodes()
	features := d.nodes()

	n := d.len()
	var buckets []object.Bucket
	for i := 0; i < n && d.err == nil; i++ {
		buckets = append(buckets, object.Bucket{
			Index:    int(d.int()),
			ObjectID: d.id(),
			Bounds:   d.bound(),
		})
	}

	if d.err != nil {
		return nil, nil
	}

	if len(buckets) > 0 {
		if len(trees) > 0 || len(features) > 0 {
			return nil, fmt.Errorf("%w: tree holds both nodes and buckets", plumbing.ErrCorruptTree)
		}

		return object.NewBucketTree(buckets, size, treeCount)
	}

	return object.NewLeafTree(features, trees, size, treeCount)
}

func (d *decoder) nodes() []object.Node {
	n := d.len()
	nodes := make([]object.Node, 0, capacity(n))
	for i := 0; i < n && d.err == nil; i++ {
		node := object.Node{Name: d.string()}
		t, err := plumbing.ObjectTypeFromCode(int32(d.int()))
		d.set(err)
		node.Type = t
		node.ObjectID = d.id()
		node.MetadataID = d.id()
		node.Bounds = d.bound()
		if extra := d.valueMap(); len(extra) > 0 {
			node.ExtraData = extra
		}

		nodes = append(nodes, node)
	}

	return nodes
}

func (d *decoder) featureType() (object.RevObject, error) {
	name := d.name()

	n := d.len()
	descriptors := make([]object.PropertyDescriptor, 0, capacity(n))
	for i := 0; i < n && d.err == nil; i++ {
		descriptors = append(descriptors, object.PropertyDescriptor{
			Name:      d.name(),
			TypeName:  d.name(),
			Binding:   object.FieldType(d.uint()),
			Nillable:  d.bool(),
			MinOccurs: int32(d.int()),
			MaxOccurs: int32(d.int()),
			CRS:       d.string(),
		})
	}

	if d.err != nil {
		return nil, nil
	}

	return object.NewFeatureType(name, descriptors)
}

func (d *decoder) commit() (object.RevObject, error) {
	tree := d.id()

	n := d.len()
	parents := make([]plumbing.ObjectID, 0, capacity(n))
	for i := 0; i < n && d.err == nil; i++ {
		parents = append(parents, d.id())
	}

	message := d.string()
	author := d.person()
	committer := d.person()
	if d.err != nil {
		return nil, nil
	}

	return object.NewCommit(tree, parents, author, committer, message)
}

func (d *decoder) tag() (object.RevObject, error) {
	name := d.string()
	commit := d.id()
	message := d.string()
	tagger := d.person()
	if d.err != nil {
		return nil, nil
	}

	return object.NewTag(name, commit, message, tagger)
}

func (d *decoder) valueMap() map[string]any {
	n := d.len()
	m := make(map[string]any, capacity(n))
	for i := 0; i < n && d.err == nil; i++ {
		k := d.string()
		m[k] = d.value()
	}

	return m
}

// value reads a tagged value. Values that share a field type decode to a
// single Go type, which always hashes like the value that was encoded.
func (d *decoder) value() any {
	t := object.FieldType(d.uint())
	if d.err != nil {
		return nil
	}

	switch t {
	case object.Null:
		return nil
	case object.Boolean:
		return d.bool()
	case object.Byte:
		return int8(d.int())
	case object.Short:
		return int16(d.int())
	case object.Integer:
		return int32(d.int())
	case object.Long:
		return d.int()
	case object.Char:
		return uint16(d.uint())
	case object.Float:
		return d.float32()
	case object.Double:
		return d.float64()
	case object.String:
		return d.string()
	case object.BooleanArray:
		return decodeSlice(d, d.bool)
	case object.ByteArray:
		b := d.bytes()
		if b == nil {
			b = []byte{}
		}
		return b
	case object.ShortArray:
		return decodeSlice(d, func() int16 { return int16(d.int()) })
	case object.IntegerArray:
		return decodeSlice(d, func() int32 { return int32(d.int()) })
	case object.LongArray:
		return decodeSlice(d, d.int)
	case object.CharArray:
		return decodeSlice(d, func() uint16 { return uint16(d.uint()) })
	case object.FloatArray:
		return decodeSlice(d, d.float32)
	case object.DoubleArray:
		return decodeSlice(d, d.float64)
	case object.StringArray:
		return decodeSlice(d, d.string)
	case object.Envelope2D:
		b := d.bound()
		if b == nil {
			d.set(fmt.Errorf("missing envelope"))
			return nil
		}
		return *b
	case object.UUID:
		var u uuid.UUID
		b := d.bytes()
		if d.err == nil && len(b) != len(u) {
			d.set(fmt.Errorf("invalid uuid of %d bytes", len(b)))
		}
		copy(u[:], b)
		return u
	case object.BigInteger:
		if !d.bool() {
			return (*big.Int)(nil)
		}
		return object.FromTwosComplement(d.bytes())
	case object.BigDecimal:
		return object.Decimal{Unscaled: object.FromTwosComplement(d.bytes()), Scale: int32(d.int())}
	case object.Timestamp, object.DateTime, object.Date, object.Time:
		return time.UnixMilli(d.int()).UTC()
	case object.Map:
		return d.valueMap()
	}

	if t.IsGeometry() {
		return d.geometry(t)
	}

	d.set(fmt.Errorf("unknown field type tag %d", t))
	return nil
}

func decodeSlice[T any](d *decoder, next func() T) []T {
	n := d.len()
	out := make([]T, 0, capacity(n))
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, next())
	}

	return out
}

func (d *decoder) point() orb.Point {
	return orb.Point{d.float64(), d.float64()}
}

func (d *decoder) points() []orb.Point {
	return decodeSlice(d, d.point)
}

func (d *decoder) polygon() orb.Polygon {
	return decodeSlice(d, func() orb.Ring { return d.points() })
}

func (d *decoder) geometry(t object.FieldType) orb.Geometry {
	switch t {
	case object.Point:
		return d.point()
	case object.MultiPoint:
		return orb.MultiPoint(d.points())
	case object.LineString:
		return orb.LineString(d.points())
	case object.Polygon:
		return d.polygon()
	case object.MultiLineString:
		return orb.MultiLineString(decodeSlice(d, func() orb.LineString { return d.points() }))
	case object.MultiPolygon:
		return orb.MultiPolygon(decodeSlice(d, d.polygon))
	case object.GeometryCollection:
		return orb.Collection(decodeSlice(d, func() orb.Geometry {
			return d.geometry(object.FieldType(d.uint()))
		}))
	}

	d.set(fmt.Errorf("unknown geometry tag %d", t))
	return nil
}
