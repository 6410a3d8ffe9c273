// Package codec implements the storage format of objects: a msgpack
// stream holding the object type followed by its fields. Property values
// are written with their FieldType tag so that decoding restores values
// that hash to the same id.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

// maxPrealloc bounds the capacity allocated ahead of decoding a length
// prefixed sequence.
const maxPrealloc = 1024

// Marshal returns the encoding of o.
func Marshal(o object.RevObject) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, o); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes an object encoded by Marshal.
func Unmarshal(b []byte) (object.RevObject, error) {
	return Decode(bytes.NewReader(b))
}

// Encode writes the encoding of o to w.
func Encode(w io.Writer, o object.RevObject) error {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(w)

	e := &encoder{e: enc}
	e.int(int64(o.Type().Code()))

	switch o := o.(type) {
	case *object.Feature:
		e.values(o.Values())
	case *object.Tree:
		e.tree(o)
	case *object.FeatureType:
		e.featureType(o)
	case *object.Commit:
		e.commit(o)
	case *object.Tag:
		e.tag(o)
	default:
		return fmt.Errorf("%w: %T", plumbing.ErrInvalidType, o)
	}

	return e.err
}

// Decode reads one object from r. The id of the returned object is
// computed from its content.
func Decode(r io.Reader) (object.RevObject, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)

	d := &decoder{d: dec}
	t, err := plumbing.ObjectTypeFromCode(int32(d.int()))
	if d.err != nil {
		return nil, d.corrupt(d.err)
	}

	if err != nil {
		return nil, d.corrupt(err)
	}

	var o object.RevObject
	switch t {
	case plumbing.FeatureObject:
		o, err = d.feature()
	case plumbing.TreeObject:
		o, err = d.tree()
	case plumbing.FeatureTypeObject:
		o, err = d.featureType()
	case plumbing.CommitObject:
		o, err = d.commit()
	case plumbing.TagObject:
		o, err = d.tag()
	}

	if d.err != nil {
		return nil, d.corrupt(d.err)
	}

	if err != nil {
		return nil, err
	}

	return o, nil
}

type encoder struct {
	e   *msgpack.Encoder
	err error
}

func (e *encoder) set(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) int(v int64) {
	if e.err == nil {
		e.err = e.e.EncodeInt(v)
	}
}

func (e *encoder) uint(v uint64) {
	if e.err == nil {
		e.err = e.e.EncodeUint(v)
	}
}

func (e *encoder) bool(v bool) {
	if e.err == nil {
		e.err = e.e.EncodeBool(v)
	}
}

func (e *encoder) float32(v float32) {
	if e.err == nil {
		e.err = e.e.EncodeFloat32(v)
	}
}

func (e *encoder) float64(v float64) {
	if e.err == nil {
		e.err = e.e.EncodeFloat64(v)
	}
}

func (e *encoder) string(v string) {
	if e.err == nil {
		e.err = e.e.EncodeString(v)
	}
}

func (e *encoder) bytes(v []byte) {
	if e.err == nil {
		e.err = e.e.EncodeBytes(v)
	}
}

func (e *encoder) len(n int) {
	if e.err == nil {
		e.err = e.e.EncodeArrayLen(n)
	}
}

func (e *encoder) id(id plumbing.ObjectID) {
	e.bytes(id[:])
}

func (e *encoder) bound(b *orb.Bound) {
	e.bool(b != nil)
	if b == nil {
		return
	}

	e.float64(b.Min[0])
	e.float64(b.Min[1])
	e.float64(b.Max[0])
	e.float64(b.Max[1])
}

func (e *encoder) person(p *object.Person) {
	e.bool(p != nil)
	if p == nil {
		return
	}

	e.string(p.Name)
	e.string(p.Email)
	e.int(p.Timestamp)
	e.int(int64(p.TimeZoneOffset))
}

func (e *encoder) name(n object.Name) {
	e.string(n.Namespace)
	e.string(n.Local)
}

func (e *encoder) tree(t *object.Tree) {
	e.uint(t.Size())
	e.int(int64(t.TreeCount()))
	e.nodes(t.Trees())
	e.nodes(t.Features())

	buckets := t.Buckets()
	e.len(len(buckets))
	for i := range buckets {
		e.int(int64(buckets[i].Index))
		e.id(buckets[i].ObjectID)
		e.bound(buckets[i].Bounds)
	}
}

func (e *encoder) nodes(nodes []object.Node) {
	e.len(len(nodes))
	for _, n := range nodes {
		e.string(n.Name)
		e.int(int64(n.Type.Code()))
		e.id(n.ObjectID)
		e.id(n.MetadataID)
		e.bound(n.Bounds)
		e.valueMap(n.ExtraData)
	}
}

func (e *encoder) featureType(ft *object.FeatureType) {
	e.name(ft.Name())

	descriptors := ft.Descriptors()
	e.len(len(descriptors))
	for _, d := range descriptors {
		e.name(d.Name)
		e.name(d.TypeName)
		e.uint(uint64(d.Binding))
		e.bool(d.Nillable)
		e.int(int64(d.MinOccurs))
		e.int(int64(d.MaxOccurs))
		e.string(d.CRS)
	}
}

func (e *encoder) commit(c *object.Commit) {
	e.id(c.TreeID())
	e.len(len(c.Parents()))
	for _, p := range c.Parents() {
		e.id(p)
	}

	e.string(c.Message())
	e.person(c.Author())
	e.person(c.Committer())
}

func (e *encoder) tag(t *object.Tag) {
	e.string(t.Name())
	e.id(t.CommitID())
	e.string(t.Message())
	e.person(t.Tagger())
}

func (e *encoder) values(values []any) {
	e.len(len(values))
	for _, v := range values {
		e.value(v)
	}
}

func (e *encoder) valueMap(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.len(len(keys))
	for _, k := range keys {
		e.string(k)
		e.value(m[k])
	}
}

// value writes the FieldType tag of v followed by its payload.
func (e *encoder) value(v any) {
	t := object.FieldTypeOf(v)
	if t == object.Unknown {
		e.set(plumbing.NewPermanentError(fmt.Errorf("%w: %T", plumbing.ErrUnsupportedValueType, v)))
		return
	}

	e.uint(uint64(t))
	switch v := v.(type) {
	case nil:
	case bool:
		e.bool(v)
	case int8:
		e.int(int64(v))
	case uint8:
		e.int(int64(int8(v)))
	case int16:
		e.int(int64(v))
	case int32:
		e.int(int64(v))
	case int:
		e.int(int64(v))
	case int64:
		e.int(v)
	case uint16:
		e.uint(uint64(v))
	case float32:
		e.float32(v)
	case float64:
		e.float64(v)
	case string:
		e.string(v)
	case []bool:
		e.len(len(v))
		for _, x := range v {
			e.bool(x)
		}
	case []byte:
		e.bytes(v)
	case []int8:
		b := make([]byte, len(v))
		for i, x := range v {
			b[i] = byte(x)
		}
		e.bytes(b)
	case []int16:
		encodeInts(e, v)
	case []int32:
		encodeInts(e, v)
	case []int64:
		encodeInts(e, v)
	case []int:
		encodeInts(e, v)
	case []uint16:
		e.len(len(v))
		for _, x := range v {
			e.uint(uint64(x))
		}
	case []float32:
		e.len(len(v))
		for _, x := range v {
			e.float32(x)
		}
	case []float64:
		e.len(len(v))
		for _, x := range v {
			e.float64(x)
		}
	case []string:
		e.len(len(v))
		for _, x := range v {
			e.string(x)
		}
	case orb.Bound:
		e.bound(&v)
	case orb.Geometry:
		e.geometry(v)
	case uuid.UUID:
		e.bytes(v[:])
	case *big.Int:
		e.bool(v != nil)
		if v != nil {
			e.bytes(object.TwosComplement(v))
		}
	case object.Decimal:
		u := v.Unscaled
		if u == nil {
			u = new(big.Int)
		}
		e.bytes(object.TwosComplement(u))
		e.int(int64(v.Scale))
	case time.Time:
		e.int(v.UnixMilli())
	case map[string]any:
		e.valueMap(v)
	}
}

func encodeInts[T int | int16 | int32 | int64](e *encoder, v []T) {
	e.len(len(v))
	for _, x := range v {
		e.int(int64(x))
	}
}

func (e *encoder) points(ps []orb.Point) {
	e.len(len(ps))
	for _, p := range ps {
		e.float64(p[0])
		e.float64(p[1])
	}
}

func (e *encoder) geometry(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		e.float64(g[0])
		e.float64(g[1])
	case orb.MultiPoint:
		e.points(g)
	case orb.LineString:
		e.points(g)
	case orb.Ring:
		e.points(g)
	case orb.Polygon:
		e.len(len(g))
		for _, r := range g {
			e.points(r)
		}
	case orb.MultiLineString:
		e.len(len(g))
		for _, ls := range g {
			e.points(ls)
		}
	case orb.MultiPolygon:
		e.len(len(g))
		for _, p := range g {
			e.geometry(p)
		}
	case orb.Collection:
		e.len(len(g))
		for _, c := range g {
			t := object.FieldTypeOf(c)
			if !t.IsGeometry() {
				e.set(plumbing.NewPermanentError(fmt.Errorf("%w: geometry %T", plumbing.ErrUnsupportedValueType, c)))
				return
			}

			e.uint(uint64(t))
			e.geometry(c)
		}
	default:
		e.set(plumbing.NewPermanentError(fmt.Errorf("%w: geometry %T", plumbing.ErrUnsupportedValueType, g)))
	}
}
