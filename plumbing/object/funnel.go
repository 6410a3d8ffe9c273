package object

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/format/funnel"
	"github.com/go-geogit/geogit/plumbing/hash"
)

// coordinateScale is the precision coordinates are rounded to before
// hashing, 9 decimal digits.
const coordinateScale = 1e9

func computeID(fn func(s *funnel.Sink) error) (plumbing.ObjectID, error) {
	h := hash.New()
	s := funnel.NewSink(h)
	if err := fn(s); err != nil {
		return plumbing.ZeroID, err
	}

	if err := s.Err(); err != nil {
		return plumbing.ZeroID, err
	}

	var id plumbing.ObjectID
	copy(id[:], h.Sum(nil))
	return id, nil
}

func putType(s *funnel.Sink, t plumbing.ObjectType) {
	s.PutInt(t.Code())
}

func putID(s *funnel.Sink, id plumbing.ObjectID) {
	s.PutBytes(id[:])
}

func putOptionalString(s *funnel.Sink, v string) {
	if v == "" {
		s.PutNull()
		return
	}
	s.PutString(v)
}

func putPerson(s *funnel.Sink, p *Person) {
	if p == nil {
		s.PutNull()
		return
	}

	putOptionalString(s, p.Name)
	putOptionalString(s, p.Email)
	s.PutLong(p.Timestamp)
	s.PutInt(p.TimeZoneOffset)
}

func putName(s *funnel.Sink, n Name) {
	putOptionalString(s, n.Namespace)
	s.PutString(n.Local)
}

func putNode(s *funnel.Sink, n Node) error {
	putType(s, n.Type)
	s.PutString(n.Name)
	putID(s, n.ObjectID)
	putID(s, n.MetadataID)
	if len(n.ExtraData) > 0 {
		return putMap(s, n.ExtraData)
	}

	return nil
}

func hashCommit(tree plumbing.ObjectID, parents []plumbing.ObjectID, message string, author, committer *Person) (plumbing.ObjectID, error) {
	return computeID(func(s *funnel.Sink) error {
		putType(s, plumbing.CommitObject)
		// a NULL id precedes the tree id in every commit encoding
		putID(s, plumbing.ZeroID)
		putID(s, tree)
		for _, p := range parents {
			putID(s, p)
		}

		s.PutNullableString(&message)
		putPerson(s, author)
		putPerson(s, committer)
		return nil
	})
}

// hashTree expects nodes in canonical order and buckets sorted by index.
func hashTree(trees, features []Node, buckets []Bucket) (plumbing.ObjectID, error) {
	return computeID(func(s *funnel.Sink) error {
		putType(s, plumbing.TreeObject)
		for _, n := range trees {
			if err := putNode(s, n); err != nil {
				return err
			}
		}

		for _, n := range features {
			if err := putNode(s, n); err != nil {
				return err
			}
		}

		for _, b := range buckets {
			s.PutInt(int32(b.Index))
			putID(s, b.ObjectID)
		}

		return nil
	})
}

func hashFeature(values []any) (plumbing.ObjectID, error) {
	return computeID(func(s *funnel.Sink) error {
		putType(s, plumbing.FeatureObject)
		for _, v := range values {
			if err := putValue(s, v); err != nil {
				return err
			}
		}

		return nil
	})
}

func hashFeatureType(name Name, descriptors []PropertyDescriptor) (plumbing.ObjectID, error) {
	return computeID(func(s *funnel.Sink) error {
		putType(s, plumbing.FeatureTypeObject)
		putName(s, name)
		for _, d := range descriptors {
			putName(s, d.Name)
			putName(s, d.TypeName)
			s.PutInt(d.Binding.Tag())
			s.PutBool(d.Nillable)
			s.PutInt(d.MaxOccurs)
			s.PutInt(d.MinOccurs)
			if d.IsGeometry() {
				putOptionalString(s, d.CRS)
			}
		}

		return nil
	})
}

func hashTag(name string, commit plumbing.ObjectID, message string, tagger *Person) (plumbing.ObjectID, error) {
	return computeID(func(s *funnel.Sink) error {
		putType(s, plumbing.TagObject)
		putID(s, commit)
		s.PutString(name)
		s.PutString(message)
		putPerson(s, tagger)
		return nil
	})
}

// HashValue returns the id of a single property value.
func HashValue(v any) (plumbing.ObjectID, error) {
	return computeID(func(s *funnel.Sink) error {
		return putValue(s, v)
	})
}

func putValue(s *funnel.Sink, v any) error {
	switch v := v.(type) {
	case nil:
		s.PutNull()
	case bool:
		s.PutBool(v)
	case int8:
		s.PutByte(byte(v))
	case uint8:
		s.PutByte(v)
	case int16:
		// shorts have always been hashed through their low byte
		s.PutShort(int16(int8(v)))
	case uint16:
		s.PutChar(v)
	case int32:
		s.PutInt(v)
	case int:
		s.PutLong(int64(v))
	case int64:
		s.PutLong(v)
	case float32:
		s.PutFloat(v)
	case float64:
		s.PutDouble(v)
	case string:
		s.PutString(v)
	case []bool:
		return putArray(s, v)
	case []byte:
		return putArray(s, v)
	case []int8:
		return putArray(s, v)
	case []int16:
		return putArray(s, v)
	case []int32:
		return putArray(s, v)
	case []int64:
		return putArray(s, v)
	case []int:
		return putArray(s, v)
	case []float32:
		return putArray(s, v)
	case []float64:
		return putArray(s, v)
	case []string:
		return putArray(s, v)
	case []uint16:
		return putArray(s, v)
	case orb.Bound:
		s.PutDouble(v.Min[0])
		s.PutDouble(v.Max[0])
		s.PutDouble(v.Min[1])
		s.PutDouble(v.Max[1])
	case orb.Geometry:
		return putGeometry(s, v)
	case uuid.UUID:
		s.PutBytes(reverse(v[0:8]))
		s.PutBytes(reverse(v[8:16]))
	case *big.Int:
		if v == nil {
			s.PutNull()
			return nil
		}
		s.PutBytes(TwosComplement(v))
	case Decimal:
		u := v.Unscaled
		if u == nil {
			u = new(big.Int)
		}
		s.PutBytes(TwosComplement(u))
		s.PutInt(v.Scale)
	case time.Time:
		s.PutLong(v.UnixMilli())
	case map[string]any:
		return putMap(s, v)
	default:
		return plumbing.NewPermanentError(fmt.Errorf("%w: %T", plumbing.ErrUnsupportedValueType, v))
	}

	return nil
}

func putArray[T any](s *funnel.Sink, values []T) error {
	s.PutInt(int32(len(values)))
	for _, v := range values {
		if err := putValue(s, v); err != nil {
			return err
		}
	}

	return nil
}

func putMap(s *funnel.Sink, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s.PutString(k)
		if err := putValue(s, m[k]); err != nil {
			return err
		}
	}

	return nil
}

// reverse returns b in reverse order, turning big-endian bytes into the
// little-endian order longs are written in.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}

	return out
}

func round(c float64) float64 {
	return math.Floor(c*coordinateScale+0.5) / coordinateScale
}

func putPoint(s *funnel.Sink, p orb.Point) {
	s.PutDouble(round(p[0]))
	s.PutDouble(round(p[1]))
}

// putGeometry writes every coordinate of g in order. The kind of geometry
// is not part of the encoding.
func putGeometry(s *funnel.Sink, g orb.Geometry) error {
	switch g := g.(type) {
	case orb.Point:
		putPoint(s, g)
	case orb.MultiPoint:
		for _, p := range g {
			putPoint(s, p)
		}
	case orb.LineString:
		for _, p := range g {
			putPoint(s, p)
		}
	case orb.Ring:
		for _, p := range g {
			putPoint(s, p)
		}
	case orb.Polygon:
		for _, r := range g {
			if err := putGeometry(s, r); err != nil {
				return err
			}
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if err := putGeometry(s, ls); err != nil {
				return err
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if err := putGeometry(s, p); err != nil {
				return err
			}
		}
	case orb.Collection:
		for _, c := range g {
			if err := putGeometry(s, c); err != nil {
				return err
			}
		}
	default:
		return plumbing.NewPermanentError(fmt.Errorf("%w: geometry %T", plumbing.ErrUnsupportedValueType, g))
	}

	return nil
}

// TwosComplement returns the minimal big-endian two's complement
// representation of x, always at least one byte long.
func TwosComplement(x *big.Int) []byte {
	switch x.Sign() {
	case 0:
		return []byte{0}
	case 1:
		b := x.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}

	// -x-1 has the same magnitude bits as x, inverted
	y := new(big.Int).Neg(x)
	y.Sub(y, big.NewInt(1))
	b := y.Bytes()
	for i := range b {
		b[i] = ^b[i]
	}

	if len(b) == 0 || b[0]&0x80 == 0 {
		b = append([]byte{0xff}, b...)
	}

	return b
}

// FromTwosComplement is the inverse of TwosComplement.
func FromTwosComplement(b []byte) *big.Int {
	x := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}

	return x
}
