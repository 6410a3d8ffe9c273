package object

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// FieldType is the type of a feature property value. Its tag is part of the
// canonical encoding of feature types and must never change.
type FieldType uint8

const (
	Null FieldType = iota
	Boolean
	Byte
	Short
	Integer
	Long
	Float
	Double
	String
	BooleanArray
	ByteArray
	ShortArray
	IntegerArray
	LongArray
	FloatArray
	DoubleArray
	StringArray
	Point
	LineString
	Polygon
	MultiPoint
	MultiLineString
	MultiPolygon
	GeometryCollection
	Geometry
	UUID
	BigInteger
	BigDecimal
	DateTime
	Date
	Time
	Timestamp
	Map
	Char
	CharArray
	Envelope2D

	// Unknown is returned for values no field type can represent.
	Unknown FieldType = 0xff
)

var fieldTypeNames = [...]string{
	"NULL", "BOOLEAN", "BYTE", "SHORT", "INTEGER", "LONG", "FLOAT", "DOUBLE",
	"STRING", "BOOLEAN_ARRAY", "BYTE_ARRAY", "SHORT_ARRAY", "INTEGER_ARRAY",
	"LONG_ARRAY", "FLOAT_ARRAY", "DOUBLE_ARRAY", "STRING_ARRAY", "POINT",
	"LINESTRING", "POLYGON", "MULTIPOINT", "MULTILINESTRING", "MULTIPOLYGON",
	"GEOMETRYCOLLECTION", "GEOMETRY", "UUID", "BIG_INTEGER", "BIG_DECIMAL",
	"DATETIME", "DATE", "TIME", "TIMESTAMP", "MAP", "CHAR", "CHAR_ARRAY",
	"ENVELOPE_2D",
}

// Tag returns the value written for t by the canonical encoding.
func (t FieldType) Tag() int32 {
	return int32(t)
}

// IsGeometry reports whether values of t are geometries.
func (t FieldType) IsGeometry() bool {
	return t >= Point && t <= Geometry
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	return t <= Envelope2D
}

func (t FieldType) String() string {
	if !t.Valid() {
		return "UNKNOWN"
	}

	return fieldTypeNames[t]
}

// FieldTypeFromTag is the inverse of FieldType.Tag.
func FieldTypeFromTag(tag int32) FieldType {
	t := FieldType(tag)
	if tag < 0 || !t.Valid() {
		return Unknown
	}

	return t
}

// Decimal is an arbitrary precision decimal number, Unscaled * 10^-Scale.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// FieldTypeOf returns the field type of a property value, or Unknown if v
// cannot be stored in a feature.
//
// A uint16 is a character, a time.Time is a timestamp with millisecond
// precision and an orb.Bound is a 2D envelope.
func FieldTypeOf(v any) FieldType {
	switch v.(type) {
	case nil:
		return Null
	case bool:
		return Boolean
	case int8, uint8:
		return Byte
	case int16:
		return Short
	case int32:
		return Integer
	case int, int64:
		return Long
	case float32:
		return Float
	case float64:
		return Double
	case string:
		return String
	case uint16:
		return Char
	case []bool:
		return BooleanArray
	case []byte, []int8:
		return ByteArray
	case []int16:
		return ShortArray
	case []int32:
		return IntegerArray
	case []int64, []int:
		return LongArray
	case []float32:
		return FloatArray
	case []float64:
		return DoubleArray
	case []string:
		return StringArray
	case []uint16:
		return CharArray
	case orb.Point:
		return Point
	case orb.LineString, orb.Ring:
		return LineString
	case orb.Polygon:
		return Polygon
	case orb.MultiPoint:
		return MultiPoint
	case orb.MultiLineString:
		return MultiLineString
	case orb.MultiPolygon:
		return MultiPolygon
	case orb.Collection:
		return GeometryCollection
	case uuid.UUID:
		return UUID
	case *big.Int:
		return BigInteger
	case Decimal:
		return BigDecimal
	case time.Time:
		return Timestamp
	case map[string]any:
		return Map
	case orb.Bound:
		return Envelope2D
	default:
		return Unknown
	}
}
