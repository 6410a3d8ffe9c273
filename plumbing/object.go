// Package plumbing implements the core types used by geogit: object ids,
// object types and the errors shared by every layer.
package plumbing

import (
	"errors"
)

var (
	// ErrObjectNotFound is returned when an object is not found.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidType is returned when an invalid object type is provided.
	ErrInvalidType = errors.New("invalid object type")
	// ErrUnsupportedValueType is returned when a value cannot be hashed.
	ErrUnsupportedValueType = errors.New("unsupported value type")
	// ErrCorruptTree is returned when a tree is internally inconsistent.
	ErrCorruptTree = errors.New("corrupt tree")
	// ErrCorruptObject is returned when a stored object cannot be decoded
	// or does not hash to the id it is stored under.
	ErrCorruptObject = errors.New("corrupt object")
)

// ObjectType is the type of a RevObject. Code returns the value used by the
// canonical encoding.
type ObjectType int8

const (
	InvalidObject ObjectType = iota
	CommitObject
	TreeObject
	FeatureObject
	TagObject
	FeatureTypeObject
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case FeatureObject:
		return "feature"
	case TagObject:
		return "tag"
	case FeatureTypeObject:
		return "featuretype"
	default:
		return "unknown"
	}
}

// Code returns the integer written by the canonical encoding for t.
func (t ObjectType) Code() int32 {
	return int32(t) - 1
}

// Bytes returns the name of the type as a byte slice.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid returns true if t is a valid ObjectType.
func (t ObjectType) Valid() bool {
	return t >= CommitObject && t <= FeatureTypeObject
}

// ParseObjectType parses a string representation of ObjectType. It returns
// an error on parse failure.
func ParseObjectType(value string) (typ ObjectType, err error) {
	switch value {
	case "commit":
		typ = CommitObject
	case "tree":
		typ = TreeObject
	case "feature":
		typ = FeatureObject
	case "tag":
		typ = TagObject
	case "featuretype":
		typ = FeatureTypeObject
	default:
		err = ErrInvalidType
	}
	return
}

// ObjectTypeFromCode is the inverse of ObjectType.Code.
func ObjectTypeFromCode(code int32) (ObjectType, error) {
	t := ObjectType(code + 1)
	if !t.Valid() {
		return InvalidObject, ErrInvalidType
	}

	return t, nil
}
