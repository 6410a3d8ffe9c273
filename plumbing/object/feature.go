package object

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
)

// Feature is a record: an ordered list of property values. The meaning of
// each value is given by the descriptor at the same position of the
// feature type.
type Feature struct {
	id     plumbing.ObjectID
	values []any
}

// NewFeature returns a feature holding values. It fails with
// plumbing.ErrUnsupportedValueType if any value has no FieldType.
func NewFeature(values ...any) (*Feature, error) {
	f := &Feature{values: slices.Clone(values)}

	id, err := hashFeature(f.values)
	if err != nil {
		return nil, err
	}

	f.id = id
	return f, nil
}

// ID returns the object id of the feature.
func (f *Feature) ID() plumbing.ObjectID {
	return f.id
}

// Type returns the object type of the feature.
func (f *Feature) Type() plumbing.ObjectType {
	return plumbing.FeatureObject
}

// Len returns the number of values.
func (f *Feature) Len() int {
	return len(f.values)
}

// Value returns the value at index i.
func (f *Feature) Value(i int) any {
	return f.values[i]
}

// Values returns a copy of every value.
func (f *Feature) Values() []any {
	return slices.Clone(f.values)
}

// Bounds returns the union of the extents of every geometry value, or nil
// if the feature has none.
func (f *Feature) Bounds() *orb.Bound {
	var acc *orb.Bound
	for _, v := range f.values {
		g, ok := v.(orb.Geometry)
		if !ok || g == nil {
			continue
		}

		b := g.Bound()
		if acc == nil {
			acc = &b
			continue
		}

		u := acc.Union(b)
		acc = &u
	}

	return acc
}

func (f *Feature) String() string {
	return fmt.Sprintf("feature %s %v", f.id.Short(), f.values)
}
