package object

import (
	"fmt"
	"slices"

	"github.com/go-geogit/geogit/plumbing"
)

// Name is a qualified name. An empty Namespace means there is none.
type Name struct {
	Namespace string
	Local     string
}

func (n Name) String() string {
	if n.Namespace == "" {
		return n.Local
	}

	return n.Namespace + ":" + n.Local
}

// PropertyDescriptor describes one property of a feature type.
type PropertyDescriptor struct {
	Name      Name
	TypeName  Name
	Binding   FieldType
	Nillable  bool
	MinOccurs int32
	MaxOccurs int32
	// CRS is the coordinate reference system identifier of a geometry
	// property, for instance "EPSG:4326". It is ignored for other bindings.
	CRS string
}

// IsGeometry reports whether the property holds geometries.
func (d PropertyDescriptor) IsGeometry() bool {
	return d.Binding.IsGeometry()
}

// FeatureType is the schema shared by the features of a collection.
type FeatureType struct {
	id          plumbing.ObjectID
	name        Name
	descriptors []PropertyDescriptor
}

// NewFeatureType returns a feature type with the given properties.
func NewFeatureType(name Name, descriptors []PropertyDescriptor) (*FeatureType, error) {
	for _, d := range descriptors {
		if !d.Binding.Valid() {
			return nil, fmt.Errorf("%w: property %s has binding %s", plumbing.ErrUnsupportedValueType, d.Name, d.Binding)
		}
	}

	ft := &FeatureType{name: name, descriptors: slices.Clone(descriptors)}
	id, err := hashFeatureType(ft.name, ft.descriptors)
	if err != nil {
		return nil, err
	}

	ft.id = id
	return ft, nil
}

// ID returns the object id of the feature type.
func (ft *FeatureType) ID() plumbing.ObjectID {
	return ft.id
}

// Type returns the object type of the feature type.
func (ft *FeatureType) Type() plumbing.ObjectType {
	return plumbing.FeatureTypeObject
}

// Name returns the name of the feature type.
func (ft *FeatureType) Name() Name {
	return ft.name
}

// Descriptors returns the property descriptors in order.
func (ft *FeatureType) Descriptors() []PropertyDescriptor {
	return ft.descriptors
}

// Find returns the position of the property with the given local name, or
// -1.
func (ft *FeatureType) Find(local string) int {
	return slices.IndexFunc(ft.descriptors, func(d PropertyDescriptor) bool {
		return d.Name.Local == local
	})
}

// GeometryDescriptor returns the first geometry property.
func (ft *FeatureType) GeometryDescriptor() (PropertyDescriptor, bool) {
	for _, d := range ft.descriptors {
		if d.IsGeometry() {
			return d, true
		}
	}

	return PropertyDescriptor{}, false
}

// CRS returns the coordinate reference system of the geometry property, or
// "" if there is none.
func (ft *FeatureType) CRS() string {
	d, ok := ft.GeometryDescriptor()
	if !ok {
		return ""
	}

	return d.CRS
}

func (ft *FeatureType) String() string {
	return fmt.Sprintf("featuretype %s %s", ft.id.Short(), ft.name)
}
