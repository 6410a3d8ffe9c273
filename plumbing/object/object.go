// Package object contains the immutable, content addressed objects of a
// repository: commits, trees, features, feature types and tags, along with
// the nodes and buckets trees are made of.
//
// Every object id is the SHA-1 of the object's canonical encoding, computed
// when the object is created. Two objects with the same logical content
// always have the same id.
package object

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
)

// RevObject is an immutable, typed unit of content.
type RevObject interface {
	ID() plumbing.ObjectID
	Type() plumbing.ObjectType
}

// Bounded is implemented by everything carrying an optional spatial extent:
// nodes, node refs and buckets.
type Bounded interface {
	// Bound returns the extent and whether there is one.
	Bound() (orb.Bound, bool)
}

// Hash computes the id of o from its canonical encoding. For objects built
// through this package the result always equals o.ID().
func Hash(o RevObject) (plumbing.ObjectID, error) {
	switch o := o.(type) {
	case *Commit:
		return hashCommit(o.tree, o.parents, o.message, o.author, o.committer)
	case *Tree:
		return hashTree(o.trees, o.features, o.buckets)
	case *Feature:
		return hashFeature(o.values)
	case *FeatureType:
		return hashFeatureType(o.name, o.descriptors)
	case *Tag:
		return hashTag(o.name, o.commit, o.message, o.tagger)
	default:
		return plumbing.ZeroID, fmt.Errorf("%w: %T", plumbing.ErrInvalidType, o)
	}
}

func intersects(b Bounded, query orb.Bound) bool {
	bound, ok := b.Bound()
	if !ok {
		return false
	}

	return bound.Intersects(query)
}

// Intersects reports whether b has an extent intersecting query.
func Intersects(b Bounded, query orb.Bound) bool {
	if b == nil {
		return false
	}

	return intersects(b, query)
}

// ExpandBound returns the union of acc and the extent of b. It returns nil
// while neither holds an extent.
func ExpandBound(acc *orb.Bound, b Bounded) *orb.Bound {
	if b == nil {
		return acc
	}

	bound, ok := b.Bound()
	if !ok {
		return acc
	}

	if acc == nil {
		return &bound
	}

	u := acc.Union(bound)
	return &u
}
