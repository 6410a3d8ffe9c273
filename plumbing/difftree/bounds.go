package difftree

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/cache"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
)

// transformCacheSize is the number of feature types whose transform is
// kept by a Transforms.
const transformCacheSize = 128

// Transform reprojects bounds from one coordinate reference system to
// another.
type Transform interface {
	Transform(b orb.Bound) (orb.Bound, error)
}

// TransformFunc adapts a function to a Transform.
type TransformFunc func(orb.Bound) (orb.Bound, error)

func (f TransformFunc) Transform(b orb.Bound) (orb.Bound, error) {
	return f(b)
}

// IdentityTransform returns its input.
var IdentityTransform Transform = TransformFunc(func(b orb.Bound) (orb.Bound, error) {
	return b, nil
})

// TransformFactory builds the transform between two coordinate reference
// systems, named as in PropertyDescriptor.CRS.
type TransformFactory interface {
	NewTransform(source, target string) (Transform, error)
}

// TransformFactoryFunc adapts a function to a TransformFactory.
type TransformFactoryFunc func(source, target string) (Transform, error)

func (f TransformFactoryFunc) NewTransform(source, target string) (Transform, error) {
	return f(source, target)
}

// IdentityFactory returns IdentityTransform for any pair of systems.
var IdentityFactory TransformFactory = TransformFactoryFunc(func(string, string) (Transform, error) {
	return IdentityTransform, nil
})

// Transforms resolves the transform from the coordinate reference system of
// a feature type to a target system. Transforms are cached by metadata id.
type Transforms struct {
	target  string
	source  storer.ObjectGetter
	factory TransformFactory
	cache   *cache.LRU[plumbing.ObjectID, Transform]
}

// NewTransforms returns the transforms to target, looking up feature types
// in source. A nil factory is IdentityFactory.
func NewTransforms(target string, source storer.ObjectGetter, factory TransformFactory) *Transforms {
	if factory == nil {
		factory = IdentityFactory
	}

	return &Transforms{
		target:  target,
		source:  source,
		factory: factory,
		cache:   cache.NewLRU[plumbing.ObjectID, Transform](transformCacheSize),
	}
}

// For returns the transform for objects described by metadataID. Objects
// without metadata, or of a type without a system, are not transformed.
func (t *Transforms) For(metadataID plumbing.ObjectID) (Transform, error) {
	if t.target == "" || metadataID.IsZero() || t.source == nil {
		return IdentityTransform, nil
	}

	return t.cache.GetOrLoad(metadataID, t.load)
}

func (t *Transforms) load(id plumbing.ObjectID) (Transform, error) {
	o, err := t.source.Object(id)
	if err != nil {
		return nil, err
	}

	ft, ok := o.(*object.FeatureType)
	if !ok {
		return nil, fmt.Errorf("%w: metadata %s is a %s", plumbing.ErrInvalidType, id, o.Type())
	}

	crs := ft.CRS()
	if crs == "" || crs == t.target {
		return IdentityTransform, nil
	}

	return t.factory.NewTransform(crs, t.target)
}

// Bound returns the extent of b in the target system. b is described by
// metadataID.
func (t *Transforms) Bound(b object.Bounded, metadataID plumbing.ObjectID) (orb.Bound, bool, error) {
	bound, ok := b.Bound()
	if !ok {
		return orb.Bound{}, false, nil
	}

	tr, err := t.For(metadataID)
	if err != nil {
		return orb.Bound{}, false, err
	}

	bound, err = tr.Transform(bound)
	if err != nil {
		return orb.Bound{}, false, err
	}

	return bound, true, nil
}

// errs keeps the first error of a consumer. Consumer methods cannot return
// errors.
type errs struct {
	mu  sync.Mutex
	err error
}

func (e *errs) record(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err == nil {
		e.err = err
	}
}

// Err returns the first error found, if any.
func (e *errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.err
}

// BoundsFilter forwards the pairs with a side intersecting a query extent.
// Nodes without bounds never intersect. A pair whose bounds cannot be
// transformed is pruned and the error is kept for Err.
type BoundsFilter struct {
	ForwardingConsumer
	errs
	query      orb.Bound
	transforms *Transforms
}

// NewBoundsFilter returns a filter forwarding to delegate the pairs
// intersecting query, given in the crs system. Feature types are looked up
// in source.
func NewBoundsFilter(query orb.Bound, crs string, source storer.ObjectGetter, factory TransformFactory, delegate Consumer) *BoundsFilter {
	return &BoundsFilter{
		ForwardingConsumer: ForwardingConsumer{Delegate: delegate},
		query:              query,
		transforms:         NewTransforms(crs, source, factory),
	}
}

func (f *BoundsFilter) intersects(b object.Bounded, metadataID plumbing.ObjectID) bool {
	bound, ok, err := f.transforms.Bound(b, metadataID)
	if err != nil {
		f.record(err)
		return false
	}

	return ok && bound.Intersects(f.query)
}

func (f *BoundsFilter) refs(left, right *object.NodeRef) bool {
	return (left != nil && f.intersects(left, left.MetadataID())) ||
		(right != nil && f.intersects(right, right.MetadataID()))
}

func (f *BoundsFilter) buckets(lp, rp *object.NodeRef, left, right *object.Bucket) bool {
	return (left != nil && f.intersects(left, lp.MetadataID())) ||
		(right != nil && f.intersects(right, rp.MetadataID()))
}

func (f *BoundsFilter) Tree(left, right *object.NodeRef) bool {
	if isRoot(left, right) || f.refs(left, right) {
		return f.Delegate.Tree(left, right)
	}

	return false
}

func (f *BoundsFilter) EndTree(left, right *object.NodeRef) {
	if isRoot(left, right) || f.refs(left, right) {
		f.Delegate.EndTree(left, right)
	}
}

func (f *BoundsFilter) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	return f.buckets(lp, rp, left, right) && f.Delegate.Bucket(lp, rp, index, left, right)
}

func (f *BoundsFilter) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	if f.buckets(lp, rp, left, right) {
		f.Delegate.EndBucket(lp, rp, index, left, right)
	}
}

func (f *BoundsFilter) Feature(left, right *object.NodeRef) {
	if f.refs(left, right) {
		f.Delegate.Feature(left, right)
	}
}

// BoundsSummary is the extent of the differences between two trees. A nil
// bound is an empty extent.
type BoundsSummary struct {
	Left, Right, Merged *orb.Bound
}

// BoundsConsumer computes the extent of the old and new versions of the
// changed features. A tree or bucket present on a single side is taken as
// a whole without walking it.
type BoundsConsumer struct {
	NoopConsumer
	errs
	transforms *Transforms

	mu          sync.Mutex
	left, right *orb.Bound
}

// NewBoundsConsumer returns a consumer computing bounds in the crs system.
// Feature types are looked up in source.
func NewBoundsConsumer(crs string, source storer.ObjectGetter, factory TransformFactory) *BoundsConsumer {
	return &BoundsConsumer{transforms: NewTransforms(crs, source, factory)}
}

func (c *BoundsConsumer) bound(b object.Bounded, metadataID plumbing.ObjectID) *orb.Bound {
	bound, ok, err := c.transforms.Bound(b, metadataID)
	if err != nil {
		c.record(err)
		return nil
	}

	if !ok {
		return nil
	}

	return &bound
}

func (c *BoundsConsumer) refBound(ref *object.NodeRef) *orb.Bound {
	if ref == nil {
		return nil
	}

	return c.bound(ref, ref.MetadataID())
}

func (c *BoundsConsumer) bucketBound(parent *object.NodeRef, b *object.Bucket) *orb.Bound {
	if b == nil {
		return nil
	}

	return c.bound(b, parent.MetadataID())
}

func (c *BoundsConsumer) expand(left, right *orb.Bound) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.left = union(c.left, left)
	c.right = union(c.right, right)
}

func union(acc, b *orb.Bound) *orb.Bound {
	switch {
	case b == nil:
		return acc
	case acc == nil:
		u := *b
		return &u
	default:
		u := acc.Union(*b)
		return &u
	}
}

// pair expands the bounds with a one sided pair and reports whether the
// pair must be walked.
func (c *BoundsConsumer) pair(left, right *orb.Bound) bool {
	switch {
	case left == nil && right == nil:
		return false
	case left == nil, right == nil:
		c.expand(left, right)
		return false
	default:
		return true
	}
}

func (c *BoundsConsumer) Tree(left, right *object.NodeRef) bool {
	return c.pair(c.refBound(left), c.refBound(right))
}

func (c *BoundsConsumer) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	return c.pair(c.bucketBound(lp, left), c.bucketBound(rp, right))
}

func (c *BoundsConsumer) Feature(left, right *object.NodeRef) {
	lb, rb := c.refBound(left), c.refBound(right)
	if lb != nil && rb != nil && *lb == *rb {
		return
	}

	c.expand(lb, rb)
}

// Result returns the bounds computed so far.
func (c *BoundsConsumer) Result() BoundsSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return BoundsSummary{Left: c.left, Right: c.right, Merged: union(c.left, c.right)}
}
