// Package revtree builds trees. A Builder applies a set of changes to an
// existing tree, rebuilding only the buckets the changes fall into, and
// always produces the canonical shape for the resulting content.
package revtree

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/utils/trace"
)

// ErrInvalidNode is returned when putting a node without a name.
var ErrInvalidNode = errors.New("invalid node")

type counts struct {
	size  int64
	trees int
}

// Builder accumulates changes to a tree. It is not safe for concurrent use.
type Builder struct {
	store    storer.ObjectStorer
	original *object.Tree
	// pending maps a name to the *object.Node replacing it, nil removes it
	pending *treemap.Map
	created map[plumbing.ObjectID]*object.Tree
	counts  map[plumbing.ObjectID]counts
}

// NewBuilder returns a builder starting from the empty tree.
func NewBuilder(store storer.ObjectStorer) *Builder {
	return NewBuilderFrom(store, object.EmptyTree)
}

// NewBuilderFrom returns a builder applying changes to t.
func NewBuilderFrom(store storer.ObjectStorer, t *object.Tree) *Builder {
	if t == nil {
		t = object.EmptyTree
	}

	return &Builder{
		store:    store,
		original: t,
		pending:  treemap.NewWith(object.NodeNameComparator),
		created:  make(map[plumbing.ObjectID]*object.Tree),
		counts:   make(map[plumbing.ObjectID]counts),
	}
}

// Put inserts n, or replaces the child with the same name.
func (b *Builder) Put(n object.Node) error {
	if n.Name == "" {
		return ErrInvalidNode
	}

	if n.Type != plumbing.FeatureObject && n.Type != plumbing.TreeObject {
		return fmt.Errorf("%w: node %q is a %s", plumbing.ErrInvalidType, n.Name, n.Type)
	}

	b.pending.Put(n.Name, &n)
	return nil
}

// Remove schedules the removal of the child with the given name. It
// reports whether such a child is pending or exists in the original tree.
func (b *Builder) Remove(name string) (bool, error) {
	_, exists, err := find(b.loadTree, b.original, name)
	if err != nil {
		return false, err
	}

	v, pending := b.pending.Get(name)
	switch {
	case exists:
		b.pending.Put(name, (*object.Node)(nil))
		return true, nil
	case pending:
		b.pending.Remove(name)
		return v.(*object.Node) != nil, nil
	default:
		return false, nil
	}
}

// Len returns the number of pending changes.
func (b *Builder) Len() int {
	return b.pending.Size()
}

// Build applies the pending changes and saves every new tree to the store
// with a single PutAll. The builder then starts over from the new tree.
func (b *Builder) Build(ctx context.Context) (*object.Tree, error) {
	entries := make([]entry, 0, b.pending.Size())
	it := b.pending.Iterator()
	for it.Next() {
		entries = append(entries, entry{name: it.Key().(string), node: it.Value().(*object.Node)})
	}

	t, _, err := b.build(ctx, b.original, 0, entries)
	if err != nil {
		return nil, err
	}

	var objs []object.RevObject
	b.reachable(t, &objs)
	if len(objs) > 0 {
		if err := b.store.PutAll(objs); err != nil {
			return nil, err
		}
	}

	trace.Builder.Printf("revtree: built %s from %s with %d changes, %d new trees", t.ID().Short(), b.original.ID().Short(), len(entries), len(objs))

	b.original = t
	b.pending.Clear()
	clear(b.created)
	return t, nil
}

// reachable collects the created trees t refers to through its buckets.
// Trees created and then dropped by a collapse are not reachable.
func (b *Builder) reachable(t *object.Tree, out *[]object.RevObject) {
	if _, ok := b.created[t.ID()]; !ok {
		return
	}

	*out = append(*out, t)
	for _, bk := range t.Buckets() {
		if sub, ok := b.created[bk.ObjectID]; ok {
			b.reachable(sub, out)
		}
	}
}

type entry struct {
	name string
	node *object.Node
}

func (b *Builder) loadTree(id plumbing.ObjectID) (*object.Tree, error) {
	if t, ok := b.created[id]; ok {
		return t, nil
	}

	return storer.ResolveTree(b.store, id)
}

func (b *Builder) loadBucket(index int, id plumbing.ObjectID) (*object.Tree, error) {
	t, err := b.loadTree(id)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, plumbing.NewPermanentError(fmt.Errorf("%w: bucket %d: %w", plumbing.ErrCorruptTree, index, err))
	}

	return t, err
}

func (b *Builder) register(t *object.Tree) *object.Tree {
	if t.IsEmpty() {
		return object.EmptyTree
	}

	b.created[t.ID()] = t
	return t
}

// contribution returns what n adds to the size and tree count of a tree
// holding it.
func (b *Builder) contribution(n object.Node) (counts, error) {
	if !n.IsTree() {
		return counts{size: 1}, nil
	}

	if c, ok := b.counts[n.ObjectID]; ok {
		return c, nil
	}

	t, err := b.loadTree(n.ObjectID)
	if err != nil {
		return counts{}, fmt.Errorf("tree %q: %w", n.Name, err)
	}

	c := counts{size: int64(t.Size()), trees: t.TreeCount() + 1}
	b.counts[n.ObjectID] = c
	return c, nil
}

// build applies entries, sorted in canonical order, to the tree t found at
// the given bucket depth. It returns the new tree and the change in the
// number of direct children.
func (b *Builder) build(ctx context.Context, t *object.Tree, depth int, entries []entry) (*object.Tree, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	if len(entries) == 0 {
		return t, 0, nil
	}

	if t.IsBucketed() {
		return b.buildBucketed(ctx, t, depth, entries)
	}

	return b.buildLeaf(ctx, t, depth, entries)
}

func (b *Builder) buildLeaf(ctx context.Context, t *object.Tree, depth int, entries []entry) (*object.Tree, int, error) {
	children := t.Children()
	c := counts{size: int64(t.Size()), trees: t.TreeCount()}

	add := func(n object.Node) error {
		nc, err := b.contribution(n)
		c.size += nc.size
		c.trees += nc.trees
		return err
	}

	sub := func(n object.Node) error {
		nc, err := b.contribution(n)
		c.size -= nc.size
		c.trees -= nc.trees
		return err
	}

	merged := make([]object.Node, 0, len(children)+len(entries))
	i, j := 0, 0
	for i < len(children) || j < len(entries) {
		var cmp int
		switch {
		case i == len(children):
			cmp = 1
		case j == len(entries):
			cmp = -1
		default:
			cmp = object.CompareNames(children[i].Name, entries[j].name)
		}

		var err error
		switch {
		case cmp < 0:
			merged = append(merged, children[i])
			i++
		case cmp > 0:
			if n := entries[j].node; n != nil {
				merged = append(merged, *n)
				err = add(*n)
			}
			j++
		default:
			err = sub(children[i])
			if n := entries[j].node; n != nil && err == nil {
				merged = append(merged, *n)
				err = add(*n)
			}
			i++
			j++
		}

		if err != nil {
			return nil, 0, err
		}
	}

	delta := len(merged) - len(children)
	if len(merged) <= object.NormalizedSizeLimit(depth) || depth >= object.MaxDepth {
		nt, err := b.newLeaf(merged, c)
		return nt, delta, err
	}

	trace.Builder.Printf("revtree: splitting %d children at depth %d", len(merged), depth)
	nt, err := b.split(ctx, merged, depth)
	return nt, delta, err
}

func (b *Builder) newLeaf(nodes []object.Node, c counts) (*object.Tree, error) {
	if len(nodes) == 0 {
		return object.EmptyTree, nil
	}

	var features, trees []object.Node
	for _, n := range nodes {
		if n.IsTree() {
			trees = append(trees, n)
		} else {
			features = append(features, n)
		}
	}

	t, err := object.NewLeafTree(features, trees, uint64(c.size), c.trees)
	if err != nil {
		return nil, err
	}

	return b.register(t), nil
}

// fromNodes returns the canonical tree at depth holding nodes, sorted in
// canonical order.
func (b *Builder) fromNodes(ctx context.Context, nodes []object.Node, depth int) (*object.Tree, error) {
	if len(nodes) > object.NormalizedSizeLimit(depth) && depth < object.MaxDepth {
		return b.split(ctx, nodes, depth)
	}

	var c counts
	for _, n := range nodes {
		nc, err := b.contribution(n)
		if err != nil {
			return nil, err
		}

		c.size += nc.size
		c.trees += nc.trees
	}

	return b.newLeaf(nodes, c)
}

// split partitions nodes, sorted in canonical order, into the buckets of a
// tree at depth. Canonical order keeps every bucket contiguous.
func (b *Builder) split(ctx context.Context, nodes []object.Node, depth int) (*object.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		buckets []object.Bucket
		c       counts
	)

	for start := 0; start < len(nodes); {
		index := object.BucketOf(nodes[start].Name, depth)
		end := start + 1
		for end < len(nodes) && object.BucketOf(nodes[end].Name, depth) == index {
			end++
		}

		sub, err := b.fromNodes(ctx, nodes[start:end], depth+1)
		if err != nil {
			return nil, err
		}

		buckets = append(buckets, object.Bucket{Index: index, ObjectID: sub.ID(), Bounds: sub.Bounds()})
		c.size += int64(sub.Size())
		c.trees += sub.TreeCount()
		start = end
	}

	t, err := object.NewBucketTree(buckets, uint64(c.size), c.trees)
	if err != nil {
		return nil, err
	}

	return b.register(t), nil
}

func (b *Builder) buildBucketed(ctx context.Context, t *object.Tree, depth int, entries []entry) (*object.Tree, int, error) {
	if err := checkBuckets(t, depth); err != nil {
		return nil, 0, err
	}

	buckets := slices.Clone(t.Buckets())
	c := counts{size: int64(t.Size()), trees: t.TreeCount()}
	delta := 0

	// entries are in canonical order, so those of a bucket are contiguous
	for start := 0; start < len(entries); {
		index := object.BucketOf(entries[start].name, depth)
		end := start + 1
		for end < len(entries) && object.BucketOf(entries[end].name, depth) == index {
			end++
		}

		at, found := slices.BinarySearchFunc(buckets, index, func(bk object.Bucket, i int) int { return bk.Index - i })
		old := object.EmptyTree
		if found {
			var err error
			if old, err = b.loadBucket(index, buckets[at].ObjectID); err != nil {
				return nil, 0, err
			}
		}

		nt, d, err := b.build(ctx, old, depth+1, entries[start:end])
		if err != nil {
			return nil, 0, err
		}

		delta += d
		c.size += int64(nt.Size()) - int64(old.Size())
		c.trees += nt.TreeCount() - old.TreeCount()

		bk := object.Bucket{Index: index, ObjectID: nt.ID(), Bounds: nt.Bounds()}
		switch {
		case nt.IsEmpty() && found:
			buckets = slices.Delete(buckets, at, at+1)
		case nt.IsEmpty():
		case found:
			buckets[at] = bk
		default:
			buckets = slices.Insert(buckets, at, bk)
		}

		start = end
	}

	// a stored bucketed tree holds more than the limit, it can only
	// collapse after losing children
	if delta < 0 {
		limit := object.NormalizedSizeLimit(depth)
		n, err := b.countChildren(ctx, buckets, depth+1, limit)
		if err != nil {
			return nil, 0, err
		}

		if n <= limit {
			trace.Builder.Printf("revtree: collapsing %d children at depth %d", n, depth)
			nodes, err := b.collectChildren(ctx, buckets, depth+1, make([]object.Node, 0, n))
			if err != nil {
				return nil, 0, err
			}

			nt, err := b.newLeaf(nodes, c)
			return nt, delta, err
		}
	}

	nt, err := object.NewBucketTree(buckets, uint64(c.size), c.trees)
	if err != nil {
		return nil, 0, err
	}

	return b.register(nt), delta, nil
}

func checkBuckets(t *object.Tree, depth int) error {
	if depth >= object.MaxDepth {
		return plumbing.NewPermanentError(fmt.Errorf("%w: %s is bucketed at depth %d", plumbing.ErrCorruptTree, t.ID(), depth))
	}

	for _, bk := range t.Buckets() {
		if bk.Index >= object.MaxBuckets(depth) {
			return plumbing.NewPermanentError(fmt.Errorf("%w: %s has bucket %d at depth %d", plumbing.ErrCorruptTree, t.ID(), bk.Index, depth))
		}
	}

	return nil
}

// countChildren counts the direct children held by buckets of trees at
// depth, stopping as soon as the count exceeds limit.
func (b *Builder) countChildren(ctx context.Context, buckets []object.Bucket, depth, limit int) (int, error) {
	total := 0
	for _, bk := range buckets {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		t, err := b.loadBucket(bk.Index, bk.ObjectID)
		if err != nil {
			return 0, err
		}

		if t.IsBucketed() {
			if err := checkBuckets(t, depth); err != nil {
				return 0, err
			}

			n, err := b.countChildren(ctx, t.Buckets(), depth+1, limit-total)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += t.NumChildren()
		}

		if total > limit {
			return total, nil
		}
	}

	return total, nil
}

// collectChildren appends the children held by buckets in canonical order.
func (b *Builder) collectChildren(ctx context.Context, buckets []object.Bucket, depth int, out []object.Node) ([]object.Node, error) {
	for _, bk := range buckets {
		t, err := b.loadBucket(bk.Index, bk.ObjectID)
		if err != nil {
			return nil, err
		}

		if !t.IsBucketed() {
			out = append(out, t.Children()...)
			continue
		}

		if err := checkBuckets(t, depth); err != nil {
			return nil, err
		}

		if out, err = b.collectChildren(ctx, t.Buckets(), depth+1, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}
