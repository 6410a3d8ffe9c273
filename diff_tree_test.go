package geogit

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/difftree"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/revtree"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/storage/memory"
)

type DiffTreeSuite struct {
	suite.Suite
	ctx         context.Context
	store       *memory.Storage
	left, right *object.Tree
}

func TestDiffTreeSuite(t *testing.T) {
	suite.Run(t, new(DiffTreeSuite))
}

func featureAt(name string, x float64, version string) object.Node {
	b := orb.Bound{Min: orb.Point{x, x}, Max: orb.Point{x + 1, x + 1}}
	return object.NewFeatureNode(name, plumbing.ComputeID([]byte(name+"@"+version)), plumbing.ZeroID, &b)
}

func span(from, to int, version string) []object.Node {
	out := make([]object.Node, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, featureAt(fmt.Sprintf("feature.%d", i), float64(i), version))
	}

	return out
}

func (s *DiffTreeSuite) tree(nodes ...object.Node) *object.Tree {
	b := revtree.NewBuilder(s.store)
	for _, n := range nodes {
		s.Require().NoError(b.Put(n))
	}

	t, err := b.Build(s.ctx)
	s.Require().NoError(err)
	return t
}

func (s *DiffTreeSuite) layer(name string, t *object.Tree) object.Node {
	return object.NewTreeNode(name, t.ID(), plumbing.ZeroID, t.Bounds())
}

func (s *DiffTreeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStorage()

	roads := s.tree(featureAt("r1", 1, "v1"), featureAt("r2", 2, "v1"), featureAt("r3", 3, "v1"))
	rivers := s.tree(featureAt("v1", 11, "v1"), featureAt("v2", 12, "v1"))
	s.left = s.tree(s.layer("roads", roads), s.layer("rivers", rivers))

	roads = s.tree(featureAt("r1", 1, "v1"), featureAt("r2", 2, "v2"), featureAt("r4", 4, "v1"))
	rivers = s.tree(featureAt("v2", 12, "v2"), featureAt("v3", 13, "v1"))
	lakes := s.tree(featureAt("l1", 21, "v1"))
	s.right = s.tree(s.layer("roads", roads), s.layer("rivers", rivers), s.layer("lakes", lakes))
}

func (s *DiffTreeSuite) options() *DiffTreeOptions {
	return &DiffTreeOptions{
		Old:    TreeSpec{Tree: s.left},
		New:    TreeSpec{Tree: s.right},
		Source: s.store,
	}
}

func (s *DiffTreeSuite) collect(o *DiffTreeOptions) []*difftree.DiffEntry {
	it, err := DiffTree(s.ctx, o)
	s.Require().NoError(err)

	var out []*difftree.DiffEntry
	s.Require().NoError(it.ForEach(func(e *difftree.DiffEntry) error {
		out = append(out, e)
		return nil
	}))

	return out
}

func changes(entries []*difftree.DiffEntry) map[string]object.ChangeType {
	out := make(map[string]object.ChangeType, len(entries))
	for _, e := range entries {
		out[e.Path()] = e.ChangeType()
	}

	return out
}

func (s *DiffTreeSuite) TestDiffTree() {
	s.Equal(map[string]object.ChangeType{
		"roads/r2":  object.Modified,
		"roads/r3":  object.Removed,
		"roads/r4":  object.Added,
		"rivers/v1": object.Removed,
		"rivers/v2": object.Modified,
		"rivers/v3": object.Added,
		"lakes/l1":  object.Added,
	}, changes(s.collect(s.options())))
}

func (s *DiffTreeSuite) TestSameTree() {
	o := s.options()
	o.New = TreeSpec{ID: s.left.ID()}

	it, err := DiffTree(s.ctx, o)
	s.Require().NoError(err)
	defer it.Close()

	e, err := it.Next()
	s.Nil(e)
	s.Equal(io.EOF, err)
}

func (s *DiffTreeSuite) TestEmptySides() {
	o := &DiffTreeOptions{New: TreeSpec{Tree: s.right}, Source: s.store}
	entries := s.collect(o)
	s.Len(entries, 6)
	for _, e := range entries {
		s.Equal(object.Added, e.ChangeType())
	}

	o = &DiffTreeOptions{Old: TreeSpec{Tree: s.right}, New: TreeSpec{ID: object.EmptyTreeID}, Source: s.store}
	s.Len(s.collect(o), 6)
}

func (s *DiffTreeSuite) TestReportTrees() {
	o := s.options()
	o.ReportTrees = true

	entries := s.collect(o)
	s.Len(entries, 10)

	var trees []string
	for _, e := range entries {
		if e.IsTree() {
			trees = append(trees, e.Path())
		}
	}

	sort.Strings(trees)
	s.Equal([]string{"lakes", "rivers", "roads"}, trees)

	o = s.options()
	o.ReportTrees = true
	o.SkipFeatures = true
	s.Equal(map[string]object.ChangeType{
		"roads":  object.Modified,
		"rivers": object.Modified,
		"lakes":  object.Added,
	}, changes(s.collect(o)))
}

func (s *DiffTreeSuite) TestNonRecursive() {
	o := s.options()
	o.ReportTrees = true
	o.NonRecursive = true

	s.Equal(map[string]object.ChangeType{
		"roads":  object.Modified,
		"rivers": object.Modified,
		"lakes":  object.Added,
	}, changes(s.collect(o)))
}

func (s *DiffTreeSuite) TestFilters() {
	o := s.options()
	o.Paths = []string{"roads"}
	o.ChangeType = object.Added
	s.Equal(map[string]object.ChangeType{"roads/r4": object.Added}, changes(s.collect(o)))

	o = s.options()
	o.Limit = 3
	s.Len(s.collect(o), 3)

	o = s.options()
	o.Bounds = &orb.Bound{Min: orb.Point{11.5, 11.5}, Max: orb.Point{30, 30}}
	s.Equal(map[string]object.ChangeType{
		"rivers/v1": object.Removed,
		"rivers/v2": object.Modified,
		"rivers/v3": object.Added,
		"lakes/l1":  object.Added,
	}, changes(s.collect(o)))

	o = s.options()
	o.Filter = func(b object.Bounded) bool {
		bound, ok := b.Bound()
		return ok && bound.Min.X() > 20
	}
	s.Equal(map[string]object.ChangeType{"lakes/l1": object.Added}, changes(s.collect(o)))
}

func (s *DiffTreeSuite) TestConsumerWrapper() {
	var features int
	o := s.options()
	o.Paths = []string{"roads"}
	o.ChangeType = object.Added
	o.ConsumerWrapper = func(c difftree.Consumer) difftree.Consumer {
		return &countFeatures{ForwardingConsumer: difftree.ForwardingConsumer{Delegate: c}, n: &features}
	}

	s.Len(s.collect(o), 1)
	// the wrapper sees every feature of the walked trees
	s.Equal(3, features)
}

type countFeatures struct {
	difftree.ForwardingConsumer
	n *int
}

func (c *countFeatures) Feature(left, right *object.NodeRef) {
	*c.n++
	c.Delegate.Feature(left, right)
}

func (s *DiffTreeSuite) TestStats() {
	o := s.options()
	o.Stats = true
	o.Paths = []string{"roads"}

	it, err := DiffTree(s.ctx, o)
	s.Require().NoError(err)
	s.Require().NoError(it.ForEach(func(*difftree.DiffEntry) error { return nil }))

	stats := it.Stats()
	s.Require().NotNil(stats)
	s.Equal(int64(4), stats.AllTrees.Load())
	s.Equal(int64(2), stats.AcceptedTrees.Load())
	s.Equal(int64(3), stats.AllFeatures.Load())
	s.Equal(int64(3), stats.AcceptedFeatures.Load())

	it, err = DiffTree(s.ctx, s.options())
	s.Require().NoError(err)
	defer it.Close()
	s.Nil(it.Stats())
}

func (s *DiffTreeSuite) TestPreserveIterationOrder() {
	o := &DiffTreeOptions{
		New:                    TreeSpec{Tree: s.tree(span(0, 600, "v1")...)},
		Source:                 s.store,
		PreserveIterationOrder: true,
	}

	entries := s.collect(o)
	s.Len(entries, 600)
	s.True(sort.SliceIsSorted(entries, func(i, j int) bool {
		return object.CompareNames(entries[i].New.Name(), entries[j].New.Name()) < 0
	}))
}

func (s *DiffTreeSuite) TestForEachStop() {
	it, err := DiffTree(s.ctx, s.options())
	s.Require().NoError(err)

	n := 0
	s.NoError(it.ForEach(func(*difftree.DiffEntry) error {
		n++
		if n == 2 {
			return storer.ErrStop
		}

		return nil
	}))
	s.Equal(2, n)

	e, err := it.Next()
	s.Nil(e)
	s.Equal(io.EOF, err)
}

func (s *DiffTreeSuite) TestCloseUnblocksProducer() {
	o := &DiffTreeOptions{
		New:       TreeSpec{Tree: s.tree(span(0, 600, "v1")...)},
		Source:    s.store,
		QueueSize: 1,
		Pool:      NewPool(1),
	}
	defer o.Pool.Close()

	it, err := DiffTree(s.ctx, o)
	s.Require().NoError(err)

	e, err := it.Next()
	s.Require().NoError(err)
	s.NotNil(e)

	closed := make(chan struct{})
	go func() {
		it.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		s.FailNow("Close did not return")
	}

	e, err = it.Next()
	s.Nil(e)
	s.Equal(io.EOF, err)

	// the worker is free again
	it, err = DiffTree(s.ctx, o)
	s.Require().NoError(err)
	it.Close()
	it.Close()
}

func (s *DiffTreeSuite) TestNestedDiffOnSaturatedPool() {
	o := &DiffTreeOptions{
		New:       TreeSpec{Tree: s.tree(span(0, 50, "v1")...)},
		Source:    s.store,
		QueueSize: 1,
		Pool:      NewPool(1),
	}
	defer o.Pool.Close()

	outer, err := DiffTree(s.ctx, o)
	s.Require().NoError(err)
	defer outer.Close()

	_, err = outer.Next()
	s.Require().NoError(err)

	// the outer producer waits on its full queue without holding the worker
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	nested := s.options()
	nested.Pool = o.Pool
	inner, err := DiffTree(ctx, nested)
	s.Require().NoError(err)

	var entries []*difftree.DiffEntry
	s.NoError(inner.ForEach(func(e *difftree.DiffEntry) error {
		entries = append(entries, e)
		return nil
	}))
	s.Len(entries, 7)

	n := 1
	s.NoError(outer.ForEach(func(*difftree.DiffEntry) error {
		n++
		return nil
	}))
	s.Equal(50, n)
}

func (s *DiffTreeSuite) TestProducerError() {
	missing := plumbing.ComputeID([]byte("missing"))
	broken, err := object.NewLeafTree(nil, []object.Node{
		object.NewTreeNode("layer", missing, plumbing.ZeroID, nil),
	}, 1, 1)
	s.Require().NoError(err)

	it, err := DiffTree(s.ctx, &DiffTreeOptions{New: TreeSpec{Tree: broken}, Source: s.store})
	s.Require().NoError(err)
	defer it.Close()

	_, err = it.Next()
	s.ErrorIs(err, plumbing.ErrObjectNotFound)

	_, err = it.Next()
	s.ErrorIs(err, plumbing.ErrObjectNotFound)
}

type panicking struct {
	difftree.ForwardingConsumer
}

func (panicking) Feature(left, right *object.NodeRef) {
	panic("boom")
}

func (s *DiffTreeSuite) TestProducerPanic() {
	o := s.options()
	o.ConsumerWrapper = func(c difftree.Consumer) difftree.Consumer {
		return panicking{difftree.ForwardingConsumer{Delegate: c}}
	}

	it, err := DiffTree(s.ctx, o)
	s.Require().NoError(err)
	err = it.ForEach(func(*difftree.DiffEntry) error { return nil })
	s.ErrorContains(err, "boom")

	var unexpected *plumbing.UnexpectedError
	s.ErrorAs(err, &unexpected)
}

func (s *DiffTreeSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := DiffTree(ctx, s.options())
	s.ErrorIs(err, context.Canceled)
}

func (s *DiffTreeSuite) resolver() TreeResolver {
	refs := map[string]plumbing.ObjectID{"v1": s.left.ID(), "v2": s.right.ID()}
	return func(_ context.Context, refSpec string) (plumbing.ObjectID, error) {
		id, ok := refs[refSpec]
		if !ok {
			return plumbing.ZeroID, fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, refSpec)
		}

		return id, nil
	}
}

func (s *DiffTreeSuite) TestRefSpecs() {
	o := &DiffTreeOptions{
		Old:      TreeSpec{RefSpec: "v1"},
		New:      TreeSpec{RefSpec: "v2"},
		Resolver: s.resolver(),
		Source:   s.store,
	}
	s.Len(s.collect(o), 7)

	o.New = TreeSpec{RefSpec: "v3"}
	_, err := DiffTree(s.ctx, o)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)

	o = &DiffTreeOptions{Old: TreeSpec{RefSpec: "v1"}, Source: s.store}
	_, err = DiffTree(s.ctx, o)
	s.ErrorIs(err, ErrMissingResolver)
}

func (s *DiffTreeSuite) TestResolveTree() {
	t, err := ResolveTree(s.ctx, nil, s.store, plumbing.ZeroID.String())
	s.NoError(err)
	s.True(t.IsEmpty())

	t, err = ResolveTree(s.ctx, s.resolver(), s.store, "v2")
	s.NoError(err)
	s.Equal(s.right.ID(), t.ID())
}

func (s *DiffTreeSuite) TestDiffCount() {
	count, err := DiffCount(s.ctx, s.options())
	s.Require().NoError(err)
	s.Equal(difftree.DiffObjectCount{
		FeaturesAdded:   3,
		FeaturesRemoved: 2,
		FeaturesChanged: 2,
		TreesAdded:      1,
		TreesChanged:    2,
	}, count)

	o := s.options()
	o.Paths = []string{"rivers"}
	count, err = DiffCount(s.ctx, o)
	s.Require().NoError(err)
	s.Equal(difftree.DiffObjectCount{
		FeaturesAdded:   1,
		FeaturesRemoved: 1,
		FeaturesChanged: 1,
		TreesChanged:    1,
	}, count)
}

func (s *DiffTreeSuite) TestDiffBounds() {
	o := s.options()
	o.Paths = []string{"roads"}

	res, err := DiffBounds(s.ctx, o)
	s.Require().NoError(err)
	s.Require().NotNil(res.Merged)
	s.Equal(orb.Bound{Min: orb.Point{3, 3}, Max: orb.Point{4, 4}}, *res.Left)
	s.Equal(orb.Bound{Min: orb.Point{4, 4}, Max: orb.Point{5, 5}}, *res.Right)
	s.Equal(orb.Bound{Min: orb.Point{3, 3}, Max: orb.Point{5, 5}}, *res.Merged)
}

func (s *DiffTreeSuite) TestSeparateSources() {
	left := memory.NewStorage()
	right := memory.NewStorage()

	s.store = left
	old := s.tree(featureAt("a", 0, "v1"))
	s.store = right
	next := s.tree(featureAt("a", 0, "v2"), featureAt("b", 1, "v1"))

	o := &DiffTreeOptions{
		Old:         TreeSpec{ID: old.ID()},
		New:         TreeSpec{ID: next.ID()},
		LeftSource:  left,
		RightSource: right,
	}
	s.Equal(map[string]object.ChangeType{
		"a": object.Modified,
		"b": object.Added,
	}, changes(s.collect(o)))

	o = &DiffTreeOptions{Old: TreeSpec{ID: old.ID()}, New: TreeSpec{ID: next.ID()}, Source: right}
	_, err := DiffTree(s.ctx, o)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)
}
