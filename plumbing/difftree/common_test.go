package difftree

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/revtree"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/storage/memory"
)

// recorder keeps every event it receives. Trees whose path is in prune are
// not walked, nor are buckets if pruneBuckets is set.
type recorder struct {
	mu           sync.Mutex
	prune        map[string]bool
	pruneBuckets bool
	events  []string
	entries []*DiffEntry
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) Tree(left, right *object.NodeRef) bool {
	path := either(left, right).Path()
	r.add("tree " + path)
	return !r.prune[path]
}

func (r *recorder) EndTree(left, right *object.NodeRef) {
	r.add("endtree " + either(left, right).Path())
}

func (r *recorder) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	r.add(fmt.Sprintf("bucket %s%s", either(lp, rp).Path(), index))
	return !r.pruneBuckets
}

func (r *recorder) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	r.add(fmt.Sprintf("endbucket %s%s", either(lp, rp).Path(), index))
}

func (r *recorder) Feature(left, right *object.NodeRef) {
	r.mu.Lock()
	r.entries = append(r.entries, NewDiffEntry(left, right))
	r.mu.Unlock()
}

func (r *recorder) changes() map[string]object.ChangeType {
	out := make(map[string]object.ChangeType, len(r.entries))
	for _, e := range r.entries {
		out[e.Path()] = e.ChangeType()
	}

	return out
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}

	return n
}

// countingStore counts the objects read through it.
type countingStore struct {
	storer.ObjectStorer
	reads atomic.Int64
}

func (c *countingStore) Tree(id plumbing.ObjectID) (*object.Tree, error) {
	c.reads.Add(1)
	return c.ObjectStorer.Tree(id)
}

func (c *countingStore) Object(id plumbing.ObjectID) (object.RevObject, error) {
	c.reads.Add(1)
	return c.ObjectStorer.Object(id)
}

func (c *countingStore) All(ids []plumbing.ObjectID) (storer.ObjectIter, error) {
	c.reads.Add(int64(len(ids)))
	return c.ObjectStorer.All(ids)
}

func featureAt(name string, x float64, version string) object.Node {
	b := orb.Bound{Min: orb.Point{x, x}, Max: orb.Point{x + 1, x + 1}}
	return object.NewFeatureNode(name, plumbing.ComputeID([]byte(name+"@"+version)), plumbing.ZeroID, &b)
}

func numbered(i int, version string) object.Node {
	return featureAt(fmt.Sprintf("feature.%d", i), float64(i), version)
}

func span(from, to int, version string) []object.Node {
	out := make([]object.Node, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, numbered(i, version))
	}

	return out
}

type treeSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.Storage
}

func (s *treeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStorage()
}

func (s *treeSuite) tree(nodes ...object.Node) *object.Tree {
	b := revtree.NewBuilder(s.store)
	for _, n := range nodes {
		s.Require().NoError(b.Put(n))
	}

	t, err := b.Build(s.ctx)
	s.Require().NoError(err)
	return t
}

func (s *treeSuite) layer(name string, t *object.Tree) object.Node {
	return object.NewTreeNode(name, t.ID(), plumbing.ZeroID, t.Bounds())
}

func (s *treeSuite) walk(left, right *object.Tree, c Consumer) error {
	return NewWalker(left, right, s.store, s.store).Walk(s.ctx, c)
}

func (s *treeSuite) record(left, right *object.Tree) *recorder {
	r := &recorder{}
	s.Require().NoError(s.walk(left, right, r))
	return r
}
