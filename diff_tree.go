package geogit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/difftree"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/utils/trace"
)

// DiffTree starts computing the differences between two versions and
// returns an iterator over them. The walk runs on the options Pool and can
// be ahead of the reader by at most QueueSize entries.
//
// The returned iterator must be closed, closing it stops the walk.
func DiffTree(ctx context.Context, o *DiffTreeOptions) (*DiffIter, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	left, right, err := o.trees(ctx)
	if err != nil {
		return nil, err
	}

	it := &DiffIter{
		queue: make(chan *difftree.DiffEntry, o.QueueSize),
		poll:  o.PollInterval,
		done:  make(chan struct{}),
	}

	if o.Stats {
		it.stats = &difftree.Stats{}
	}

	if left.ID() == right.ID() {
		it.finished.Store(true)
		it.cancel = func() {}
		close(it.done)
		return it, nil
	}

	w := difftree.NewWalker(left, right, o.LeftSource, o.RightSource)
	w.SetDefaultMetadataID(o.DefaultMetadataID)
	w.SetPreserveIterationOrder(o.PreserveIterationOrder)
	it.walker = w

	var wctx context.Context
	wctx, it.cancel = context.WithCancel(ctx)

	p := &producer{
		ctx:            wctx,
		it:             it,
		pool:           o.Pool,
		reportTrees:    o.ReportTrees,
		reportFeatures: !o.SkipFeatures,
		recursive:      !o.NonRecursive,
	}

	c, check := o.chain(p, it.stats)
	run := func() {
		defer close(it.done)
		defer it.finished.Store(true)
		defer it.cancel()

		start := time.Now()
		trace.Performance.Printf("diff %s %s started", left.ID(), right.ID())
		err := p.walk(w, c)
		if err == nil {
			err = check()
		}

		if err != nil {
			it.fail(err)
		}

		trace.Performance.Printf("diff %s %s finished in %s, stats: %v, err: %v",
			left.ID(), right.ID(), time.Since(start), it.stats, err)
	}

	if err := o.Pool.Go(ctx, run); err != nil {
		it.cancel()
		return nil, err
	}

	return it, nil
}

// chain composes the filters enabled by o in front of c. The returned
// check function reports the errors the filters kept during the walk.
func (o *DiffTreeOptions) chain(c difftree.Consumer, stats *difftree.Stats) (difftree.Consumer, func() error) {
	check := func() error { return nil }

	if stats != nil {
		c = difftree.NewAcceptedFeaturesStats(stats, c)
	}

	if o.Limit > 0 {
		c = difftree.NewLimiter(o.Limit, c)
	}

	if o.Filter != nil {
		c = difftree.NewPredicateFilter(o.Filter, c)
	}

	if o.ChangeType != 0 {
		c = difftree.NewChangeTypeFilter(o.ChangeType, c)
	}

	if o.Bounds != nil {
		f := difftree.NewBoundsFilter(*o.Bounds, o.BoundsCRS, o.metadataSource(), o.TransformFactory, c)
		check = f.Err
		c = f
	}

	if len(o.Paths) > 0 {
		c = difftree.NewPathFilter(o.Paths, c)
	}

	if stats != nil {
		c = difftree.NewStatsConsumer(stats, c)
	}

	if o.ConsumerWrapper != nil {
		c = o.ConsumerWrapper(c)
	}

	return c, check
}

// metadataSource returns where feature types are looked up.
func (o *DiffTreeOptions) metadataSource() storer.ObjectGetter {
	if o.Source != nil {
		return o.Source
	}

	if o.LeftSource == o.RightSource {
		return o.LeftSource
	}

	return bothSources{o.RightSource, o.LeftSource}
}

// producer is the innermost consumer of a DiffTree walk, it sends the
// entries to the iterator queue.
type producer struct {
	difftree.NoopConsumer
	ctx  context.Context
	it   *DiffIter
	pool *Pool

	reportTrees, reportFeatures, recursive bool
}

// walk runs w, turning a panic of any consumer into an error.
func (p *producer) walk(w *difftree.Walker, c difftree.Consumer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = plumbing.NewUnexpectedError(fmt.Errorf("diff producer panic: %v", r))
		}
	}()

	return w.Walk(p.ctx, c)
}

// put sends e to the queue. While the queue is full the worker is
// released, so readers that stopped reading do not starve other walks.
func (p *producer) put(e *difftree.DiffEntry) bool {
	select {
	case p.it.queue <- e:
		return true
	default:
	}

	var sent bool
	p.pool.Idle(func() {
		select {
		case p.it.queue <- e:
			sent = true
		case <-p.ctx.Done():
		}
	})

	return sent
}

func (p *producer) Tree(left, right *object.NodeRef) bool {
	root := isRoot(left, right)
	if !p.it.finished.Load() && p.reportTrees && !root {
		if !p.put(difftree.NewDiffEntry(left, right)) {
			return false
		}
	}

	if p.recursive {
		return !p.it.finished.Load()
	}

	return root
}

func (p *producer) EndTree(left, right *object.NodeRef) {
	if isRoot(left, right) {
		trace.General.Printf("reached the end of the tree traversal")
		p.it.finished.Store(true)
	}
}

func (p *producer) Bucket(lp, rp *object.NodeRef, index difftree.BucketIndex, left, right *object.Bucket) bool {
	return !p.it.finished.Load()
}

func (p *producer) Feature(left, right *object.NodeRef) {
	if !p.it.finished.Load() && p.reportFeatures {
		p.put(difftree.NewDiffEntry(left, right))
	}
}

func isRoot(left, right *object.NodeRef) bool {
	if left != nil {
		return left.IsRoot()
	}

	return right != nil && right.IsRoot()
}

// DiffIter is an iterator over the entries of a DiffTree call.
type DiffIter struct {
	queue  chan *difftree.DiffEntry
	poll   time.Duration
	stats  *difftree.Stats
	walker *difftree.Walker
	cancel context.CancelFunc

	finished atomic.Bool
	done     chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

func (it *DiffIter) fail(err error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.err == nil {
		it.err = err
	}
}

func (it *DiffIter) failure() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	return it.err
}

// Next returns the next entry. It returns io.EOF once every entry was
// read, and the producer error, if any, as soon as it happens.
func (it *DiffIter) Next() (*difftree.DiffEntry, error) {
	var ticker *time.Ticker
	for {
		if err := it.failure(); err != nil {
			return nil, err
		}

		select {
		case e := <-it.queue:
			return e, nil
		default:
		}

		if it.finished.Load() && len(it.queue) == 0 {
			if err := it.failure(); err != nil {
				return nil, err
			}

			return nil, io.EOF
		}

		if ticker == nil {
			ticker = time.NewTicker(it.poll)
			defer ticker.Stop()
		}

		select {
		case e := <-it.queue:
			return e, nil
		case <-ticker.C:
		}
	}
}

// ForEach calls cb for each entry, until the last one or an error. The
// iterator is closed afterwards. storer.ErrStop stops the iteration
// without error.
func (it *DiffIter) ForEach(cb func(*difftree.DiffEntry) error) error {
	defer it.Close()

	for {
		e, err := it.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}

			return err
		}

		if err := cb(e); err != nil {
			if err == storer.ErrStop {
				return nil
			}

			return err
		}
	}
}

// Stats returns the statistics of the walk so far, or nil if they were
// not requested.
func (it *DiffIter) Stats() *difftree.Stats {
	return it.stats
}

// Close stops the walk, discards the pending entries and waits for the
// producer to exit. It can be called any number of times.
func (it *DiffIter) Close() {
	it.closeOnce.Do(func() {
		if it.walker != nil {
			it.walker.Abort()
		}

		it.cancel()
		it.drain()
		<-it.done
		it.drain()
	})
}

func (it *DiffIter) drain() {
	for {
		select {
		case <-it.queue:
		default:
			return
		}
	}
}

// DiffCount counts the changes between two versions, honoring the Paths of
// o. Trees and buckets present on a single side are counted without being
// walked.
func DiffCount(ctx context.Context, o *DiffTreeOptions) (difftree.DiffObjectCount, error) {
	if err := o.Validate(); err != nil {
		return difftree.DiffObjectCount{}, err
	}

	left, right, err := o.trees(ctx)
	if err != nil {
		return difftree.DiffObjectCount{}, err
	}

	counter := difftree.NewCountConsumer(o.LeftSource, o.RightSource)
	if err := o.walkFiltered(ctx, left, right, counter); err != nil {
		return difftree.DiffObjectCount{}, err
	}

	if err := counter.Err(); err != nil {
		return difftree.DiffObjectCount{}, err
	}

	res := counter.Result()
	trace.Performance.Printf("diff count %s %s: %s", left.ID(), right.ID(), res)
	return res, nil
}

// DiffBounds computes the bounds of the changes between two versions, in
// the BoundsCRS of o, honoring its Paths.
func DiffBounds(ctx context.Context, o *DiffTreeOptions) (difftree.BoundsSummary, error) {
	if err := o.Validate(); err != nil {
		return difftree.BoundsSummary{}, err
	}

	left, right, err := o.trees(ctx)
	if err != nil {
		return difftree.BoundsSummary{}, err
	}

	bounds := difftree.NewBoundsConsumer(o.BoundsCRS, o.metadataSource(), o.TransformFactory)
	if err := o.walkFiltered(ctx, left, right, bounds); err != nil {
		return difftree.BoundsSummary{}, err
	}

	if err := bounds.Err(); err != nil {
		return difftree.BoundsSummary{}, err
	}

	return bounds.Result(), nil
}

// walkFiltered walks left and right on the caller goroutine.
func (o *DiffTreeOptions) walkFiltered(ctx context.Context, left, right *object.Tree, c difftree.Consumer) error {
	if len(o.Paths) > 0 {
		c = difftree.NewPathFilter(o.Paths, c)
	}

	w := difftree.NewWalker(left, right, o.LeftSource, o.RightSource)
	w.SetDefaultMetadataID(o.DefaultMetadataID)
	return w.Walk(ctx, c)
}

// bothSources looks objects up in each getter in turn.
type bothSources [2]storer.ObjectGetter

func (s bothSources) Tree(id plumbing.ObjectID) (*object.Tree, error) {
	t, err := s[0].Tree(id)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return s[1].Tree(id)
	}

	return t, err
}

func (s bothSources) Object(id plumbing.ObjectID) (object.RevObject, error) {
	o, err := s[0].Object(id)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return s[1].Object(id)
	}

	return o, err
}

func (s bothSources) ObjectIfPresent(id plumbing.ObjectID) (object.RevObject, error) {
	o, err := s[0].ObjectIfPresent(id)
	if err != nil || o != nil {
		return o, err
	}

	return s[1].ObjectIfPresent(id)
}

func (s bothSources) Exists(id plumbing.ObjectID) (bool, error) {
	ok, err := s[0].Exists(id)
	if err != nil || ok {
		return ok, err
	}

	return s[1].Exists(id)
}

func (s bothSources) All(ids []plumbing.ObjectID) (storer.ObjectIter, error) {
	return storer.NewObjectLookupIter(s, ids), nil
}
