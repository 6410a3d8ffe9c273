package difftree

import (
	"fmt"
	"sync/atomic"

	"github.com/go-geogit/geogit/plumbing/object"
)

// Stats counts the events of a walk. It is safe for concurrent use.
type Stats struct {
	AllTrees, AcceptedTrees       atomic.Int64
	AllBuckets, AcceptedBuckets   atomic.Int64
	AllFeatures, AcceptedFeatures atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("trees: %d/%d; buckets: %d/%d; features: %d/%d",
		s.AcceptedTrees.Load(), s.AllTrees.Load(),
		s.AcceptedBuckets.Load(), s.AllBuckets.Load(),
		s.AcceptedFeatures.Load(), s.AllFeatures.Load())
}

// StatsConsumer counts every event it sees, and the trees and buckets its
// delegate walks.
type StatsConsumer struct {
	ForwardingConsumer
	stats *Stats
}

// NewStatsConsumer returns a consumer counting into stats the events sent
// to delegate.
func NewStatsConsumer(stats *Stats, delegate Consumer) *StatsConsumer {
	return &StatsConsumer{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}, stats: stats}
}

func (c *StatsConsumer) Tree(left, right *object.NodeRef) bool {
	c.stats.AllTrees.Add(1)
	ok := c.Delegate.Tree(left, right)
	if ok {
		c.stats.AcceptedTrees.Add(1)
	}

	return ok
}

func (c *StatsConsumer) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	c.stats.AllBuckets.Add(1)
	ok := c.Delegate.Bucket(lp, rp, index, left, right)
	if ok {
		c.stats.AcceptedBuckets.Add(1)
	}

	return ok
}

func (c *StatsConsumer) Feature(left, right *object.NodeRef) {
	c.stats.AllFeatures.Add(1)
	c.Delegate.Feature(left, right)
}

// AcceptedFeaturesStats counts the features reaching its delegate, that is
// the ones no filter dropped.
type AcceptedFeaturesStats struct {
	ForwardingConsumer
	stats *Stats
}

// NewAcceptedFeaturesStats returns a consumer counting into stats the
// features sent to delegate.
func NewAcceptedFeaturesStats(stats *Stats, delegate Consumer) *AcceptedFeaturesStats {
	return &AcceptedFeaturesStats{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}, stats: stats}
}

func (c *AcceptedFeaturesStats) Feature(left, right *object.NodeRef) {
	c.stats.AcceptedFeatures.Add(1)
	c.Delegate.Feature(left, right)
}
