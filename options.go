package geogit

import (
	"errors"
	"time"

	"dario.cat/mergo"
	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/difftree"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
)

const (
	// DefaultQueueSize is the number of entries a diff producer can get
	// ahead of its reader.
	DefaultQueueSize = 100000
	// DefaultPollInterval is how long a reader waits for the producer
	// before checking again whether it is done.
	DefaultPollInterval = 10 * time.Millisecond
)

var (
	ErrMissingSource   = errors.New("an object source is required")
	ErrMissingTree     = errors.New("old and new versions are required")
	ErrInvalidLimit    = errors.New("limit cannot be negative")
	ErrMissingResolver = errors.New("a tree resolver is required to resolve ref specs")
)

// TreeSpec names one side of a diff. Tree is used first, then ID, then
// RefSpec through the TreeResolver. A spec with an ID equal to
// plumbing.ZeroID and no tree nor ref spec is the empty tree.
type TreeSpec struct {
	Tree    *object.Tree
	ID      plumbing.ObjectID
	RefSpec string
}

// IsEmpty reports whether s names nothing at all.
func (s TreeSpec) IsEmpty() bool {
	return s.Tree == nil && s.ID.IsZero() && s.RefSpec == ""
}

// DiffTreeOptions describes how a diff should be performed.
type DiffTreeOptions struct {
	// Old and New are the versions to compare. An empty spec is the empty
	// tree, unless RequireBoth is set.
	Old, New TreeSpec
	// RequireBoth makes a missing Old or New spec fail with ErrMissingTree.
	RequireBoth bool
	// Resolver resolves the ref specs of Old and New.
	Resolver TreeResolver

	// Source is used by both sides unless LeftSource or RightSource are
	// set.
	Source                  storer.ObjectGetter
	LeftSource, RightSource storer.ObjectGetter

	// Paths keeps the changes at, under or leading to any of the paths.
	Paths []string
	// Bounds keeps the changes intersecting the given bounds, in
	// BoundsCRS coordinates. TransformFactory reprojects the bounds of
	// each feature type into BoundsCRS.
	Bounds           *orb.Bound
	BoundsCRS        string
	TransformFactory difftree.TransformFactory
	// ChangeType keeps only one kind of change. The zero value keeps all.
	ChangeType object.ChangeType
	// Limit is the max number of features reported, 0 means unlimited.
	Limit int64
	// Filter is a custom predicate nodes and buckets must pass.
	Filter difftree.Predicate
	// ConsumerWrapper wraps the whole consumer chain, it sees every event
	// of the walk before any filter.
	ConsumerWrapper func(difftree.Consumer) difftree.Consumer

	// ReportTrees reports changed trees, besides features.
	ReportTrees bool
	// SkipFeatures does not report features.
	SkipFeatures bool
	// NonRecursive only reports the direct children of the roots.
	NonRecursive bool
	// PreserveIterationOrder reports the changes in canonical node order.
	PreserveIterationOrder bool
	// DefaultMetadataID is the metadata id inherited by the roots.
	DefaultMetadataID plumbing.ObjectID
	// Stats records walk statistics, available through DiffIter.Stats.
	Stats bool

	// QueueSize bounds the entries buffered ahead of the reader.
	QueueSize int
	// PollInterval is how often a waiting reader checks the producer.
	PollInterval time.Duration
	// Pool runs the producer, DefaultPool() by default.
	Pool *Pool
}

var defaultDiffTreeOptions = DiffTreeOptions{
	QueueSize:    DefaultQueueSize,
	PollInterval: DefaultPollInterval,
}

// Validate validates the fields and sets the default values.
func (o *DiffTreeOptions) Validate() error {
	if err := mergo.Merge(o, defaultDiffTreeOptions); err != nil {
		return err
	}

	if o.LeftSource == nil {
		o.LeftSource = o.Source
	}

	if o.RightSource == nil {
		o.RightSource = o.Source
	}

	if o.LeftSource == nil || o.RightSource == nil {
		return ErrMissingSource
	}

	if o.RequireBoth && (o.Old.IsEmpty() || o.New.IsEmpty()) {
		return ErrMissingTree
	}

	if o.Limit < 0 {
		return ErrInvalidLimit
	}

	if o.Pool == nil {
		o.Pool = DefaultPool()
	}

	return nil
}
