package object

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-geogit/geogit/plumbing"
)

// Person identifies the author or committer of a commit and the tagger of a
// tag. Empty Name or Email are encoded as absent.
type Person struct {
	Name  string
	Email string
	// Timestamp is in milliseconds since the Unix epoch.
	Timestamp int64
	// TimeZoneOffset is in milliseconds.
	TimeZoneOffset int32
}

// NewPerson returns a person acting at when.
func NewPerson(name, email string, when time.Time) *Person {
	_, offset := when.Zone()
	return &Person{
		Name:           name,
		Email:          email,
		Timestamp:      when.UnixMilli(),
		TimeZoneOffset: int32(offset * 1000),
	}
}

// When returns the timestamp of p in its own time zone.
func (p *Person) When() time.Time {
	loc := time.FixedZone("", int(p.TimeZoneOffset/1000))
	return time.UnixMilli(p.Timestamp).In(loc)
}

func (p *Person) String() string {
	return fmt.Sprintf("%s <%s>", p.Name, p.Email)
}

// Commit points to the root tree of a snapshot and to the commits it
// derives from.
type Commit struct {
	id        plumbing.ObjectID
	tree      plumbing.ObjectID
	parents   []plumbing.ObjectID
	message   string
	author    *Person
	committer *Person
}

// NewCommit returns a new commit. author and committer may be nil.
func NewCommit(tree plumbing.ObjectID, parents []plumbing.ObjectID, author, committer *Person, message string) (*Commit, error) {
	c := &Commit{
		tree:      tree,
		parents:   slices.Clone(parents),
		message:   message,
		author:    author,
		committer: committer,
	}

	id, err := hashCommit(c.tree, c.parents, c.message, c.author, c.committer)
	if err != nil {
		return nil, err
	}

	c.id = id
	return c, nil
}

// ID returns the object id of the commit.
func (c *Commit) ID() plumbing.ObjectID { return c.id }

// Type returns the object type of the commit.
func (c *Commit) Type() plumbing.ObjectType { return plumbing.CommitObject }

// TreeID returns the id of the root tree.
func (c *Commit) TreeID() plumbing.ObjectID { return c.tree }

// Parents returns the ids of the parent commits, in order.
func (c *Commit) Parents() []plumbing.ObjectID { return c.parents }

// Message returns the commit message.
func (c *Commit) Message() string { return c.message }

// Author returns the author, or nil.
func (c *Commit) Author() *Person { return c.author }

// Committer returns the committer, or nil.
func (c *Commit) Committer() *Person { return c.committer }

func (c *Commit) String() string {
	return fmt.Sprintf("commit %s tree %s", c.id.Short(), c.tree.Short())
}

// Tag is a named, annotated pointer to a commit.
type Tag struct {
	id      plumbing.ObjectID
	name    string
	commit  plumbing.ObjectID
	message string
	tagger  *Person
}

// NewTag returns a new tag. tagger may be nil.
func NewTag(name string, commit plumbing.ObjectID, message string, tagger *Person) (*Tag, error) {
	t := &Tag{name: name, commit: commit, message: message, tagger: tagger}

	id, err := hashTag(t.name, t.commit, t.message, t.tagger)
	if err != nil {
		return nil, err
	}

	t.id = id
	return t, nil
}

// ID returns the object id of the tag.
func (t *Tag) ID() plumbing.ObjectID { return t.id }

// Type returns the object type of the tag.
func (t *Tag) Type() plumbing.ObjectType { return plumbing.TagObject }

// Name returns the tag name.
func (t *Tag) Name() string { return t.name }

// CommitID returns the id of the tagged commit.
func (t *Tag) CommitID() plumbing.ObjectID { return t.commit }

// Message returns the tag message.
func (t *Tag) Message() string { return t.message }

// Tagger returns the tagger, or nil.
func (t *Tag) Tagger() *Person { return t.tagger }

func (t *Tag) String() string {
	return fmt.Sprintf("tag %s %s -> %s", t.id.Short(), t.name, t.commit.Short())
}
