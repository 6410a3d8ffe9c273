package bolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.etcd.io/bbolt"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/storage/test"
)

type StorageSuite struct {
	test.BaseStorageSuite
	path    string
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "objects.db")

	st, err := Open(s.path, Options{NoSync: true})
	s.Require().NoError(err)
	s.storage = st
	s.Storer = st
}

func (s *StorageSuite) TearDownTest() {
	s.NoError(s.storage.Close())
}

func (s *StorageSuite) TestReopen() {
	fixtures := test.Fixtures()
	s.NoError(s.storage.PutAll(fixtures))
	s.NoError(s.storage.Close())

	st, err := Open(s.path, Options{NoSync: true, CacheSize: -1})
	s.Require().NoError(err)
	s.storage = st

	for _, o := range fixtures {
		got, err := st.Object(o.ID())
		s.NoError(err)
		s.Equal(o.ID(), got.ID())
	}

	n, err := st.Len()
	s.NoError(err)
	s.Equal(len(fixtures), n)
}

func (s *StorageSuite) TestIterByType() {
	s.NoError(s.storage.PutAll(test.Fixtures()))

	iter, err := s.storage.Iter(plumbing.TreeObject)
	s.NoError(err)

	var count int
	var last plumbing.ObjectID
	err = iter.ForEach(func(o object.RevObject) error {
		s.Equal(plumbing.TreeObject, o.Type())
		s.Equal(-1, last.Compare(o.ID()))
		last = o.ID()
		count++
		return nil
	})

	s.NoError(err)
	s.Equal(3, count)

	_, err = s.storage.Iter(plumbing.InvalidObject)
	s.ErrorIs(err, plumbing.ErrInvalidType)
}

func (s *StorageSuite) TestAllSortedByID() {
	fixtures := test.Fixtures()
	s.NoError(s.storage.PutAll(fixtures))

	ids := make([]plumbing.ObjectID, 0, len(fixtures))
	for i := len(fixtures) - 1; i >= 0; i-- {
		ids = append(ids, fixtures[i].ID())
	}

	// the cache must not change the result
	for n := 0; n < 2; n++ {
		iter, err := s.storage.All(ids)
		s.Require().NoError(err)

		var got []plumbing.ObjectID
		s.NoError(iter.ForEach(func(o object.RevObject) error {
			got = append(got, o.ID())
			return nil
		}))

		s.Len(got, len(fixtures))
		for i := 1; i < len(got); i++ {
			s.Equal(-1, got[i-1].Compare(got[i]))
		}
	}
}

func (s *StorageSuite) TestLookupPrefix() {
	fixtures := test.Fixtures()
	s.NoError(s.storage.PutAll(fixtures))

	id := fixtures[0].ID()
	for _, n := range []int{1, 7, 10, 40} {
		ids, err := s.storage.LookupPrefix(id.String()[:n])
		s.NoError(err)
		s.Contains(ids, id)
	}

	ids, err := s.storage.LookupPrefix(id.String())
	s.NoError(err)
	s.Equal([]plumbing.ObjectID{id}, ids)

	_, err = s.storage.LookupPrefix("zz")
	s.Error(err)
}

func (s *StorageSuite) TestCorruptObject() {
	f := test.Fixtures()[0]
	other := test.Fixtures()[1]
	s.NoError(s.storage.Put(other))

	// store the encoding of other under the id of f
	err := s.storage.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(objectsBucket)
		oid := other.ID()
		id := f.ID()
		return b.Put(id[:], append([]byte(nil), b.Get(oid[:])...))
	})
	s.Require().NoError(err)

	_, err = s.storage.Object(f.ID())
	s.ErrorIs(err, plumbing.ErrCorruptObject)
}
