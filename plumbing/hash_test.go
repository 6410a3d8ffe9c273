package plumbing

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type HashSuite struct {
	suite.Suite
}

func TestHashSuite(t *testing.T) {
	suite.Run(t, new(HashSuite))
}

func (s *HashSuite) TestComputeID() {
	id := ComputeID([]byte(""))
	s.Equal("da39a3ee5e6b4b0d3255bfef95601890afd80709", id.String())
}

func (s *HashSuite) TestNewObjectID() {
	id := ComputeID([]byte("Hello, World!\n"))
	s.Equal(NewObjectID(id.String()), id)
}

func (s *HashSuite) TestIsZero() {
	id := NewObjectID("foo")
	s.True(id.IsZero())

	id = NewObjectID("8ab686eafeb1f44702738c8b0f24f2567c36da6d")
	s.False(id.IsZero())
}

func (s *HashSuite) TestFromBytes() {
	id := NewObjectID("8ab686eafeb1f44702738c8b0f24f2567c36da6d")
	got, ok := FromBytes(id.Bytes())
	s.True(ok)
	s.Equal(id, got)

	_, ok = FromBytes([]byte{1, 2, 3})
	s.False(ok)
}

func (s *HashSuite) TestCompareIsUnsigned() {
	low := NewObjectID("7fffffffffffffffffffffffffffffffffffffff")
	high := NewObjectID("8000000000000000000000000000000000000000")
	s.Equal(-1, low.Compare(high))
	s.Equal(1, high.Compare(low))
	s.Equal(0, low.Compare(low))
}

func (s *HashSuite) TestIDsSort() {
	i := []ObjectID{
		NewObjectID("2222222222222222222222222222222222222222"),
		NewObjectID("1111111111111111111111111111111111111111"),
	}

	IDsSort(i)

	s.Equal(NewObjectID("1111111111111111111111111111111111111111"), i[0])
	s.Equal(NewObjectID("2222222222222222222222222222222222222222"), i[1])
}

func (s *HashSuite) TestHasPrefix() {
	id := NewObjectID("8ab686eafeb1f44702738c8b0f24f2567c36da6d")
	s.True(id.HasPrefix("8ab6"))
	s.True(id.HasPrefix("8AB6"))
	s.False(id.HasPrefix("8ab7"))
	s.Equal("8ab686ea", id.Short())
}
