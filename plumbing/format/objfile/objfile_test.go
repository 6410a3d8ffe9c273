package objfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

type SuiteObjfile struct {
	suite.Suite
}

func TestSuiteObjfile(t *testing.T) {
	suite.Run(t, new(SuiteObjfile))
}

func (s *SuiteObjfile) TestWriteAndReadRaw() {
	buf := bytes.NewBuffer(nil)
	content := []byte("some content")

	w := NewWriter(buf)
	s.NoError(w.WriteHeader(plumbing.FeatureObject, int64(len(content))))
	n, err := w.Write(content)
	s.NoError(err)
	s.Equal(len(content), n)
	s.NoError(w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	s.Require().NoError(err)

	typ, size, err := r.Header()
	s.NoError(err)
	s.Equal(plumbing.FeatureObject, typ)
	s.Equal(int64(len(content)), size)

	read, err := io.ReadAll(r)
	s.NoError(err)
	s.Equal(content, read)
	s.NoError(r.Close())

	_, err = r.Read(make([]byte, 1))
	s.ErrorIs(err, ErrClosed)
}

func (s *SuiteObjfile) TestWriteOverflow() {
	w := NewWriter(bytes.NewBuffer(nil))
	defer w.Close()

	s.NoError(w.WriteHeader(plumbing.TreeObject, 8))

	n, err := w.Write([]byte("1234"))
	s.NoError(err)
	s.Equal(4, n)

	n, err = w.Write([]byte("56789"))
	s.ErrorIs(err, ErrOverflow)
	s.Equal(4, n)
}

func (s *SuiteObjfile) TestWriteHeaderInvalid() {
	w := NewWriter(bytes.NewBuffer(nil))
	defer w.Close()

	s.ErrorIs(w.WriteHeader(plumbing.InvalidObject, 8), plumbing.ErrInvalidType)
	s.ErrorIs(w.WriteHeader(plumbing.FeatureObject, -1), ErrNegativeSize)
}

func (s *SuiteObjfile) TestObjectRoundTrip() {
	f, err := object.NewFeature("a", orb.Point{1, 2}, int32(3))
	s.Require().NoError(err)

	buf := bytes.NewBuffer(nil)
	s.Require().NoError(WriteObject(buf, f))

	o, err := ReadObject(bytes.NewReader(buf.Bytes()))
	s.Require().NoError(err)
	s.Equal(f.ID(), o.ID())
	s.Equal(plumbing.FeatureObject, o.Type())
}

func (s *SuiteObjfile) TestReadGarbage() {
	_, err := NewReader(bytes.NewReader([]byte("!@#$RO!@NROSADfinq@o#irn@oirfn")))
	s.ErrorIs(err, plumbing.ErrCorruptObject)

	_, err = NewReader(bytes.NewReader(nil))
	s.Error(err)
}

func (s *SuiteObjfile) TestReadTruncated() {
	f, err := object.NewFeature("some longer value to make the stream longer")
	s.Require().NoError(err)

	buf := bytes.NewBuffer(nil)
	s.Require().NoError(WriteObject(buf, f))

	_, err = ReadObject(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	s.ErrorIs(err, plumbing.ErrCorruptObject)
}

func (s *SuiteObjfile) TestTypeMismatch() {
	f, err := object.NewFeature("a")
	s.Require().NoError(err)

	content := bytes.NewBuffer(nil)
	s.Require().NoError(WriteObject(content, f))

	r, err := ReadObject(bytes.NewReader(content.Bytes()))
	s.Require().NoError(err)
	s.Equal(f.ID(), r.ID())

	// a header announcing a tree around a feature body
	raw := bytes.NewBuffer(nil)
	body := []byte{0x02, 0x91, 0x08, 0xa1, 'a'}
	w := NewWriter(raw)
	s.Require().NoError(w.WriteHeader(plumbing.TreeObject, int64(len(body))))
	_, err = w.Write(body)
	s.Require().NoError(err)
	s.Require().NoError(w.Close())

	_, err = ReadObject(bytes.NewReader(raw.Bytes()))
	s.ErrorIs(err, plumbing.ErrCorruptObject)
}
