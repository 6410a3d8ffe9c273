package funnel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SinkSuite struct {
	suite.Suite
	buf  *bytes.Buffer
	sink *Sink
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupTest() {
	s.buf = bytes.NewBuffer(nil)
	s.sink = NewSink(s.buf)
}

func (s *SinkSuite) TestPutInt() {
	s.sink.PutInt(1)
	s.sink.PutInt(-1)
	s.NoError(s.sink.Err())
	s.Equal([]byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutLong() {
	s.sink.PutLong(0x0102030405060708)
	s.Equal([]byte{8, 7, 6, 5, 4, 3, 2, 1}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutShortAndChar() {
	s.sink.PutShort(-2)
	s.sink.PutChar('A')
	s.Equal([]byte{0xfe, 0xff, 'A', 0}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutBool() {
	s.sink.PutBool(true)
	s.sink.PutBool(false)
	s.Equal([]byte{1, 0}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutDouble() {
	s.sink.PutDouble(1)
	s.Equal([]byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutFloat() {
	s.sink.PutFloat(1)
	s.Equal([]byte{0, 0, 0x80, 0x3f}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutString() {
	s.sink.PutString("ab")
	s.sink.PutString("é")
	s.NoError(s.sink.Err())
	s.Equal([]byte{'a', 0, 'b', 0, 0xe9, 0}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutStringSurrogatePair() {
	s.sink.PutString("\U0001F600")
	s.Equal([]byte{0x3d, 0xd8, 0x00, 0xde}, s.buf.Bytes())
}

func (s *SinkSuite) TestPutNullableString() {
	s.sink.PutNullableString(nil)
	s.Equal(NullCode, s.buf.Bytes())

	s.buf.Reset()
	v := "x"
	s.sink.PutNullableString(&v)
	s.Equal([]byte{'x', 0}, s.buf.Bytes())
}
