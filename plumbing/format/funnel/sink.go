// Package funnel writes the primitive values of the canonical object
// encoding. Every multi-byte value is little-endian, strings are written as
// their UTF-16 code units and absent values as a reserved byte sequence.
package funnel

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// NullCode is written in place of any absent value.
var NullCode = []byte{0x60, 0xe5, 0x6d, 0x08, 0xd3, 0x08, 0x53, 0xb7, 0x84, 0x07, 0x77}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Sink writes primitives to an underlying writer, usually a hash.Hash. The
// first write error is kept and every later write is a no-op.
type Sink struct {
	w   io.Writer
	enc *encoding.Encoder
	buf [8]byte
	err error
}

// NewSink returns a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w, enc: utf16le.NewEncoder()}
}

// Err returns the first error found while writing, if any.
func (s *Sink) Err() error {
	return s.err
}

func (s *Sink) write(b []byte) {
	if s.err != nil {
		return
	}

	_, s.err = s.w.Write(b)
}

func (s *Sink) PutByte(b byte) {
	s.buf[0] = b
	s.write(s.buf[:1])
}

func (s *Sink) PutBytes(b []byte) {
	s.write(b)
}

func (s *Sink) PutBool(v bool) {
	if v {
		s.PutByte(1)
		return
	}
	s.PutByte(0)
}

func (s *Sink) PutShort(v int16) {
	binary.LittleEndian.PutUint16(s.buf[:2], uint16(v))
	s.write(s.buf[:2])
}

func (s *Sink) PutChar(v uint16) {
	binary.LittleEndian.PutUint16(s.buf[:2], v)
	s.write(s.buf[:2])
}

func (s *Sink) PutInt(v int32) {
	binary.LittleEndian.PutUint32(s.buf[:4], uint32(v))
	s.write(s.buf[:4])
}

func (s *Sink) PutLong(v int64) {
	binary.LittleEndian.PutUint64(s.buf[:8], uint64(v))
	s.write(s.buf[:8])
}

func (s *Sink) PutFloat(v float32) {
	s.PutInt(int32(math.Float32bits(v)))
}

func (s *Sink) PutDouble(v float64) {
	s.PutLong(int64(math.Float64bits(v)))
}

// PutString writes the UTF-16 code units of v, without length or terminator.
func (s *Sink) PutString(v string) {
	if s.err != nil {
		return
	}

	b, err := EncodeUTF16(s.enc, v)
	if err != nil {
		s.err = err
		return
	}
	s.write(b)
}

// PutNullableString writes v, or NullCode when v is nil.
func (s *Sink) PutNullableString(v *string) {
	if v == nil {
		s.PutNull()
		return
	}
	s.PutString(*v)
}

func (s *Sink) PutNull() {
	s.write(NullCode)
}

// EncodeUTF16 returns the UTF-16 little-endian code units of v. A nil
// encoder uses a fresh one.
func EncodeUTF16(enc *encoding.Encoder, v string) ([]byte, error) {
	if enc == nil {
		enc = utf16le.NewEncoder()
	}

	return enc.Bytes([]byte(v))
}
