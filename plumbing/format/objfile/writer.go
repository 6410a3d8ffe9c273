// Package objfile implements encoding and decoding of loose object files:
// a zlib stream holding a "<type> <size>\x00" header followed by the
// encoded object.
package objfile

import (
	"errors"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/format/codec"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/utils/sync"
)

var (
	ErrOverflow     = errors.New("objfile: declared data length exceeded (overflow)")
	ErrNegativeSize = errors.New("objfile: negative object size")
)

// Writer writes and encodes data in compressed objfile format to a provided
// io.Writer. Close should be called when finished with the Writer. Close will
// not close the underlying io.Writer.
type Writer struct {
	raw  io.Writer
	zlib *zlib.Writer

	closed  bool
	pending int64 // number of unwritten bytes
}

// NewWriter returns a new Writer writing to w.
//
// The returned Writer implements io.WriteCloser. Close should be called when
// finished with the Writer. Close will not close the underlying io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		raw:  w,
		zlib: sync.GetZlibWriter(w),
	}
}

// WriteHeader writes the type and the size and prepares to accept the
// object's contents. If an invalid type or negative size is given, an
// error is returned without writing anything.
func (w *Writer) WriteHeader(t plumbing.ObjectType, size int64) error {
	if !t.Valid() {
		return plumbing.ErrInvalidType
	}

	if size < 0 {
		return ErrNegativeSize
	}

	b := t.Bytes()
	b = append(b, ' ')
	b = strconv.AppendInt(b, size, 10)
	b = append(b, 0)

	if _, err := w.zlib.Write(b); err != nil {
		return err
	}

	w.pending = size
	return nil
}

// Write writes the object's contents. Write returns the error ErrOverflow if
// more than size bytes are written after WriteHeader.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}

	overwrite := false
	if int64(len(p)) > w.pending {
		p = p[0:w.pending]
		overwrite = true
	}

	n, err = w.zlib.Write(p)
	w.pending -= int64(n)
	if err == nil && overwrite {
		err = ErrOverflow
	}

	return
}

// Close releases any resources consumed by the Writer.
//
// Calling Close does not close the wrapped io.Writer originally passed to
// NewWriter.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true
	err := w.zlib.Close()
	sync.PutZlibWriter(w.zlib)
	return err
}

// WriteObject encodes o and writes it to w as a complete object file.
func WriteObject(w io.Writer, o object.RevObject) error {
	content, err := codec.Marshal(o)
	if err != nil {
		return err
	}

	ow := NewWriter(w)
	if err := ow.WriteHeader(o.Type(), int64(len(content))); err != nil {
		ow.Close()
		return err
	}

	if _, err := ow.Write(content); err != nil {
		ow.Close()
		return err
	}

	return ow.Close()
}
