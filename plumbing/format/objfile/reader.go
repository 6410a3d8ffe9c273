package objfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/format/codec"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/utils/sync"
)

var (
	ErrClosed       = errors.New("objfile: already closed")
	ErrHeader       = errors.New("objfile: invalid header")
	ErrNegativeRead = errors.New("objfile: negative read")
)

// maxHeaderSize is the longest header a valid object file can start with.
const maxHeaderSize = 32

// Reader reads and decodes compressed objfile data from a provided io.Reader.
// Reader implements io.ReadCloser. Close should be called when finished with
// the Reader. Close will not close the underlying io.Reader.
type Reader struct {
	zlib    *sync.ZLibReader
	buf     *bufio.Reader
	header  bool
	pending int64
	closed  bool
}

// NewReader returns a new Reader reading from r.
func NewReader(r io.Reader) (*Reader, error) {
	zlib, err := sync.GetZlibReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plumbing.ErrCorruptObject, err)
	}

	return &Reader{
		zlib: zlib,
		buf:  bufio.NewReaderSize(zlib, maxHeaderSize),
	}, nil
}

// Header reads the type and the size of object, and prepares the reader
// for read
func (r *Reader) Header() (t plumbing.ObjectType, size int64, err error) {
	if r.header {
		return t, size, ErrHeader
	}

	raw, err := r.buf.ReadSlice(0)
	if err != nil {
		return t, size, fmt.Errorf("%w: %w", ErrHeader, err)
	}

	raw = raw[:len(raw)-1]
	i := bytes.IndexByte(raw, ' ')
	if i < 0 {
		return t, size, ErrHeader
	}

	t, err = plumbing.ParseObjectType(string(raw[:i]))
	if err != nil {
		return t, size, err
	}

	size, err = strconv.ParseInt(string(raw[i+1:]), 10, 64)
	if err != nil || size < 0 {
		return t, size, ErrHeader
	}

	r.header = true
	r.pending = size
	return t, size, nil
}

// Read reads len(p) bytes into p from the object data stream. It returns
// the number of bytes read (0 <= n <= len(p)) and any error encountered. Even
// if Read returns n < len(p), it may use all of p as scratch space during the
// call.
//
// If Read encounters the end of the data stream it will return err == io.EOF,
// either in the current call if n > 0 or in a subsequent call.
func (r *Reader) Read(p []byte) (n int, err error) {
	if r.closed {
		return 0, ErrClosed
	}

	if !r.header {
		return 0, ErrHeader
	}

	if r.pending == 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > r.pending {
		p = p[:r.pending]
	}

	n, err = r.buf.Read(p)
	if n < 0 {
		return 0, ErrNegativeRead
	}

	r.pending -= int64(n)
	if err == io.EOF && r.pending > 0 {
		err = io.ErrUnexpectedEOF
	}

	return n, err
}

// Close releases any resources consumed by the Reader.
//
// Calling Close does not close the wrapped io.Reader originally passed to
// NewReader.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	err := r.zlib.Close()
	sync.PutZlibReader(r.zlib)
	return err
}

// ReadObject reads a complete object file from r and decodes the object
// it holds.
func ReadObject(r io.Reader) (object.RevObject, error) {
	or, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer or.Close()

	t, size, err := or.Header()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plumbing.ErrCorruptObject, err)
	}

	buf := sync.GetBytesBuffer()
	defer sync.PutBytesBuffer(buf)

	if _, err := io.Copy(buf, or); err != nil {
		return nil, fmt.Errorf("%w: %w", plumbing.ErrCorruptObject, err)
	}

	if int64(buf.Len()) != size {
		return nil, fmt.Errorf("%w: read %d of %d bytes", plumbing.ErrCorruptObject, buf.Len(), size)
	}

	o, err := codec.Unmarshal(buf.Bytes())
	if err != nil {
		return nil, err
	}

	if o.Type() != t {
		return nil, fmt.Errorf("%w: header says %s, content is a %s", plumbing.ErrCorruptObject, t, o.Type())
	}

	return o, nil
}
