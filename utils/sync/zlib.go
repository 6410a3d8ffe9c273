package sync

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// emptyStream is a complete zlib stream of no data. New readers are
// created over it since zlib.NewReader reads the header eagerly.
var emptyStream = []byte{0x78, 0x9c, 0x01, 0x00, 0x00, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01}

type resettableReader interface {
	io.ReadCloser
	zlib.Resetter
}

// ZLibReader is a pooled zlib reader, see GetZlibReader.
type ZLibReader struct {
	r resettableReader
}

func (z *ZLibReader) Read(p []byte) (int, error) {
	return z.r.Read(p)
}

func (z *ZLibReader) Close() error {
	return z.r.Close()
}

var (
	zlibReaders = NewPool(func() *ZLibReader {
		r, _ := zlib.NewReader(bytes.NewReader(emptyStream))
		return &ZLibReader{r: r.(resettableReader)}
	}, nil)

	zlibWriters = NewPool(func() *zlib.Writer {
		return zlib.NewWriter(io.Discard)
	}, nil)
)

// GetZlibReader returns a pooled reader decompressing r. It fails if r does
// not start with a zlib header. Release it with PutZlibReader.
func GetZlibReader(r io.Reader) (*ZLibReader, error) {
	z := zlibReaders.Get()
	if err := z.r.Reset(r, nil); err != nil {
		zlibReaders.Put(z)
		return nil, err
	}

	return z, nil
}

// PutZlibReader releases z. A nil z is ignored.
func PutZlibReader(z *ZLibReader) {
	if z != nil {
		zlibReaders.Put(z)
	}
}

// GetZlibWriter returns a pooled writer compressing into w. Release it
// with PutZlibWriter once closed.
func GetZlibWriter(w io.Writer) *zlib.Writer {
	z := zlibWriters.Get()
	z.Reset(w)
	return z
}

// PutZlibWriter releases w.
func PutZlibWriter(w *zlib.Writer) {
	zlibWriters.Put(w)
}
