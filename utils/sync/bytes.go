// Package sync provides typed pools of the buffers, readers and writers
// reused while encoding and decoding objects.
package sync

import (
	"bytes"
	"sync"
)

// Pool is a typed sync.Pool. Values are reset before being handed out.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// NewPool returns a pool creating values with newFn. reset, if not nil, is
// called on every value returned by Get.
func NewPool[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any { return newFn() }
	return p
}

// Get returns a value from the pool, or a new one.
func (p *Pool[T]) Get() T {
	v := p.pool.Get().(T)
	if p.reset != nil {
		p.reset(v)
	}

	return v
}

// Put returns v to the pool.
func (p *Pool[T]) Put(v T) {
	p.pool.Put(v)
}

var buffers = NewPool(
	func() *bytes.Buffer { return bytes.NewBuffer(nil) },
	(*bytes.Buffer).Reset,
)

// GetBytesBuffer returns an empty pooled buffer, to be released with
// PutBytesBuffer.
func GetBytesBuffer() *bytes.Buffer {
	return buffers.Get()
}

// PutBytesBuffer releases buf. A nil buf is ignored.
func PutBytesBuffer(buf *bytes.Buffer) {
	if buf != nil {
		buffers.Put(buf)
	}
}
