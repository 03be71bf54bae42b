// Package pool provides reusable copy buffers for streaming object bodies
// and local files without allocating a fresh buffer per transfer.
package pool

import (
	"io"
	"sync"
)

const (
	// SmallBufferSize defines the size for small buffers (32KB, io.Copy's default)
	SmallBufferSize = 32 * 1024
	// LargeBufferSize defines the size for large buffers (1MB)
	LargeBufferSize = 1024 * 1024

	// largeThreshold is the size hint above which Copy uses a large buffer.
	largeThreshold = 8 * LargeBufferSize
)

// BufferPool manages reusable buffers of two sizes.
type BufferPool struct {
	small *sync.Pool
	large *sync.Pool
}

// NewBufferPool creates a new buffer pool with default sizes.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, SmallBufferSize)
				return &buf
			},
		},
		large: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, LargeBufferSize)
				return &buf
			},
		},
	}
}

// Get returns a full-length buffer suited to a transfer of sizeHint bytes.
// A non-positive hint means unknown size. Return it with Put.
func (bp *BufferPool) Get(sizeHint int64) *[]byte {
	if sizeHint > largeThreshold {
		return bp.large.Get().(*[]byte)
	}
	return bp.small.Get().(*[]byte)
}

// Put returns a buffer obtained from Get. Buffers of foreign sizes are dropped.
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	switch cap(*buf) {
	case SmallBufferSize:
		*buf = (*buf)[:SmallBufferSize]
		bp.small.Put(buf)
	case LargeBufferSize:
		*buf = (*buf)[:LargeBufferSize]
		bp.large.Put(buf)
	}
}

// Copy streams src into dst through a pooled buffer.
func (bp *BufferPool) Copy(dst io.Writer, src io.Reader, sizeHint int64) (int64, error) {
	buf := bp.Get(sizeHint)
	defer bp.Put(buf)
	//nolint:wrapcheck // callers add transfer context
	return io.CopyBuffer(dst, src, *buf)
}

// Global buffer pool instance shared by all transfers.
var globalBufferPool = NewBufferPool()

// Copy streams src into dst using the global pool.
func Copy(dst io.Writer, src io.Reader, sizeHint int64) (int64, error) {
	return globalBufferPool.Copy(dst, src, sizeHint)
}
