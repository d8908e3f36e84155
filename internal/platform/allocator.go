package platform

import "github.com/harish-agr/network-lib/internal/bufpool"

// Allocator is the external allocator collaborator contract: aligned
// allocation with optional zero-initialization, and deallocation. The socket
// layer never allocates raw buffers directly; it always goes through an
// Allocator so a host application can substitute an arena or a
// telemetry-instrumented allocator without touching socket code.
type Allocator interface {
	Alloc(size int, zero bool) []byte
	Free(buf []byte)
}

// pooledAllocator is the default Allocator, backed by the bucketed buffer
// pool used throughout the stream adapter.
type pooledAllocator struct {
	pool *bufpool.Pool
}

// NewPooledAllocator returns an Allocator backed by a fresh bucketed pool.
func NewPooledAllocator() Allocator {
	return &pooledAllocator{pool: bufpool.Default()}
}

func (a *pooledAllocator) Alloc(size int, zero bool) []byte {
	buf := a.pool.Get(size)
	buf = buf[:size]
	if zero {
		for i := range buf {
			buf[i] = 0
		}
	}
	return buf
}

func (a *pooledAllocator) Free(buf []byte) {
	a.pool.Put(buf)
}
