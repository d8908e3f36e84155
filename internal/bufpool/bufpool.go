// Package bufpool provides reuse for the two fixed-size buffers the socket
// layer ever allocates: the TCP stream adapter's read/write staging buffers
// and the UDP datagram scratch buffer. Unlike a general-purpose byte-slab
// pool, a Pool here only ever manages exactly two bucket sizes because that
// is the entire allocation surface of internal/socket — every call site
// requests either DefaultBufferSize or DefaultUDPDatagramSize bytes, never
// anything else.
package bufpool

import "sync"

// Pool reuses buffers for a fixed, known-in-advance set of sizes. A request
// for any other size bypasses the pool and allocates directly.
type Pool struct {
	buckets []bucket
}

type bucket struct {
	size int
	pool sync.Pool
}

// Default returns a Pool covering the socket layer's stream buffer size and
// its UDP datagram scratch size. Each open TCP base record holds up to two
// buffers from the first bucket (read + write); each UDP recv call borrows
// one from the second.
func Default() *Pool {
	return New(64*1024, 65507)
}

// New creates a Pool managing exactly the given bucket sizes.
func New(sizes ...int) *Pool {
	buckets := make([]bucket, len(sizes))
	for i, sz := range sizes {
		size := sz
		buckets[i] = bucket{
			size: size,
			pool: sync.Pool{New: func() any { return make([]byte, size) }},
		}
	}
	return &Pool{buckets: buckets}
}

// Get returns a buffer with length 0 and capacity n. n must exactly match
// one of the pool's configured sizes to be served from a bucket; any other
// size allocates a fresh, unpooled buffer of exactly n bytes.
func (p *Pool) Get(n int) []byte {
	if n <= 0 {
		n = 1
	}
	if b := p.bucketFor(n); b != nil {
		buf := b.pool.Get().([]byte)
		return buf[:0]
	}
	return make([]byte, 0, n)
}

// Put returns buf to its bucket if its capacity exactly matches one of the
// pool's configured sizes; anything else is dropped for GC to reclaim.
func (p *Pool) Put(buf []byte) {
	capN := cap(buf)
	if capN == 0 {
		return
	}
	if b := p.bucketFor(capN); b != nil {
		b.pool.Put(buf[:capN])
	}
}

func (p *Pool) bucketFor(n int) *bucket {
	for i := range p.buckets {
		if p.buckets[i].size == n {
			return &p.buckets[i]
		}
	}
	return nil
}
