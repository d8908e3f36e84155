package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// recordSize is the nominal on-wire size of one Event record, used to convert
// the byte-denominated Config.EventStreamSize into a record capacity for the
// backing queue.
const recordSize = 32

type pendingKey struct {
	handle uint64
	id     ID
}

// Bus is the process-wide lifecycle event stream. Any number of goroutines
// may call Post concurrently (multi-producer); exactly one goroutine is
// expected to call Next/TryNext at a time (single-consumer): concurrent
// drains are not serialized against each other beyond what the mutex
// guarantees.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	pending  map[pendingKey]bool
	capacity int
	closed   bool
	dropped  uint64
	onDrop   func(id ID, handle uint64)
}

// New creates a Bus. capacityBytes <= 0 means unbounded. onDrop, if non-nil,
// is invoked (outside the bus's lock) whenever a post is dropped because the
// bus is full and coalescing could not make room; callers typically wire
// this to the Logger collaborator.
func New(capacityBytes int, onDrop func(id ID, handle uint64)) *Bus {
	b := &Bus{
		pending: make(map[pendingKey]bool),
		onDrop:  onDrop,
	}
	if capacityBytes > 0 {
		b.capacity = capacityBytes / recordSize
		if b.capacity < 1 {
			b.capacity = 1
		}
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Post appends an event. Data and Hangup are coalesced: if an identical
// (id, handle) pair is already queued and undrained, this post is dropped
// silently (not a failure — the already-queued event reports the same
// condition). When the bus is at capacity and coalescing does not apply,
// the post is dropped and onDrop is invoked.
func (b *Bus) Post(id ID, handle uint64) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	coalescable := id == Data || id == Hangup
	var key pendingKey
	if coalescable {
		key = pendingKey{handle: handle, id: id}
		if b.pending[key] {
			b.mu.Unlock()
			return
		}
	}

	if b.capacity > 0 && len(b.queue) >= b.capacity {
		atomic.AddUint64(&b.dropped, 1)
		b.mu.Unlock()
		if b.onDrop != nil {
			b.onDrop(id, handle)
		}
		return
	}

	if coalescable {
		b.pending[key] = true
	}
	b.queue = append(b.queue, Event{ID: id, Object: handle})
	b.cond.Signal()
	b.mu.Unlock()
}

// TryNext returns the oldest undrained event without blocking. ok is false
// when the bus is currently empty.
func (b *Bus) TryNext() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popLocked()
}

// Next blocks until an event is available, the bus is closed, or ctx is
// done. ok is false in the latter two cases.
//
// sync.Cond has no native way to wake on context cancellation, so a
// cancellation while already parked in Wait watches ctx.Done() on a side
// goroutine and broadcasts to wake every blocked Next.
func (b *Bus) Next(ctx context.Context) (Event, bool) {
	if ctx != nil && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				b.cond.Broadcast()
			case <-stop:
			}
		}()
	}

	b.mu.Lock()
	for len(b.queue) == 0 && !b.closed {
		if ctx != nil {
			select {
			case <-ctx.Done():
				b.mu.Unlock()
				return Event{}, false
			default:
			}
		}
		b.cond.Wait()
	}
	ev, ok := b.popLocked()
	b.mu.Unlock()
	return ev, ok
}

func (b *Bus) popLocked() (Event, bool) {
	if len(b.queue) == 0 {
		return Event{}, false
	}
	ev := b.queue[0]
	b.queue = b.queue[1:]
	if ev.ID == Data || ev.ID == Hangup {
		delete(b.pending, pendingKey{handle: ev.Object, id: ev.ID})
	}
	return ev, true
}

// Dropped returns the number of posts dropped so far due to sustained
// overflow.
func (b *Bus) Dropped() uint64 { return atomic.LoadUint64(&b.dropped) }

// Len returns the number of undrained events currently queued.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close marks the bus closed, waking any blocked Next callers. Subsequent
// Post calls are silently ignored. Deallocate is module_finalize's
// counterpart to module_initialize allocating the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}
