package socktab

import "sync"

// Table is a fixed-capacity (optionally unbounded) generation-counted slot
// table. It decouples caller-visible Handles from whatever value type T a
// layer above wants to store per socket, without tying this package to any
// particular socket representation.
//
// Allocate/Free take a single short critical section (a sync.Mutex guarding
// a slice and a free list): under normal contention the mutex's fast path
// never blocks on the runtime scheduler, and the critical section itself is
// O(1).
type Table[T any] struct {
	mu         sync.Mutex
	slots      []slot[T]
	free       []uint32
	capacity   int // 0 means unbounded
	liveCount  int
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// New creates a Table. capacity <= 0 means unbounded (slots grow on demand).
func New[T any](capacity int) *Table[T] {
	return &Table[T]{capacity: capacity}
}

// Allocate reserves a slot, stores value in it, and returns the Handle that
// now refers to it. Returns ok=false when the table is at capacity.
func (t *Table[T]) Allocate(value T) (h Handle, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if t.capacity > 0 && len(t.slots) >= t.capacity {
			return Zero, false
		}
		idx = uint32(len(t.slots))
		// generation starts at 1, not 0: index 0/generation 0 would equal
		// Zero, the reserved null handle, on a slot's very first allocation.
		t.slots = append(t.slots, slot[T]{generation: 1})
	}

	s := &t.slots[idx]
	s.value = value
	s.occupied = true
	t.liveCount++
	return makeHandle(idx, s.generation), true
}

// Free releases the slot h refers to, bumping its generation so any copy of
// h still held by a caller becomes permanently invalid. Freeing an
// already-invalid handle is a no-op and reports ok=false.
func (t *Table[T]) Free(h Handle) (value T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := h.index()
	if int(idx) >= len(t.slots) {
		return value, false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != h.generation() {
		return value, false
	}
	value = s.value
	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	t.free = append(t.free, idx)
	t.liveCount--
	return value, true
}

// Get resolves h to its stored value. ok is false if h does not currently
// resolve to a live slot (freed, never allocated, or a stale generation).
func (t *Table[T]) Get(h Handle) (value T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return value, false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != h.generation() {
		return value, false
	}
	return s.value, true
}

// IsValid reports whether h currently resolves to a live slot.
func (t *Table[T]) IsValid(h Handle) bool {
	_, ok := t.Get(h)
	return ok
}

// Update mutates the value stored at h in place via fn, under the table's
// lock, returning false if h is no longer valid.
func (t *Table[T]) Update(h Handle, fn func(*T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != h.generation() {
		return false
	}
	fn(&s.value)
	return true
}

// Len returns the number of currently allocated (live) slots.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveCount
}
