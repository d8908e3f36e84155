package platform

import (
	"context"
	"sync"

	"github.com/harish-agr/network-lib/internal/eventbus"
)

// FoundationHandle identifies one allocated foundation event stream.
type FoundationHandle int

// FoundationStream is the external collaborator contract for a
// multi-producer single-consumer event sequence treated as a
// foundation-layer primitive. The event bus (internal/eventbus) is this
// module's own concrete instance of the contract; FoundationStream exists
// so a host embedding this module in a larger runtime that already has such
// a primitive can substitute it without the socket layer noticing the
// difference.
type FoundationStream interface {
	Allocate(capacityBytes int) FoundationHandle
	Post(h FoundationHandle, id eventbus.ID, object uint64)
	Process(ctx context.Context, h FoundationHandle) (eventbus.Event, bool)
	Deallocate(h FoundationHandle)
}

// busFoundation is the default FoundationStream, backed directly by
// internal/eventbus.Bus.
type busFoundation struct {
	mu      sync.RWMutex
	next    FoundationHandle
	streams map[FoundationHandle]*eventbus.Bus
	logger  Logger
}

// NewBusFoundation returns the default FoundationStream. logger may be nil
// (NopLogger is used instead).
func NewBusFoundation(logger Logger) FoundationStream {
	if logger == nil {
		logger = NopLogger()
	}
	return &busFoundation{streams: make(map[FoundationHandle]*eventbus.Bus), logger: logger}
}

func (f *busFoundation) Allocate(capacityBytes int) FoundationHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	h := f.next
	f.streams[h] = eventbus.New(capacityBytes, func(id eventbus.ID, object uint64) {
		f.logger.Log(Warn, "eventbus", "event dropped under sustained overflow")
	})
	return h
}

func (f *busFoundation) Post(h FoundationHandle, id eventbus.ID, object uint64) {
	f.mu.RLock()
	b, ok := f.streams[h]
	f.mu.RUnlock()
	if ok {
		b.Post(id, object)
	}
}

func (f *busFoundation) Process(ctx context.Context, h FoundationHandle) (eventbus.Event, bool) {
	f.mu.RLock()
	b, ok := f.streams[h]
	f.mu.RUnlock()
	if !ok {
		return eventbus.Event{}, false
	}
	return b.Next(ctx)
}

func (f *busFoundation) Deallocate(h FoundationHandle) {
	f.mu.Lock()
	b, ok := f.streams[h]
	delete(f.streams, h)
	f.mu.Unlock()
	if ok {
		b.Close()
	}
}
