package platform

import (
	"runtime"
	"sync/atomic"
)

// Thread is the external thread-abstraction contract: create a thread bound
// to a function, start it with an argument, request cooperative termination,
// yield, join, and observe whether termination has been requested. The
// socket layer and its pollers do not take a ThreadFactory: they start their
// own background goroutines directly.
type Thread interface {
	Start(arg any)
	RequestTerminate()
	ShouldTerminate() bool
	Join() error
	Yield()
}

// ThreadFunc is executed on the thread once Start is called.
type ThreadFunc func(arg any)

// ThreadFactory creates Threads. GoroutineThreadFactory is the default.
type ThreadFactory interface {
	Create(fn ThreadFunc) Thread
}

type goroutineThread struct {
	fn        ThreadFunc
	started   atomic.Bool
	terminate atomic.Bool
	done      chan struct{}
}

type goroutineThreadFactory struct{}

// NewGoroutineThreadFactory returns the default ThreadFactory, which backs
// each Thread with one goroutine and an atomic terminate-request flag,
// mirroring the teacher runtime's ThreadState machine (created/running/
// blocked/finished/error) without the unsafe.Pointer argument passing that
// implementation used for its own from-scratch runtime.
func NewGoroutineThreadFactory() ThreadFactory { return goroutineThreadFactory{} }

func (goroutineThreadFactory) Create(fn ThreadFunc) Thread {
	return &goroutineThread{fn: fn, done: make(chan struct{})}
}

func (t *goroutineThread) Start(arg any) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(t.done)
		t.fn(arg)
	}()
}

func (t *goroutineThread) RequestTerminate() { t.terminate.Store(true) }

func (t *goroutineThread) ShouldTerminate() bool { return t.terminate.Load() }

func (t *goroutineThread) Join() error {
	<-t.done
	return nil
}

func (t *goroutineThread) Yield() { runtime.Gosched() }
