package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPostAndDrainFIFO(t *testing.T) {
	b := New(0, nil)
	b.Post(Connect, 1)
	b.Post(Accept, 2)
	ev, ok := b.TryNext()
	if !ok || ev.ID != Connect || ev.Object != 1 {
		t.Fatalf("unexpected first event: %+v ok=%v", ev, ok)
	}
	ev, ok = b.TryNext()
	if !ok || ev.ID != Accept || ev.Object != 2 {
		t.Fatalf("unexpected second event: %+v ok=%v", ev, ok)
	}
	if _, ok := b.TryNext(); ok {
		t.Fatal("expected empty bus")
	}
}

func TestDataHangupCoalesced(t *testing.T) {
	b := New(0, nil)
	b.Post(Data, 5)
	b.Post(Data, 5) // duplicate while the first is still queued: suppressed
	if b.Len() != 1 {
		t.Fatalf("expected 1 queued event, got %d", b.Len())
	}
	ev, _ := b.TryNext()
	if ev.ID != Data || ev.Object != 5 {
		t.Fatalf("unexpected event %+v", ev)
	}
	// After draining, a fresh Data event for the same handle is allowed again.
	b.Post(Data, 5)
	if b.Len() != 1 {
		t.Fatalf("expected re-armed coalescing slot, got len %d", b.Len())
	}
	b.Post(Hangup, 5)
	b.Post(Hangup, 5) // duplicate Hangup while the first is still queued: suppressed
	if b.Len() != 2 {
		t.Fatalf("expected Data plus one Hangup queued, got len %d", b.Len())
	}
}

func TestConnectNotCoalesced(t *testing.T) {
	b := New(0, nil)
	b.Post(Connect, 7)
	b.Post(Connect, 7)
	if b.Len() != 2 {
		t.Fatalf("Connect should not be coalesced, got len %d", b.Len())
	}
}

func TestCapacityDropsAndReportsViaCallback(t *testing.T) {
	var dropped []ID
	var mu sync.Mutex
	b := New(recordSize, func(id ID, handle uint64) {
		mu.Lock()
		dropped = append(dropped, id)
		mu.Unlock()
	})
	b.Post(Connect, 1)
	b.Post(Accept, 2) // bus holds 1 record; this should be dropped
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || dropped[0] != Accept {
		t.Fatalf("expected Accept to be dropped, got %+v", dropped)
	}
}

func TestNextBlocksUntilPost(t *testing.T) {
	b := New(0, nil)
	done := make(chan Event, 1)
	go func() {
		ev, ok := b.Next(context.Background())
		if ok {
			done <- ev
		}
	}()
	time.Sleep(20 * time.Millisecond)
	b.Post(Hangup, 9)
	select {
	case ev := <-done:
		if ev.ID != Hangup || ev.Object != 9 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Post")
	}
}

func TestNextUnblocksOnContextCancelWhileWaiting(t *testing.T) {
	b := New(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := b.Next(ctx)
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Next to report ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after context was cancelled while parked in Wait")
	}
}

func TestNextUnblocksOnClose(t *testing.T) {
	b := New(0, nil)
	done := make(chan bool, 1)
	go func() {
		_, ok := b.Next(context.Background())
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	b.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Next to report ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Close")
	}
}
