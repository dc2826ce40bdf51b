package registry

import (
	"sync"
	"testing"
	"time"
)

func TestListenersDispatchDeliversToAll(t *testing.T) {
	l := NewListeners(nil)
	var mu sync.Mutex
	var got []string

	l.Add(ListenerFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "a:"+e.Namespace)
	}))
	l.Add(ListenerFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "b:"+e.Namespace)
	}))

	l.Dispatch(Event{Namespace: "ns"})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestListenersRemoveStopsDelivery(t *testing.T) {
	l := NewListeners(nil)
	count := 0
	id := l.Add(ListenerFunc(func(e Event) { count++ }))
	l.Remove(id)
	l.Dispatch(Event{Namespace: "ns"})
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestListenersPanicDoesNotStopOthers(t *testing.T) {
	l := NewListeners(nil)
	delivered := false
	l.Add(ListenerFunc(func(e Event) { panic("boom") }))
	l.Add(ListenerFunc(func(e Event) { delivered = true }))
	l.Dispatch(Event{Namespace: "ns"})
	if !delivered {
		t.Fatal("expected second listener to still run")
	}
}

func TestThreadedDeliversAsynchronously(t *testing.T) {
	l := NewListeners(nil)
	done := make(chan struct{})
	l.Add(ListenerFunc(func(e Event) { close(done) }))

	th := NewThreaded(l, 4)
	defer th.Close()

	th.Dispatch(Event{Namespace: "ns"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestThreadedDropsWhenBufferFull(t *testing.T) {
	l := NewListeners(nil)
	block := make(chan struct{})
	l.Add(ListenerFunc(func(e Event) { <-block }))

	th := NewThreaded(l, 1)

	// First event occupies the listener goroutine; remaining ones fill
	// and then overflow the buffer without panicking or blocking.
	for i := 0; i < 5; i++ {
		th.Dispatch(Event{Namespace: "ns"})
	}
	close(block)
	th.Close()
}
