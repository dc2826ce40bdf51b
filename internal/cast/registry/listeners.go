package registry

import (
	"log/slog"
	"sync"
)

// Event is anything the channel's reader loop can push to listeners:
// decoded standard responses it did not route to a Pending waiter, and
// raw application-namespace payloads (spec §4.5, §4.6). SourceID and
// DestinationID are the envelope's own addressing fields, carried
// through so a listener bound to one virtual connection (e.g. a
// Session) can ignore events addressed to a different one (spec §4.7).
type Event struct {
	Namespace     string
	SourceID      string
	DestinationID string
	Message       any
}

// Listener receives events fanned out by a Listeners registry. Receive
// is called synchronously from the reader loop's dispatch, so
// implementations that need to do slow work should hand off to their
// own goroutine instead of blocking here.
type Listener interface {
	Receive(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) Receive(e Event) { f(e) }

// Listeners fans an Event out to every registered Listener, mirroring
// the teacher's MultiPublisher but for inbound events rather than
// outbound call events: every listener is invoked, and one listener's
// panic never crashes delivery to the others. Delivery is serial, so a
// slow listener delays the listeners after it.
type Listeners struct {
	mu     sync.RWMutex
	byID   map[int]Listener
	nextID int
	logger *slog.Logger
}

// NewListeners creates an empty listener registry. A nil logger falls
// back to slog.Default().
func NewListeners(logger *slog.Logger) *Listeners {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listeners{byID: make(map[int]Listener), logger: logger}
}

// Add registers a listener and returns a token for Remove.
func (l *Listeners) Add(listener Listener) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.byID[id] = listener
	return id
}

// Remove deregisters a listener previously returned by Add.
func (l *Listeners) Remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byID, id)
}

// Dispatch delivers e to every registered listener. A listener that
// panics is logged and skipped rather than allowed to take down the
// reader loop that called Dispatch.
func (l *Listeners) Dispatch(e Event) {
	l.mu.RLock()
	snapshot := make([]Listener, 0, len(l.byID))
	for _, lis := range l.byID {
		snapshot = append(snapshot, lis)
	}
	l.mu.RUnlock()

	for _, lis := range snapshot {
		l.deliver(lis, e)
	}
}

func (l *Listeners) deliver(lis Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("cast listener panicked", "recovered", r, "namespace", e.Namespace)
		}
	}()
	lis.Receive(e)
}

// Threaded wraps Listeners so Dispatch never blocks the reader loop:
// each event is queued to a bounded buffer and delivered from a
// dedicated goroutine, the same tradeoff the teacher's ChannelPublisher
// makes for outbound events (bounded buffer, drop-and-warn on overflow)
// applied to inbound fan-out.
type Threaded struct {
	inner  *Listeners
	queue  chan Event
	logger *slog.Logger
	done   chan struct{}
}

// NewThreaded starts a background dispatcher with the given buffer
// size. Close must be called to stop the goroutine.
func NewThreaded(inner *Listeners, bufferSize int) *Threaded {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	t := &Threaded{
		inner:  inner,
		queue:  make(chan Event, bufferSize),
		logger: inner.logger,
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Threaded) run() {
	for e := range t.queue {
		t.inner.Dispatch(e)
	}
	close(t.done)
}

// Dispatch enqueues e for asynchronous delivery. If the buffer is full
// the event is dropped and logged rather than blocking the reader loop.
func (t *Threaded) Dispatch(e Event) {
	select {
	case t.queue <- e:
	default:
		t.logger.Warn("cast event dropped: listener queue full", "namespace", e.Namespace)
	}
}

// Close stops accepting new events and waits for the queue to drain.
func (t *Threaded) Close() {
	close(t.queue)
	<-t.done
}
