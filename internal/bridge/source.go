package bridge

import "sync"

// Source is a push based generation event source. Events is closed by the
// producer after the terminal event. Detach tells the producer nobody is
// listening anymore; it is safe to call more than once.
type Source interface {
	Events() <-chan Event
	Detach()
}

// Emitter is a Source fed by a producer goroutine.
type Emitter struct {
	events   chan Event
	detached chan struct{}

	detachOnce sync.Once
	mu         sync.Mutex
	terminated bool
	closed     bool
}

func NewEmitter(buffer int) *Emitter {
	return &Emitter{
		events:   make(chan Event, buffer),
		detached: make(chan struct{}),
	}
}

func (e *Emitter) Events() <-chan Event {
	return e.events
}

func (e *Emitter) Detach() {
	e.detachOnce.Do(func() {
		close(e.detached)
	})
}

// Detached is closed once the consumer detached.
func (e *Emitter) Detached() <-chan struct{} {
	return e.detached
}

// Emit blocks until the event is handed over or the consumer detaches. It
// reports false when the event was dropped: after detach, after a terminal
// event or after Close.
func (e *Emitter) Emit(ev Event) bool {
	e.mu.Lock()
	if e.terminated || e.closed {
		e.mu.Unlock()

		return false
	}

	if isTerminal(ev) {
		e.terminated = true
	}
	e.mu.Unlock()

	select {
	case <-e.detached:
		return false
	default:
	}

	select {
	case e.events <- ev:
		return true
	case <-e.detached:
		return false
	}
}

// Close ends the stream. Only the producer may call it, after its last Emit.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.closed = true
	close(e.events)
}
