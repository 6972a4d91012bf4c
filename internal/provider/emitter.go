package provider

import "sync"

type listenerEntry struct {
	id       uint64
	listener Listener
}

// Emitter is a listener registry that providers embed to implement On and
// RemoveAllListeners. Listeners run synchronously in registration order and
// outside the registry lock, so a listener may unsubscribe itself.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[EventName][]listenerEntry
}

// On registers listener for event.
func (e *Emitter) On(event EventName, listener Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[EventName][]listenerEntry)
	}
	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listenerEntry{id: id, listener: listener})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(event, id) })
	}
}

func (e *Emitter) remove(event EventName, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.listeners[event]
	for i, entry := range entries {
		if entry.id == id {
			e.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// RemoveAllListeners detaches every listener.
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event EventName) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// Emit delivers msg to the listeners of msg.Event.
func (e *Emitter) Emit(msg Message) {
	e.mu.Lock()
	entries := make([]listenerEntry, len(e.listeners[msg.Event]))
	copy(entries, e.listeners[msg.Event])
	e.mu.Unlock()

	for _, entry := range entries {
		entry.listener(msg)
	}
}
