package wallet

// EventType identifies a state notification.
type EventType int

// Event types. EventStateChanged carries the full state and is always
// delivered before the derived events of the same update.
const (
	EventStateChanged EventType = iota
	EventConnected
	EventDisconnected
	EventError
	EventChainChanged
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "stateChanged"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event type by name.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is a notification delivered to observers.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state"`
	Account string    `json:"account,omitempty"`
	ChainID string    `json:"chain_id,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Observer receives state notifications.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// deriveEvents returns the notifications produced by moving from prev to next.
// reported forces an error event for a LastError that did not change.
func deriveEvents(prev, next State, reported bool) []Event {
	events := []Event{{Type: EventStateChanged, State: next}}

	if next.Status == StatusConnected && prev.Status != StatusConnected {
		events = append(events, Event{Type: EventConnected, State: next, Account: next.Account, ChainID: next.ChainID})
	}
	if prev.Status == StatusConnected && next.Status == StatusDisconnected {
		events = append(events, Event{Type: EventDisconnected, State: next})
	}
	if next.LastError != "" && (next.LastError != prev.LastError || reported) {
		events = append(events, Event{Type: EventError, State: next, Error: next.LastError})
	}
	if next.ChainID != "" && next.ChainID != prev.ChainID {
		events = append(events, Event{Type: EventChainChanged, State: next, ChainID: next.ChainID})
	}

	return events
}
